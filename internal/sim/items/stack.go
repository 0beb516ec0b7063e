package items

import (
	"encoding/json"
	"fmt"
)

// Stack is zero or more units of one item. It is a value: assigning a Stack
// copies it. The zero value is the empty stack.
type Stack struct {
	id    string
	count int
	reg   *Registry
}

// Amount is the wire form of a stack.
type Amount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func (s Stack) IsEmpty() bool {
	return s.id == "" || s.id == EmptyID || s.count <= 0
}

func (s Stack) ID() string {
	if s.IsEmpty() {
		return EmptyID
	}
	return s.id
}

func (s Stack) Count() int {
	if s.IsEmpty() {
		return 0
	}
	return s.count
}

func (s Stack) Registry() *Registry { return s.reg }

func (s Stack) Data() *Data {
	if s.reg == nil || reserved(s.id) {
		return placeholder()
	}
	return s.reg.Get(s.id)
}

// Limit is the stack size of the item; 0 for empty or unknown stacks.
func (s Stack) Limit() int { return s.Data().StackSize }

// SetCount clamps n to [0, Limit]. Non-positive counts make the stack empty.
// Stacks without a registry are only clamped from below.
func (s *Stack) SetCount(n int) {
	if n <= 0 {
		s.makeEmpty()
		return
	}
	if s.reg != nil {
		if limit := s.Limit(); n > limit {
			n = limit
		}
	}
	if n <= 0 {
		s.makeEmpty()
		return
	}
	s.count = n
}

// WithCount returns a copy holding n units without clamping to the stack
// size. Transfer arithmetic uses it for aggregates that span several slots.
func (s Stack) WithCount(n int) Stack {
	if n <= 0 {
		s.makeEmpty()
		return s
	}
	s.count = n
	return s
}

func (s *Stack) makeEmpty() {
	s.id = EmptyID
	s.count = 0
}

func (s Stack) IsFull() bool {
	return !s.IsEmpty() && s.count >= s.Limit()
}

// IsEqualType reports whether both stacks hold the same item. Empty stacks
// never match, not even each other.
func (s Stack) IsEqualType(o Stack) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return false
	}
	return s.id == o.id
}

// Use applies the item's use behavior; a Consume result removes one unit.
func (s *Stack) Use(actor any) UseResult {
	if s.IsEmpty() || s.reg == nil {
		return UseFail
	}
	res := s.reg.Use(s, actor)
	if res == UseConsume {
		s.SetCount(s.Count() - 1)
	}
	return res
}

func (s Stack) Clone() Stack { return s }

func (s Stack) Amount() Amount {
	return Amount{ID: s.ID(), Count: s.Count()}
}

func (s Stack) String() string {
	if s.IsEmpty() {
		return EmptyID
	}
	return fmt.Sprintf("%s x%d", s.id, s.count)
}

func (s Stack) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Amount())
}

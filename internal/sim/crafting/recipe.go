package crafting

import (
	"errors"
	"fmt"

	"stackcraft.ai/internal/sim/items"
)

var (
	ErrNilStock      = errors.New("crafting: nil inventory")
	ErrMissingInputs = errors.New("crafting: missing inputs")
)

// Stock is the part of an inventory a recipe needs.
// *inventory.Inventory satisfies it.
type Stock interface {
	ItemCount(id string) int
	TakeItem(id string, n int) items.Stack
}

// Recipe turns a list of input stacks into one output stack.
type Recipe struct {
	ID     string
	inputs []items.Stack
	output items.Stack
}

func NewRecipe(id string, output items.Stack, inputs ...items.Stack) *Recipe {
	return &Recipe{
		ID:     id,
		inputs: append([]items.Stack(nil), inputs...),
		output: output,
	}
}

func (r *Recipe) AddInput(s items.Stack) { r.inputs = append(r.inputs, s) }

// SetInput replaces input i; an index past the end appends.
func (r *Recipe) SetInput(i int, s items.Stack) {
	if i < 0 {
		return
	}
	if i >= len(r.inputs) {
		r.AddInput(s)
		return
	}
	r.inputs[i] = s
}

func (r *Recipe) RemoveInput(i int) {
	if i < 0 || i >= len(r.inputs) {
		return
	}
	r.inputs = append(r.inputs[:i], r.inputs[i+1:]...)
}

// Inputs lists the non-empty inputs in authoring order.
func (r *Recipe) Inputs() []items.Stack {
	out := make([]items.Stack, 0, len(r.inputs))
	for _, in := range r.inputs {
		if !in.IsEmpty() {
			out = append(out, in)
		}
	}
	return out
}

func (r *Recipe) SetOutput(s items.Stack) { r.output = s }

// Output reports the configured output; ok is false when none is set.
func (r *Recipe) Output() (items.Stack, bool) {
	return r.output, !r.output.IsEmpty()
}

// Craftable reports whether stock holds every input.
func (r *Recipe) Craftable(stock Stock) bool {
	if stock == nil {
		return false
	}
	for _, in := range r.Inputs() {
		if stock.ItemCount(in.ID()) < in.Count() {
			return false
		}
	}
	return true
}

// TakeInputs withdraws the inputs from stock if it holds all of them.
//
// The check and the withdrawals are separate steps: anything that mutates
// stock in between (an observer, another caller) can invalidate the check.
func (r *Recipe) TakeInputs(stock Stock) error {
	if stock == nil {
		return ErrNilStock
	}
	if !r.Craftable(stock) {
		return fmt.Errorf("%w: recipe %q", ErrMissingInputs, r.ID)
	}
	for _, in := range r.Inputs() {
		stock.TakeItem(in.ID(), in.Count())
	}
	return nil
}

// Craft consumes the inputs and returns a copy of the output. On failure
// stock is left untouched and the returned stack is empty.
func (r *Recipe) Craft(stock Stock) (items.Stack, error) {
	if err := r.TakeInputs(stock); err != nil {
		return items.Stack{}, err
	}
	return r.output.Clone(), nil
}

package loot

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"stackcraft.ai/internal/sim/items"
)

const (
	DefaultWeight = 100
	DefaultMin    = 1
	DefaultMax    = 100
)

var (
	ErrNoRoot    = errors.New("loot: table has no root")
	ErrNoEntries = errors.New("loot: weighted array has no entries")
	ErrNoEntry   = errors.New("loot: randomize has no entry")
	ErrCycle     = errors.New("loot: entry would contain itself")
)

// Rand is the random source an entry draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Entry is one node of a loot tree: *Constant, *Randomize or *WeightedArray.
type Entry interface {
	Weight() int
	SetWeight(w int)
	SetRand(r Rand)
	resolve(path []Entry) (items.Stack, error)
	children() []Entry
}

// base carries the fields every entry shares.
type base struct {
	weight int
	rng    Rand
}

func newBase() base { return base{weight: DefaultWeight} }

func (b *base) Weight() int { return b.weight }

// SetWeight stores w; negative weights count as zero.
func (b *base) SetWeight(w int) {
	if w < 0 {
		w = 0
	}
	b.weight = w
}

// SetRand replaces the entry's random source; nil restores the shared one.
func (b *base) SetRand(r Rand) { b.rng = r }

func (b *base) rand() Rand {
	if b.rng == nil {
		return globalRand{}
	}
	return b.rng
}

// Resolve produces one stack from e.
func Resolve(e Entry) (items.Stack, error) {
	if e == nil {
		return items.Stack{}, ErrNoEntry
	}
	return e.resolve(nil)
}

// contains reports whether target is reachable from e (e included).
func contains(e, target Entry) bool {
	if e == nil {
		return false
	}
	if e == target {
		return true
	}
	for _, c := range e.children() {
		if contains(c, target) {
			return true
		}
	}
	return false
}

func descend(path []Entry, e Entry) ([]Entry, error) {
	for _, p := range path {
		if p == e {
			return nil, ErrCycle
		}
	}
	return append(path, e), nil
}

// Constant always yields a copy of its output.
type Constant struct {
	base
	Output items.Stack
}

func NewConstant(output items.Stack) *Constant {
	return &Constant{base: newBase(), Output: output}
}

func (c *Constant) children() []Entry { return nil }

func (c *Constant) resolve([]Entry) (items.Stack, error) {
	if c.Output.IsEmpty() {
		return items.Stack{}, nil
	}
	return c.Output.Clone(), nil
}

// Randomize resolves its wrapped entry and replaces the count with a uniform
// draw from [min, max], capped at the item's stack size.
type Randomize struct {
	base
	entry Entry
	min   int
	max   int
}

func NewRandomize(entry Entry, min, max int) (*Randomize, error) {
	r := &Randomize{base: newBase(), min: DefaultMin, max: DefaultMax}
	if err := r.SetEntry(entry); err != nil {
		return nil, err
	}
	r.SetMin(min)
	r.SetMax(max)
	return r, nil
}

func (r *Randomize) Entry() Entry { return r.entry }

func (r *Randomize) SetEntry(e Entry) error {
	if e != nil && contains(e, r) {
		return ErrCycle
	}
	r.entry = e
	return nil
}

func (r *Randomize) Min() int { return r.min }
func (r *Randomize) Max() int { return r.max }

// SetMin clamps to at least 1 and drags max along when it would fall below.
func (r *Randomize) SetMin(n int) {
	if n < 1 {
		n = 1
	}
	r.min = n
	if r.max < n {
		r.max = n
	}
}

// SetMax clamps to at least min.
func (r *Randomize) SetMax(n int) {
	if n < r.min {
		n = r.min
	}
	r.max = n
}

func (r *Randomize) children() []Entry {
	if r.entry == nil {
		return nil
	}
	return []Entry{r.entry}
}

func (r *Randomize) resolve(path []Entry) (items.Stack, error) {
	path, err := descend(path, r)
	if err != nil {
		return items.Stack{}, err
	}
	if r.entry == nil {
		return items.Stack{}, ErrNoEntry
	}
	s, err := r.entry.resolve(path)
	if err != nil || s.IsEmpty() {
		return s, err
	}
	lo := max(1, r.min)
	hi := min(r.max, s.Limit())
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 1 {
		lo = 1
	}
	// SetCount clamps draws above the stack size.
	s.SetCount(lo + r.rand().IntN(hi-lo+1))
	return s, nil
}

// WeightedArray picks one child with probability proportional to its weight.
type WeightedArray struct {
	base
	entries []Entry
}

func NewWeightedArray(entries ...Entry) (*WeightedArray, error) {
	w := &WeightedArray{base: newBase()}
	for _, e := range entries {
		if err := w.Add(e); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Add appends e. Nil entries are ignored; an entry that already contains the
// array is rejected with ErrCycle.
func (w *WeightedArray) Add(e Entry) error {
	if e == nil {
		return nil
	}
	if contains(e, w) {
		return fmt.Errorf("%w: weighted array", ErrCycle)
	}
	w.entries = append(w.entries, e)
	return nil
}

func (w *WeightedArray) Remove(i int) {
	if i < 0 || i >= len(w.entries) {
		return
	}
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
}

func (w *WeightedArray) Entries() []Entry {
	return append([]Entry(nil), w.entries...)
}

func (w *WeightedArray) children() []Entry { return w.entries }

// TotalWeight sums the weights of every child.
func (w *WeightedArray) TotalWeight() int {
	total := 0
	for _, e := range w.entries {
		total += e.Weight()
	}
	return total
}

// pick returns the index of the child selected by a draw r in [0, TotalWeight].
// A draw equal to the total falls through to the last child.
func (w *WeightedArray) pick(r int) int {
	acc := 0
	for i, e := range w.entries {
		acc += e.Weight()
		if r < acc {
			return i
		}
	}
	return len(w.entries) - 1
}

func (w *WeightedArray) resolve(path []Entry) (items.Stack, error) {
	path, err := descend(path, w)
	if err != nil {
		return items.Stack{}, err
	}
	if len(w.entries) == 0 {
		return items.Stack{}, ErrNoEntries
	}
	r := w.rand().IntN(w.TotalWeight() + 1)
	return w.entries[w.pick(r)].resolve(path)
}

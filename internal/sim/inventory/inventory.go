package inventory

import (
	"log"

	"github.com/google/uuid"

	"stackcraft.ai/internal/sim/items"
)

// ChangeEvent is delivered after a slot has been replaced. Item is a copy of
// the new slot contents.
type ChangeEvent struct {
	Inventory string
	Slot      int
	Item      items.Stack
}

// Inventory is a fixed-length row of slots plus a per-item total index.
//
// Every mutation goes through Set, which keeps the index in step with the
// slots and notifies observers synchronously. Not safe for concurrent use.
type Inventory struct {
	id    string
	slots []items.Stack
	cache map[string]int

	observers map[int]func(ChangeEvent)
	nextObs   int
	obsOrder  []int

	log *log.Logger
}

func New(size int, logger *log.Logger) *Inventory {
	if logger == nil {
		logger = log.Default()
	}
	inv := &Inventory{
		id:        uuid.NewString(),
		cache:     map[string]int{},
		observers: map[int]func(ChangeEvent){},
		log:       logger,
	}
	inv.SetSize(size)
	return inv
}

func (inv *Inventory) ID() string { return inv.id }

func (inv *Inventory) Size() int { return len(inv.slots) }

// SetSize empties truncated slots before dropping them and pads with empty
// slots when growing.
func (inv *Inventory) SetSize(size int) {
	if size < 0 {
		size = 0
	}
	for i := size; i < len(inv.slots); i++ {
		inv.Set(i, items.Stack{})
	}
	if size < len(inv.slots) {
		inv.slots = inv.slots[:size]
		return
	}
	for len(inv.slots) < size {
		inv.slots = append(inv.slots, items.Stack{})
	}
}

// OnChange registers fn for every slot change. The returned func removes it.
func (inv *Inventory) OnChange(fn func(ChangeEvent)) (cancel func()) {
	id := inv.nextObs
	inv.nextObs++
	inv.observers[id] = fn
	inv.obsOrder = append(inv.obsOrder, id)
	return func() {
		delete(inv.observers, id)
		for i, o := range inv.obsOrder {
			if o == id {
				inv.obsOrder = append(inv.obsOrder[:i], inv.obsOrder[i+1:]...)
				break
			}
		}
	}
}

func (inv *Inventory) notify(slot int) {
	ev := ChangeEvent{Inventory: inv.id, Slot: slot, Item: inv.slots[slot]}
	for _, id := range append([]int(nil), inv.obsOrder...) {
		if fn, ok := inv.observers[id]; ok {
			fn(ev)
		}
	}
}

func (inv *Inventory) inRange(i int) bool { return i >= 0 && i < len(inv.slots) }

// Set is the single slot-write primitive. It returns false if i is out of range.
func (inv *Inventory) Set(i int, s items.Stack) bool {
	if !inv.inRange(i) {
		return false
	}
	if s.IsEmpty() {
		s = items.Stack{}
	}
	old := inv.slots[i]
	inv.slots[i] = s
	inv.applyDelta(old, s)
	inv.notify(i)
	return true
}

func (inv *Inventory) applyDelta(old, cur items.Stack) {
	if !cur.IsEmpty() {
		inv.addToCache(cur.ID(), cur.Count())
	}
	if !old.IsEmpty() {
		inv.addToCache(old.ID(), -old.Count())
	}
}

func (inv *Inventory) addToCache(id string, diff int) {
	total := inv.cache[id] + diff
	if total < 0 {
		inv.log.Printf("inventory %s: negative count for %q (%d); rebuilding index", inv.id, id, total)
		inv.rebuildCache()
		return
	}
	if total == 0 {
		delete(inv.cache, id)
		return
	}
	inv.cache[id] = total
}

func (inv *Inventory) rebuildCache() {
	inv.cache = make(map[string]int, len(inv.cache))
	for _, s := range inv.slots {
		if !s.IsEmpty() {
			inv.cache[s.ID()] += s.Count()
		}
	}
}

// Items returns a copy of every slot.
func (inv *Inventory) Items() []items.Stack {
	return append([]items.Stack(nil), inv.slots...)
}

// SetItems bulk-loads slots; extra stacks are ignored and missing ones become
// empty. Every slot is reported as changed.
func (inv *Inventory) SetItems(stacks []items.Stack) {
	for i := range inv.slots {
		var s items.Stack
		if i < len(stacks) && !stacks[i].IsEmpty() {
			s = stacks[i]
		}
		inv.slots[i] = s
	}
	inv.rebuildCache()
	for i := range inv.slots {
		inv.notify(i)
	}
}

func (inv *Inventory) ItemCount(id string) int { return inv.cache[id] }

func (inv *Inventory) HasItem(id string) bool { return inv.ItemCount(id) > 0 }

// Totals returns a copy of the per-item index.
func (inv *Inventory) Totals() map[string]int {
	out := make(map[string]int, len(inv.cache))
	for id, n := range inv.cache {
		out[id] = n
	}
	return out
}

func (inv *Inventory) Peek(i int) items.Stack {
	if !inv.inRange(i) {
		return items.Stack{}
	}
	return inv.slots[i]
}

func (inv *Inventory) TakeSlot(i int) items.Stack {
	s := inv.Peek(i)
	if s.IsEmpty() {
		return items.Stack{}
	}
	inv.Set(i, items.Stack{})
	return s
}

// merge moves as much of in as fits onto mine and returns both results.
func merge(mine, in items.Stack) (items.Stack, items.Stack) {
	limit := in.Limit()
	total := mine.Count() + in.Count()
	rest := 0
	if total > limit {
		rest = total - limit
		total = limit
	}
	return mine.WithCount(total), in.WithCount(rest)
}

// place puts at most one stack-size of s into an empty slot.
func (inv *Inventory) place(i int, s items.Stack) items.Stack {
	limit := s.Limit()
	if s.Count() <= limit {
		inv.Set(i, s)
		return items.Stack{}
	}
	inv.Set(i, s.WithCount(limit))
	return s.WithCount(s.Count() - limit)
}

// AddItem inserts s in a single left-to-right pass and returns what did not fit.
func (inv *Inventory) AddItem(s items.Stack) items.Stack {
	if s.IsEmpty() {
		return items.Stack{}
	}
	for i := range inv.slots {
		mine := inv.slots[i]
		if mine.IsEmpty() {
			s = inv.place(i, s)
		} else if mine.IsEqualType(s) && !mine.IsFull() {
			mine, s = merge(mine, s)
			inv.Set(i, mine)
		}
		if s.IsEmpty() {
			break
		}
	}
	return s
}

// AddSlot merges s into slot i only. Out-of-range slots return s unchanged.
func (inv *Inventory) AddSlot(i int, s items.Stack) items.Stack {
	if !inv.inRange(i) {
		return s
	}
	if s.IsEmpty() {
		return items.Stack{}
	}
	mine := inv.slots[i]
	if mine.IsEmpty() {
		return inv.place(i, s)
	}
	if !mine.IsEqualType(s) {
		return s
	}
	mine, s = merge(mine, s)
	inv.Set(i, mine)
	return s
}

// TakeItem withdraws up to n units of id, draining slots left to right. The
// slot that completes the request keeps its surplus.
func (inv *Inventory) TakeItem(id string, n int) items.Stack {
	if n <= 0 {
		return items.Stack{}
	}
	var out items.Stack
	got := 0
	for i := range inv.slots {
		s := inv.slots[i]
		if s.IsEmpty() || s.ID() != id {
			continue
		}
		if out.IsEmpty() {
			out = s
		}
		if got+s.Count() > n {
			inv.Set(i, s.WithCount(got+s.Count()-n))
			got = n
			break
		}
		inv.Set(i, items.Stack{})
		got += s.Count()
		if got == n {
			break
		}
	}
	return out.WithCount(got)
}

// SwapItem stores s in slot i and returns the previous contents, without
// merging. Out-of-range slots hand s straight back.
func (inv *Inventory) SwapItem(i int, s items.Stack) items.Stack {
	if !inv.inRange(i) {
		return s
	}
	prev := inv.slots[i]
	inv.Set(i, s)
	return prev
}

// UseSlot uses the stack in slot i on behalf of actor.
func (inv *Inventory) UseSlot(i int, actor any) items.UseResult {
	if !inv.inRange(i) || inv.slots[i].IsEmpty() {
		return items.UseFail
	}
	before := inv.slots[i]
	after := before
	res := after.Use(actor)
	if after.IsEmpty() {
		after = items.Stack{}
	}
	inv.slots[i] = after
	inv.applyDelta(before, after)
	inv.notify(i)
	return res
}

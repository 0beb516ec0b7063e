package inventory

import "stackcraft.ai/internal/sim/items"

// Slot is the contract UI collaborators use to move stacks around.
type Slot interface {
	Peek() items.Stack
	Take() items.Stack
	Swap(other items.Stack) items.Stack
	Set(s items.Stack) bool
}

// SlotView is one slot of an inventory seen through the Slot contract.
type SlotView struct {
	inv   *Inventory
	index int
}

func (inv *Inventory) Slot(i int) *SlotView {
	return &SlotView{inv: inv, index: i}
}

func (v *SlotView) Index() int { return v.index }

func (v *SlotView) Peek() items.Stack { return v.inv.Peek(v.index) }

func (v *SlotView) Take() items.Stack { return v.inv.TakeSlot(v.index) }

func (v *SlotView) Set(s items.Stack) bool { return v.inv.Set(v.index, s) }

// Swap takes the slot when other is empty, merges when both hold the same
// item (returning what did not fit) and exchanges otherwise.
func (v *SlotView) Swap(other items.Stack) items.Stack {
	if other.IsEmpty() {
		return v.Take()
	}
	if other.IsEqualType(v.Peek()) {
		return v.inv.AddSlot(v.index, other)
	}
	return v.inv.SwapItem(v.index, other)
}

// Hand is a free-standing slot, such as the stack held by a cursor.
type Hand struct {
	item     items.Stack
	onChange func(items.Stack)
}

func NewHand(onChange func(items.Stack)) *Hand {
	return &Hand{onChange: onChange}
}

func (h *Hand) Peek() items.Stack { return h.item }

func (h *Hand) Take() items.Stack {
	s := h.item
	h.Set(items.Stack{})
	return s
}

func (h *Hand) Set(s items.Stack) bool {
	if s.IsEmpty() {
		s = items.Stack{}
	}
	h.item = s
	if h.onChange != nil {
		h.onChange(s)
	}
	return true
}

// Swap merges same-item stacks up to the stack size and returns the
// overflow; different items are exchanged.
func (h *Hand) Swap(other items.Stack) items.Stack {
	cur := h.item
	if cur.IsEmpty() {
		h.Set(other)
		return items.Stack{}
	}
	if other.IsEmpty() {
		return h.Take()
	}
	if cur.IsEqualType(other) {
		merged, rest := merge(cur, other)
		h.Set(merged)
		return rest
	}
	h.Set(other)
	return cur
}

// Exchange moves the hand's stack into target and picks up whatever target
// hands back.
func Exchange(hand, target Slot) {
	hand.Set(target.Swap(hand.Take()))
}

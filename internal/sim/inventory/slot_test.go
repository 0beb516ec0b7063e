package inventory

import (
	"testing"

	"stackcraft.ai/internal/sim/items"
)

func TestSlotView_SwapTakesWhenEmptyHanded(t *testing.T) {
	r := testRegistry()
	inv := New(2, quiet())
	inv.Set(0, r.NewStack("X", 4))

	got := inv.Slot(0).Swap(r.Empty())
	if got.Count() != 4 || !inv.Peek(0).IsEmpty() {
		t.Fatalf("swap with empty should take: got=%v slot=%v", got, inv.Peek(0))
	}
}

func TestSlotView_SwapMergesSameItem(t *testing.T) {
	r := testRegistry()
	inv := New(2, quiet())
	inv.Set(0, r.NewStack("X", 8))

	rest := inv.Slot(0).Swap(r.NewStack("X", 5))
	if inv.Peek(0).Count() != 10 || rest.Count() != 3 {
		t.Fatalf("merge: slot=%v rest=%v", inv.Peek(0), rest)
	}
	checkIndex(t, inv)
}

func TestSlotView_SwapExchangesDifferentItems(t *testing.T) {
	r := testRegistry()
	inv := New(2, quiet())
	inv.Set(0, r.NewStack("X", 8))

	back := inv.Slot(0).Swap(r.NewStack("Y", 2))
	if back.ID() != "X" || back.Count() != 8 || inv.Peek(0).ID() != "Y" {
		t.Fatalf("exchange: back=%v slot=%v", back, inv.Peek(0))
	}
	checkIndex(t, inv)
}

func TestHand_Swap(t *testing.T) {
	r := testRegistry()
	var seen int
	h := NewHand(func(s items.Stack) { seen++ })

	if rest := h.Swap(r.NewStack("Y", 3)); !rest.IsEmpty() || h.Peek().Count() != 3 {
		t.Fatalf("empty hand should pick up: rest=%v hand=%v", rest, h.Peek())
	}
	if rest := h.Swap(r.NewStack("Y", 4)); rest.Count() != 2 || h.Peek().Count() != 5 {
		t.Fatalf("merge: rest=%v hand=%v", rest, h.Peek())
	}
	if back := h.Swap(r.NewStack("X", 1)); back.ID() != "Y" || h.Peek().ID() != "X" {
		t.Fatalf("exchange: back=%v hand=%v", back, h.Peek())
	}
	if got := h.Swap(r.Empty()); got.ID() != "X" || !h.Peek().IsEmpty() {
		t.Fatalf("swap with empty should take: got=%v", got)
	}
	if seen == 0 {
		t.Fatalf("hand changes should be reported")
	}
}

func TestExchange_MovesBetweenHandAndInventory(t *testing.T) {
	r := testRegistry()
	inv := New(3, quiet())
	inv.Set(0, r.NewStack("X", 6))
	inv.Set(1, r.NewStack("X", 7))
	h := NewHand(nil)

	// Pick up slot 0.
	Exchange(h, inv.Slot(0))
	if h.Peek().Count() != 6 || !inv.Peek(0).IsEmpty() {
		t.Fatalf("pick up: hand=%v slot=%v", h.Peek(), inv.Peek(0))
	}
	// Drop onto slot 1: merges and keeps the overflow in hand.
	Exchange(h, inv.Slot(1))
	if inv.Peek(1).Count() != 10 || h.Peek().Count() != 3 {
		t.Fatalf("drop: hand=%v slot=%v", h.Peek(), inv.Peek(1))
	}
	// Drop the rest into the empty slot 2.
	Exchange(h, inv.Slot(2))
	if inv.Peek(2).Count() != 3 || !h.Peek().IsEmpty() {
		t.Fatalf("place: hand=%v slot=%v", h.Peek(), inv.Peek(2))
	}
	checkIndex(t, inv)
}

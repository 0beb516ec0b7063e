package main

import (
	"testing"

	"stackcraft.ai/internal/protocol"
)

func TestPlanner_CyclesScript(t *testing.T) {
	p := newPlanner(protocol.WelcomeMsg{InventoryID: "inv", Slots: make([]protocol.ItemStack, 2), LootTables: []string{"chest", "quarry"}})
	seen := map[string]bool{}
	for i := 0; i < len(script)*2; i++ {
		op := p.next()
		if op.Type != protocol.TypeOp || op.ProtocolVersion != protocol.Version || !protocol.IsKnownOp(op.Op) {
			t.Fatalf("op %d: %+v", i, op)
		}
		if seen[op.ReqID] {
			t.Fatalf("duplicate req id %s", op.ReqID)
		}
		seen[op.ReqID] = true
		if op.Op == protocol.OpRoll && op.Table != "chest" {
			t.Fatalf("roll table: %q", op.Table)
		}
	}
	if p.round != 2 || p.step != 0 {
		t.Fatalf("round=%d step=%d", p.round, p.step)
	}
}

func TestPlanner_ObserveTracksSlots(t *testing.T) {
	p := newPlanner(protocol.WelcomeMsg{InventoryID: "inv", Slots: make([]protocol.ItemStack, 1)})
	p.observe(protocol.SlotMsg{InventoryID: "inv", Slot: 0, Item: protocol.ItemStack{ID: "WOOD", Count: 3}})
	p.observe(protocol.SlotMsg{InventoryID: "inv", Slot: 2, Item: protocol.ItemStack{ID: "WOOD", Count: 4}})
	p.observe(protocol.SlotMsg{InventoryID: "other", Slot: 0, Item: protocol.ItemStack{ID: "GEM", Count: 1}})
	got := p.totals()
	if got["WOOD"] != 7 || got["GEM"] != 0 || len(p.slots) != 3 {
		t.Fatalf("totals: %v slots=%v", got, p.slots)
	}
	p.observe(protocol.SlotMsg{InventoryID: "inv", Slot: 0})
	if p.totals()["WOOD"] != 4 {
		t.Fatalf("emptied slot still counted: %v", p.totals())
	}
}

package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/session"
)

func change(seq uint64, size, slot int, item string, count int, totals map[string]int) session.ChangeEntry {
	return session.ChangeEntry{Seq: seq, InventoryID: "inv", Size: size, Slot: slot, Item: item, Count: count, Totals: totals}
}

func TestReplayer_JournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewChangeLogger(dir)
	entries := []session.ChangeEntry{
		change(1, 3, 0, "WOOD", 64, map[string]int{"WOOD": 64}),
		change(2, 3, 1, "WOOD", 6, map[string]int{"WOOD": 70}),
		change(4, 3, 0, "empty", 0, map[string]int{"WOOD": 6}),
		change(5, 3, 2, "PLANK", 4, map[string]int{"WOOD": 6, "PLANK": 4}),
		// Resize to 2: slot 2 is emptied while size is still 3.
		change(6, 3, 2, "empty", 0, map[string]int{"WOOD": 6}),
		change(7, 2, 0, "STONE", 3, map[string]int{"WOOD": 6, "STONE": 3}),
	}
	for _, e := range entries {
		if err := l.WriteChange(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = l.Close()

	files, err := persistlog.ListFiles(filepath.Join(dir, "changes"), "changes")
	if err != nil || len(files) == 0 {
		t.Fatalf("list: %v %v", files, err)
	}
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	r := newReplayer(cats)
	for _, f := range files {
		if err := persistlog.ReadChanges(f, r.apply); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if r.checked != uint64(len(entries)) {
		t.Fatalf("checked %d", r.checked)
	}
	got := r.totals("inv")
	if got["WOOD"] != 6 || got["STONE"] != 3 || got["PLANK"] != 0 || len(r.invs["inv"]) != 2 {
		t.Fatalf("final state: %v slots=%d", got, len(r.invs["inv"]))
	}
}

func TestReplayer_DetectsCorruption(t *testing.T) {
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cases := []struct {
		name    string
		entries []session.ChangeEntry
		want    string
	}{
		{"totals", []session.ChangeEntry{change(1, 2, 0, "WOOD", 5, map[string]int{"WOOD": 6})}, "totals mismatch"},
		{"seq", []session.ChangeEntry{change(2, 2, 0, "WOOD", 5, map[string]int{"WOOD": 5}), change(2, 2, 1, "", 0, map[string]int{"WOOD": 5})}, "seq 2 after 2"},
		{"slot", []session.ChangeEntry{change(1, 2, 2, "WOOD", 5, map[string]int{"WOOD": 5})}, "outside size"},
		{"unknown", []session.ChangeEntry{change(1, 2, 0, "DIRT", 1, map[string]int{"DIRT": 1})}, "unknown item"},
		{"oversize", []session.ChangeEntry{change(1, 2, 0, "GEM", 9, map[string]int{"GEM": 9})}, "exceeds stack size"},
		{"malformed", []session.ChangeEntry{change(1, 2, 0, "WOOD", 0, nil)}, "malformed"},
	}
	for _, tc := range cases {
		r := newReplayer(cats)
		var err error
		for _, e := range tc.entries {
			if err = r.apply(e); err != nil {
				break
			}
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v want %q", tc.name, err, tc.want)
		}
	}
}

func TestReplayer_OnlyFilter(t *testing.T) {
	r := newReplayer(nil)
	r.only = "other"
	if err := r.apply(change(1, 1, 0, "WOOD", 1, map[string]int{"WOOD": 999})); err != nil {
		t.Fatalf("filtered entry should be skipped: %v", err)
	}
	if r.checked != 0 || len(r.invs) != 0 {
		t.Fatalf("filtered entry applied")
	}
}

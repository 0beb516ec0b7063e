package log

import (
	"testing"
	"time"

	"stackcraft.ai/internal/sim/session"
)

func TestChangeLogger_RoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewChangeLogger(dir)
	clock := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	for i := 1; i <= 3; i++ {
		if err := l.WriteChange(session.ChangeEntry{Seq: uint64(i), InventoryID: "inv", Slot: i, Item: "WOOD", Count: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if i == 2 {
			clock = clock.Add(2 * time.Minute)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir+"/changes", "changes")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected an hourly rotation, got %v", files)
	}

	var seqs []uint64
	for _, f := range files {
		if err := ReadChanges(f, func(e session.ChangeEntry) error {
			seqs = append(seqs, e.Seq)
			return nil
		}); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[2] != 3 {
		t.Fatalf("seqs: %v", seqs)
	}
}

func TestAuditLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	if err := l.WriteAudit(session.AuditEntry{Seq: 9, Action: "CRAFT", Ref: "planks", Item: "PLANK", Count: 4, OK: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = l.Close()

	files, err := ListFiles(dir+"/audit", "audit")
	if err != nil || len(files) != 1 {
		t.Fatalf("list: %v %v", files, err)
	}
	var got []session.AuditEntry
	if err := ReadAudit(files[0], func(e session.AuditEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Ref != "planks" || !got[0].OK {
		t.Fatalf("entries: %+v", got)
	}
}

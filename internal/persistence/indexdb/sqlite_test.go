package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/session"
	"stackcraft.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqChange, change: session.ChangeEntry{Seq: 1}}

	_ = s.WriteChange(session.ChangeEntry{Seq: 2})
	_ = s.WriteAudit(session.AuditEntry{Seq: 3})

	st := s.Stats()
	if st.DropChangeTotal != 1 {
		t.Fatalf("DropChangeTotal=%d want=1", st.DropChangeTotal)
	}
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "changes.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs(filepath.Join("..", "..", "..", "configs"), cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert catalogs: %v", err)
	}

	_ = idx.WriteChange(session.ChangeEntry{Seq: 1, ClientID: "C1", InventoryID: "inv", Slot: 0, Item: "WOOD", Count: 3, Totals: map[string]int{"WOOD": 3}})
	_ = idx.WriteChange(session.ChangeEntry{Seq: 2, ClientID: "C1", InventoryID: "inv", Slot: 0, Item: "empty", Count: 0, Totals: map[string]int{}})
	_ = idx.WriteAudit(session.AuditEntry{Seq: 3, ClientID: "C1", InventoryID: "inv", Action: "CRAFT", Ref: "planks", Item: "PLANK", Count: 4, OK: true})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	_ = idx.WriteChange(session.ChangeEntry{Seq: 4})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM changes`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("changes: n=%d err=%v", n, err)
	}
	var totals string
	if err := db.QueryRow(`SELECT totals_json FROM changes WHERE seq=1`).Scan(&totals); err != nil || totals != `{"WOOD":3}` {
		t.Fatalf("totals: %q err=%v", totals, err)
	}
	var ok int
	var ref string
	if err := db.QueryRow(`SELECT ok, ref FROM audits WHERE action='CRAFT'`).Scan(&ok, &ref); err != nil || ok != 1 || ref != "planks" {
		t.Fatalf("audit: ok=%d ref=%q err=%v", ok, ref, err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil || n < 4 {
		t.Fatalf("catalog rows: n=%d err=%v", n, err)
	}
}

package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/session"
	"stackcraft.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropChange atomic.Uint64
	dropAudit  atomic.Uint64
}

type reqKind int

const (
	reqChange reqKind = iota + 1
	reqAudit
)

type req struct {
	kind reqKind

	change session.ChangeEntry
	audit  session.AuditEntry
}

type Stats struct {
	DropChangeTotal uint64
	DropAuditTotal  uint64
	QueueDepth      int
	QueueCapacity   int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS changes (
			seq INTEGER PRIMARY KEY,
			time_ms INTEGER NOT NULL,
			client_id TEXT NOT NULL,
			inventory_id TEXT NOT NULL,
			slot INTEGER NOT NULL,
			item TEXT NOT NULL,
			count INTEGER NOT NULL,
			totals_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_inventory_seq ON changes(inventory_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_item_seq ON changes(item, seq);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY,
			time_ms INTEGER NOT NULL,
			client_id TEXT NOT NULL,
			inventory_id TEXT NOT NULL,
			action TEXT NOT NULL,
			ref TEXT,
			item TEXT NOT NULL,
			count INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_ref ON audits(action, ref);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteChange(entry session.ChangeEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqChange, change: entry}:
	default:
		// Drop if the indexer falls behind; the JSONL journal remains the source of truth.
		s.dropChange.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry session.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropChangeTotal: s.dropChange.Load(),
		DropAuditTotal:  s.dropAudit.Load(),
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	read := func(name, file, digest string) {
		if configDir == "" {
			return
		}
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	read("items_defs", "items.json", cats.Items.Digest)
	read("recipes", "recipes.json", cats.Recipes.Digest)

	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "items_palette", digest: hex.EncodeToString(sum[:]), json: b})
	}
	{
		// Loot trees are stored as canonical JSON for easier querying.
		tables := make([]catalogs.LootTableDef, 0, len(cats.Loot.ByName))
		for _, name := range cats.Loot.Names() {
			tables = append(tables, cats.Loot.ByName[name])
		}
		if b, _ := json.Marshal(tables); len(b) > 0 {
			rows = append(rows, kv{name: "loot", digest: cats.Loot.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertChange, _ := s.db.Prepare(`INSERT OR REPLACE INTO changes(seq,time_ms,client_id,inventory_id,slot,item,count,totals_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(seq,time_ms,client_id,inventory_id,action,ref,item,count,ok,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertChange != nil {
			_ = insertChange.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqChange:
			c := r.change
			totals, _ := json.Marshal(c.Totals)
			if insertChange != nil {
				if _, err := tx.Stmt(insertChange).Exec(
					int64(c.Seq),
					c.TimeMs,
					c.ClientID,
					c.InventoryID,
					c.Slot,
					c.Item,
					c.Count,
					string(totals),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			ok := 0
			if a.OK {
				ok = 1
			}
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Seq),
					a.TimeMs,
					a.ClientID,
					a.InventoryID,
					a.Action,
					a.Ref,
					a.Item,
					a.Count,
					ok,
					a.Reason,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	Inventory string
	Item      string
	Limit     int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", "data/index/changes.sqlite", "sqlite index path")
	inv := fs.String("inventory", "", "inventory_id filter (changes, audits)")
	item := fs.String("item", "", "item filter (changes, audits)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "changes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := dbQuery{Inventory: strings.TrimSpace(*inv), Item: strings.TrimSpace(*item), Limit: *limit}
	if err := runQuery(db, q, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-db PATH] [-inventory ID] [-item ID] [-limit N] changes|audits|crafts|loot|catalogs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// runQuery writes one JSON object per row to w.
func runQuery(db *sql.DB, q string, o dbQuery, w io.Writer) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	switch q {
	case "changes":
		where, args := filters(o)
		rows, err := db.Query(`SELECT seq,time_ms,client_id,inventory_id,slot,item,count,totals_json FROM changes`+where+` ORDER BY seq DESC LIMIT ?`, append(args, o.Limit)...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq         int64           `json:"seq"`
				TimeMs      int64           `json:"time_ms"`
				ClientID    string          `json:"client_id"`
				InventoryID string          `json:"inventory_id"`
				Slot        int             `json:"slot"`
				Item        string          `json:"item"`
				Count       int             `json:"count"`
				Totals      json.RawMessage `json:"totals"`
			}
			var totals string
			if err := rows.Scan(&r.Seq, &r.TimeMs, &r.ClientID, &r.InventoryID, &r.Slot, &r.Item, &r.Count, &totals); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Totals = json.RawMessage(totals)
			writeJSON(w, r)
		}
		return rows.Err()

	case "audits":
		where, args := filters(o)
		return queryAudits(db, w, where, args, o.Limit)

	case "crafts", "loot":
		action := "CRAFT"
		if q == "loot" {
			action = "ROLL"
		}
		rows, err := db.Query(`SELECT ref, COUNT(*), SUM(ok), COALESCE(SUM(CASE WHEN ok=1 THEN count ELSE 0 END),0) FROM audits WHERE action=? GROUP BY ref ORDER BY COUNT(*) DESC, ref LIMIT ?`, action, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Ref      string `json:"ref"`
				Attempts int    `json:"attempts"`
				OK       int    `json:"ok"`
				Units    int    `json:"units"`
			}
			if err := rows.Scan(&r.Ref, &r.Attempts, &r.OK, &r.Units); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(w, r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(w, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func queryAudits(db *sql.DB, w io.Writer, where string, args []any, limit int) error {
	rows, err := db.Query(`SELECT seq,time_ms,client_id,inventory_id,action,ref,item,count,ok,reason FROM audits`+where+` ORDER BY seq DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Seq         int64  `json:"seq"`
			TimeMs      int64  `json:"time_ms"`
			ClientID    string `json:"client_id"`
			InventoryID string `json:"inventory_id"`
			Action      string `json:"action"`
			Ref         string `json:"ref,omitempty"`
			Item        string `json:"item,omitempty"`
			Count       int    `json:"count"`
			OK          bool   `json:"ok"`
			Reason      string `json:"reason,omitempty"`
		}
		var ref, reason sql.NullString
		var ok int
		if err := rows.Scan(&r.Seq, &r.TimeMs, &r.ClientID, &r.InventoryID, &r.Action, &ref, &r.Item, &r.Count, &ok, &reason); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		r.Ref, r.Reason, r.OK = ref.String, reason.String, ok == 1
		writeJSON(w, r)
	}
	return rows.Err()
}

func filters(o dbQuery) (string, []any) {
	var conds []string
	var args []any
	if o.Inventory != "" {
		conds = append(conds, "inventory_id=?")
		args = append(args, o.Inventory)
	}
	if o.Item != "" {
		conds = append(conds, "item=?")
		args = append(args, o.Item)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func printJSON(v any) { writeJSON(os.Stdout, v) }

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

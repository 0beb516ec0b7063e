package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/items"
	"stackcraft.ai/internal/sim/session"
)

func main() {
	var (
		journalDir = flag.String("journal", "data/journal", "journal directory containing changes/")
		configDir  = flag.String("configs", "", "config directory; when set, item ids and stack sizes are checked too")
		inventory  = flag.String("inventory", "", "only replay this inventory id (optional)")
	)
	flag.Parse()

	var cats *catalogs.Catalogs
	if *configDir != "" {
		c, err := catalogs.Load(*configDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load catalogs:", err)
			os.Exit(1)
		}
		cats = c
	}

	files, err := persistlog.ListFiles(filepath.Join(*journalDir, "changes"), "changes")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list changes:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no changes files found in", *journalDir)
		os.Exit(1)
	}

	r := newReplayer(cats)
	r.only = *inventory
	for _, path := range files {
		if err := persistlog.ReadChanges(path, r.apply); err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d changes inventories=%d\n", r.checked, len(r.invs))
	for _, id := range r.inventoryIDs() {
		fmt.Printf("  %s totals=%v\n", id, r.totals(id))
	}
}

// replayer rebuilds slot contents from change entries and checks every
// logged total against the sum of the rebuilt slots.
type replayer struct {
	cats *catalogs.Catalogs
	only string

	invs    map[string][]slot
	lastSeq uint64
	checked uint64
}

type slot struct {
	item  string
	count int
}

func newReplayer(cats *catalogs.Catalogs) *replayer {
	return &replayer{cats: cats, invs: map[string][]slot{}}
}

func (r *replayer) apply(e session.ChangeEntry) error {
	if e.Seq <= r.lastSeq {
		return fmt.Errorf("seq %d after %d", e.Seq, r.lastSeq)
	}
	r.lastSeq = e.Seq
	if r.only != "" && e.InventoryID != r.only {
		return nil
	}
	if e.Item == items.EmptyID {
		e.Item = ""
	}
	if e.Slot < 0 || e.Slot >= e.Size {
		return fmt.Errorf("seq %d: slot %d outside size %d", e.Seq, e.Slot, e.Size)
	}
	if e.Count < 0 || (e.Count == 0) != (e.Item == "") {
		return fmt.Errorf("seq %d: malformed stack %q x%d", e.Seq, e.Item, e.Count)
	}
	if err := r.checkItem(e); err != nil {
		return err
	}

	slots := r.invs[e.InventoryID]
	// Shrinking empties the dropped slots first, so truncation loses nothing.
	if len(slots) > e.Size {
		slots = slots[:e.Size]
	}
	for len(slots) < e.Size {
		slots = append(slots, slot{})
	}
	slots[e.Slot] = slot{item: e.Item, count: e.Count}
	r.invs[e.InventoryID] = slots

	got := r.totals(e.InventoryID)
	if !sameTotals(got, e.Totals) {
		return fmt.Errorf("seq %d: totals mismatch for %s: replayed=%v logged=%v", e.Seq, e.InventoryID, got, e.Totals)
	}
	r.checked++
	return nil
}

func (r *replayer) checkItem(e session.ChangeEntry) error {
	if r.cats == nil || e.Item == "" {
		return nil
	}
	def, ok := r.cats.Items.Defs[e.Item]
	if !ok {
		return fmt.Errorf("seq %d: unknown item %q", e.Seq, e.Item)
	}
	if e.Count > def.StackSize {
		return fmt.Errorf("seq %d: %s x%d exceeds stack size %d", e.Seq, e.Item, e.Count, def.StackSize)
	}
	return nil
}

func (r *replayer) totals(inv string) map[string]int {
	out := map[string]int{}
	for _, s := range r.invs[inv] {
		if s.item != "" && s.count > 0 {
			out[s.item] += s.count
		}
	}
	return out
}

func (r *replayer) inventoryIDs() []string {
	ids := make([]string, 0, len(r.invs))
	for id := range r.invs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sameTotals(a, b map[string]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if v != 0 && a[k] != v {
			return false
		}
	}
	return true
}

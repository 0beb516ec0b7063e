package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/economy"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "roll":
			rollCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "catalogs":
			catalogsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the journal files in order.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	journalDir := fs.String("journal", "data/journal", "journal directory")
	_ = fs.Parse(args)

	for _, kind := range []string{"changes", "audit"} {
		files, err := persistlog.ListFiles(filepath.Join(*journalDir, kind), kind)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
	}
}

func rollCmd(args []string) {
	fs := flag.NewFlagSet("roll", flag.ExitOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	table := fs.String("table", "", "loot table name (required)")
	n := fs.Int("n", 1000, "number of rolls")
	seed := fs.Uint64("seed", 1, "loot seed (0 uses the global source)")
	_ = fs.Parse(args)

	if *table == "" {
		fmt.Fprintln(os.Stderr, "missing -table")
		os.Exit(2)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	eco := economy.New(log.New(io.Discard, "", 0))
	if err := eco.Install(cats, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "install:", err)
		os.Exit(1)
	}
	defer eco.Close()

	h, err := rollHistogram(eco, *table, *n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "roll:", err)
		os.Exit(1)
	}
	for _, row := range h {
		printJSON(row)
	}
}

type histRow struct {
	Item   string  `json:"item"`
	Rolls  int     `json:"rolls"`
	Share  float64 `json:"share"`
	Units  int     `json:"units"`
	MinQty int     `json:"min_qty"`
	MaxQty int     `json:"max_qty"`
}

// rollHistogram rolls table n times and groups the drops by item. Empty
// results are reported under an empty item id.
func rollHistogram(eco *economy.Economy, table string, n int) ([]histRow, error) {
	t, ok := eco.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", economy.ErrUnknownTable, table)
	}
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive")
	}
	byItem := map[string]*histRow{}
	for i := 0; i < n; i++ {
		st, err := t.Resolve()
		if err != nil {
			return nil, err
		}
		id := st.ID()
		r := byItem[id]
		if r == nil {
			r = &histRow{Item: id, MinQty: st.Count(), MaxQty: st.Count()}
			byItem[id] = r
		}
		r.Rolls++
		r.Units += st.Count()
		r.MinQty = min(r.MinQty, st.Count())
		r.MaxQty = max(r.MaxQty, st.Count())
	}
	out := make([]histRow, 0, len(byItem))
	for _, r := range byItem {
		r.Share = float64(r.Rolls) / float64(n)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rolls != out[j].Rolls {
			return out[i].Rolls > out[j].Rolls
		}
		return out[i].Item < out[j].Item
	})
	return out, nil
}

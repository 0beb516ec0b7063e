package economy

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"

	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/crafting"
	"stackcraft.ai/internal/sim/inventory"
	"stackcraft.ai/internal/sim/items"
	"stackcraft.ai/internal/sim/loot"
)

var (
	ErrUnknownRecipe = errors.New("economy: unknown recipe")
	ErrUnknownTable  = errors.New("economy: unknown loot table")
	ErrClosed        = errors.New("economy: closed")
)

// Economy owns the item registry, the recipe book and the loot tables that
// belong together. Everything built from it (stacks, inventories) is bound
// to its registry.
type Economy struct {
	Items   *items.Registry
	Recipes *crafting.Book

	tables map[string]*loot.Table
	log    *log.Logger
	closed bool
}

func New(logger *log.Logger) *Economy {
	if logger == nil {
		logger = log.Default()
	}
	return &Economy{
		Items:   items.NewRegistry(logger),
		Recipes: crafting.NewBook(logger),
		tables:  map[string]*loot.Table{},
		log:     logger,
	}
}

// Install registers every catalog entry. A non-zero seed makes every loot
// table draw from its own deterministic source.
func (e *Economy) Install(c *catalogs.Catalogs, seed uint64) error {
	if e.closed {
		return ErrClosed
	}
	for _, id := range c.Items.Palette {
		def := c.Items.Defs[id]
		use, ok := items.ParseUseResult(def.Use)
		if !ok {
			return fmt.Errorf("item %s: unknown use %q", id, def.Use)
		}
		d := items.NewData(def.DisplayName, def.StackSize)
		d.Icon = def.Icon
		d.Use = items.Always(use)
		e.Items.Register(id, d)
	}

	for _, id := range c.Recipes.Order {
		def := c.Recipes.ByID[id]
		r := crafting.NewRecipe(id, items.Stack{})
		for _, in := range def.Inputs {
			s, err := e.stack(in)
			if err != nil {
				return fmt.Errorf("recipe %s: %w", id, err)
			}
			r.AddInput(s)
		}
		if def.Output != nil {
			s, err := e.stack(*def.Output)
			if err != nil {
				return fmt.Errorf("recipe %s: %w", id, err)
			}
			r.SetOutput(s)
		}
		e.Recipes.Register(r)
	}

	for i, name := range c.Loot.Names() {
		def := c.Loot.ByName[name]
		var rng loot.Rand
		if seed != 0 {
			rng = rand.New(rand.NewPCG(seed, uint64(i)))
		}
		root, err := e.buildEntry(def.Root, rng)
		if err != nil {
			return fmt.Errorf("loot %s: %w", name, err)
		}
		t := loot.NewTable(name, e.log)
		if err := t.SetRoot(root); err != nil {
			return fmt.Errorf("loot %s: %w", name, err)
		}
		e.tables[name] = t
	}
	e.log.Printf("economy: installed %d items, %d recipes, %d loot tables",
		e.Items.Len(), e.Recipes.Len(), len(e.tables))
	return nil
}

func (e *Economy) stack(a catalogs.ItemCount) (items.Stack, error) {
	if _, err := e.Items.Lookup(a.Item); err != nil {
		return items.Stack{}, err
	}
	return e.Items.NewStack(a.Item, a.Count), nil
}

func (e *Economy) buildEntry(n *catalogs.LootNode, rng loot.Rand) (loot.Entry, error) {
	var out loot.Entry
	switch {
	case n.Constant != nil:
		s, err := e.stack(*n.Constant)
		if err != nil {
			return nil, err
		}
		out = loot.NewConstant(s)
	case n.Randomize != nil:
		inner, err := e.buildEntry(n.Randomize.Entry, rng)
		if err != nil {
			return nil, err
		}
		rz, err := loot.NewRandomize(inner, n.Randomize.Min, n.Randomize.Max)
		if err != nil {
			return nil, err
		}
		out = rz
	default:
		w, err := loot.NewWeightedArray()
		if err != nil {
			return nil, err
		}
		for _, c := range n.Weighted {
			child, err := e.buildEntry(c, rng)
			if err != nil {
				return nil, err
			}
			if err := w.Add(child); err != nil {
				return nil, err
			}
		}
		out = w
	}
	if n.Weight != nil {
		out.SetWeight(*n.Weight)
	}
	if rng != nil {
		out.SetRand(rng)
	}
	return out, nil
}

// AddTable registers t under its name, replacing any previous table.
func (e *Economy) AddTable(t *loot.Table) {
	if t == nil {
		e.log.Printf("economy: add table: nil table")
		return
	}
	e.tables[t.Name] = t
}

func (e *Economy) Table(name string) (*loot.Table, bool) {
	t, ok := e.tables[name]
	return t, ok
}

func (e *Economy) TableNames() []string {
	names := make([]string, 0, len(e.tables))
	for n := range e.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Economy) NewInventory(size int) *inventory.Inventory {
	return inventory.New(size, e.log)
}

// Craft runs the named recipe against inv and stores the output in inv.
// Whatever does not fit is returned.
func (e *Economy) Craft(inv *inventory.Inventory, recipeID string) (items.Stack, error) {
	r, ok := e.Recipes.Get(recipeID)
	if !ok {
		return items.Stack{}, fmt.Errorf("%w: %q", ErrUnknownRecipe, recipeID)
	}
	if inv == nil {
		return items.Stack{}, crafting.ErrNilStock
	}
	out, err := r.Craft(inv)
	if err != nil {
		return items.Stack{}, err
	}
	return inv.AddItem(out), nil
}

// Roll rolls the named table once and stores the result in inv. It returns
// the rolled stack and the part that did not fit.
func (e *Economy) Roll(inv *inventory.Inventory, table string) (rolled, rest items.Stack, err error) {
	t, ok := e.tables[table]
	if !ok {
		return items.Stack{}, items.Stack{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	rolled, err = t.Resolve()
	if err != nil {
		return items.Stack{}, items.Stack{}, err
	}
	if inv == nil || rolled.IsEmpty() {
		return rolled, rolled, nil
	}
	return rolled, inv.AddItem(rolled), nil
}

// Close tears the economy down: recipes are dropped, tables forgotten and
// every item unregistered (firing unregister hooks).
func (e *Economy) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.Recipes.Reset()
	e.tables = map[string]*loot.Table{}
	e.Items.UnregisterAll()
}

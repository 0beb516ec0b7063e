package loot

import (
	"log"

	"stackcraft.ai/internal/sim/items"
)

// Table is a named loot tree.
type Table struct {
	Name string
	root Entry
	log  *log.Logger
}

func NewTable(name string, logger *log.Logger) *Table {
	if logger == nil {
		logger = log.Default()
	}
	return &Table{Name: name, log: logger}
}

func (t *Table) Root() Entry { return t.root }

func (t *Table) SetRoot(e Entry) error {
	if e != nil {
		if _, err := descendAll(e, nil); err != nil {
			return err
		}
	}
	t.root = e
	return nil
}

// descendAll walks the tree and fails on the first repeated node on a path.
func descendAll(e Entry, path []Entry) ([]Entry, error) {
	path, err := descend(path, e)
	if err != nil {
		return nil, err
	}
	for _, c := range e.children() {
		if _, err := descendAll(c, path); err != nil {
			return nil, err
		}
	}
	return path, nil
}

// Resolve rolls the table once.
func (t *Table) Resolve() (items.Stack, error) {
	if t.root == nil {
		return items.Stack{}, ErrNoRoot
	}
	return t.root.resolve(nil)
}

// Roll is Resolve for callers that only want a stack; failures are logged
// and yield an empty stack.
func (t *Table) Roll() items.Stack {
	s, err := t.Resolve()
	if err != nil {
		t.log.Printf("loot: roll %q: %v", t.Name, err)
		return items.Stack{}
	}
	return s
}

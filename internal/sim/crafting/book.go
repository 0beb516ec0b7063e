package crafting

import "log"

// Book is the append-only list of known recipes.
type Book struct {
	recipes []*Recipe
	log     *log.Logger
}

func NewBook(logger *log.Logger) *Book {
	if logger == nil {
		logger = log.Default()
	}
	return &Book{log: logger}
}

func (b *Book) Register(r *Recipe) {
	if r == nil {
		b.log.Printf("crafting: register: nil recipe")
		return
	}
	b.recipes = append(b.recipes, r)
}

func (b *Book) AllRegistered() []*Recipe {
	return append([]*Recipe(nil), b.recipes...)
}

// AllCraftable filters the book by what stock can currently make.
func (b *Book) AllCraftable(stock Stock) []*Recipe {
	if stock == nil {
		b.log.Printf("crafting: all craftable: %v", ErrNilStock)
		return nil
	}
	var out []*Recipe
	for _, r := range b.recipes {
		if r.Craftable(stock) {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the first recipe registered under id.
func (b *Book) Get(id string) (*Recipe, bool) {
	for _, r := range b.recipes {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

func (b *Book) Len() int { return len(b.recipes) }

// Reset drops every recipe. It is the teardown hook of the book.
func (b *Book) Reset() { b.recipes = nil }

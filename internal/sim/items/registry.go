package items

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// EmptyID is the reserved id of the empty stack. It always resolves to a
// zero-size placeholder and can never be registered.
const EmptyID = "empty"

var ErrUnknownItem = errors.New("items: unknown item id")

// Registry maps item ids to their Data. It is not safe for concurrent use;
// a single owner drives all registration and lookups.
type Registry struct {
	data  map[string]*Data
	order []string
	log   *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		data: map[string]*Data{},
		log:  logger,
	}
}

func reserved(id string) bool { return id == "" || id == EmptyID }

// Register stores d under id, unregistering any previous entry first.
func (r *Registry) Register(id string, d *Data) {
	if d == nil {
		r.log.Printf("items: register %q: nil data", id)
		return
	}
	if reserved(id) {
		r.log.Printf("items: register %q: reserved id", id)
		return
	}
	if _, ok := r.data[id]; ok {
		r.Unregister(id)
	}
	r.data[id] = d
	r.order = append(r.order, id)
}

// Unregister runs the entry's hook and removes it. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	d, ok := r.data[id]
	if !ok {
		return
	}
	if d.OnUnregister != nil {
		d.OnUnregister(id)
	}
	delete(r.data, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// UnregisterAll removes entries oldest first so hooks fire in registration order.
func (r *Registry) UnregisterAll() {
	for len(r.order) > 0 {
		r.Unregister(r.order[0])
	}
}

// Lookup returns the entry for id. Unknown ids yield the placeholder and
// ErrUnknownItem.
func (r *Registry) Lookup(id string) (*Data, error) {
	if d, ok := r.data[id]; ok {
		return d, nil
	}
	if reserved(id) {
		return placeholder(), nil
	}
	return placeholder(), fmt.Errorf("%w: %q", ErrUnknownItem, id)
}

// Get is Lookup that logs instead of returning the error.
func (r *Registry) Get(id string) *Data {
	d, err := r.Lookup(id)
	if err != nil {
		r.log.Printf("items: get: %v", err)
	}
	return d
}

func (r *Registry) Has(id string) bool {
	_, ok := r.data[id]
	return ok
}

func (r *Registry) Len() int { return len(r.data) }

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) All() map[string]*Data {
	out := make(map[string]*Data, len(r.data))
	for id, d := range r.data {
		out[id] = d
	}
	return out
}

// SetAll replaces the whole catalog. Nil entries and reserved ids are skipped.
func (r *Registry) SetAll(all map[string]*Data) {
	r.UnregisterAll()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d := all[id]
		if d == nil || reserved(id) {
			continue
		}
		r.Register(id, d)
	}
}

// Use dispatches to the use behavior of the stack's item.
func (r *Registry) Use(s *Stack, actor any) UseResult {
	if s == nil || s.IsEmpty() {
		return UseFail
	}
	return r.Get(s.id).Use.apply(s, actor)
}

func (r *Registry) Empty() Stack {
	return Stack{id: EmptyID, reg: r}
}

// NewStack builds a stack of id clamped to the item's stack size.
func (r *Registry) NewStack(id string, count int) Stack {
	s := Stack{id: id, reg: r}
	s.SetCount(count)
	return s
}

func (r *Registry) FromAmount(a Amount) Stack {
	return r.NewStack(a.ID, a.Count)
}

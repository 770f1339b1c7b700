package templates

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/xalatechnologies/aplus/registry"
)

// Library is an immutable set of templates indexed by id and by spec.
type Library struct {
	byID   map[string]Template
	bySpec map[string][]string
}

// NewLibrary builds a library from the built-in catalogue plus any extra
// templates. An extra template must reference a known spec and must not reuse
// an existing id.
func NewLibrary(extra ...Template) (*Library, error) {
	l := &Library{
		byID:   make(map[string]Template),
		bySpec: make(map[string][]string),
	}
	for _, s := range registry.All() {
		for _, v := range variantsFor(s) {
			if err := l.add(build(s, v)); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range extra {
		if _, ok := registry.Lookup(t.SpecID); !ok {
			return nil, fmt.Errorf("template %q: unknown spec %q", t.ID, t.SpecID)
		}
		if err := l.add(t.clone()); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Library) add(t Template) error {
	if t.ID == "" {
		return fmt.Errorf("template for spec %q has no id", t.SpecID)
	}
	if _, dup := l.byID[t.ID]; dup {
		return fmt.Errorf("duplicate template id %q", t.ID)
	}
	l.byID[t.ID] = t
	l.bySpec[t.SpecID] = append(l.bySpec[t.SpecID], t.ID)
	return nil
}

// Lookup returns the template with the given id.
func (l *Library) Lookup(id string) (Template, bool) {
	t, ok := l.byID[id]
	if !ok {
		return Template{}, false
	}
	return t.clone(), true
}

// ForSpec returns every template implementing specID, default first.
func (l *Library) ForSpec(specID string) []Template {
	ids := l.bySpec[specID]
	out := make([]Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.byID[id].clone())
	}
	return out
}

// DefaultID returns the id of the default template for specID, or "" when the
// spec has no templates.
func (l *Library) DefaultID(specID string) string {
	ids := l.bySpec[specID]
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Pick returns a random template for specID.
func (l *Library) Pick(specID string) (Template, bool) {
	ids := l.bySpec[specID]
	if len(ids) == 0 {
		return Template{}, false
	}
	return l.byID[ids[rand.IntN(len(ids))]].clone(), true
}

// PickWith is Pick with a caller-supplied source, for reproducible choices.
func (l *Library) PickWith(specID string, r *rand.Rand) (Template, bool) {
	ids := l.bySpec[specID]
	if len(ids) == 0 {
		return Template{}, false
	}
	return l.byID[ids[r.IntN(len(ids))]].clone(), true
}

// All returns every template sorted by id.
func (l *Library) All() []Template {
	out := make([]Template, 0, len(l.byID))
	for _, t := range l.byID {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of templates.
func (l *Library) Len() int {
	return len(l.byID)
}

var builtin = sync.OnceValue(func() *Library {
	l, err := NewLibrary()
	if err != nil {
		panic("templates: built-in catalogue: " + err.Error())
	}
	return l
})

// Default returns the built-in library.
func Default() *Library {
	return builtin()
}

// Lookup returns a built-in template by id.
func Lookup(id string) (Template, bool) { return Default().Lookup(id) }

// ForSpec returns the built-in templates for a spec.
func ForSpec(specID string) []Template { return Default().ForSpec(specID) }

// Pick returns a random built-in template for a spec.
func Pick(specID string) (Template, bool) { return Default().Pick(specID) }

// DefaultID returns the default built-in template id for a spec.
func DefaultID(specID string) string { return Default().DefaultID(specID) }

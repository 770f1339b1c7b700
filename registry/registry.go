// Package registry is the catalogue of abstract module specifications.
//
// A Spec describes what a module type may contain: how many images, which
// text roles and how long each text may be, and the canonical canvas size.
// Concrete layouts live in package templates.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Category groups specs by the tier of the content page they belong to.
type Category string

const (
	Standard Category = "standard"
	Premium  Category = "premium"
)

// Role is the semantic role of a text slot. The set is closed; templates
// choose a role when they are authored and the binder never guesses.
type Role int

const (
	RoleStatic Role = iota
	RoleHeadline
	RoleBody
	RoleBullets
	RoleSidebar
	RoleSpecifications
)

var roleNames = map[Role]string{
	RoleStatic:         "static",
	RoleHeadline:       "headline",
	RoleBody:           "body",
	RoleBullets:        "bullets",
	RoleSidebar:        "sidebar",
	RoleSpecifications: "specifications",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	v, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("unknown role %q", b)
	}
	*r = v
	return nil
}

// ParseRole maps a role name to a Role. Unknown names map to RoleStatic.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == s {
			return r, true
		}
	}
	return RoleStatic, false
}

// Range is an inclusive count range.
type Range struct {
	Min int
	Max int
}

// Size is a pixel size.
type Size struct {
	W int
	H int
}

// TextBound constrains one text role.
type TextBound struct {
	Role     Role
	Required bool
	MinChars int
	MaxChars int
}

// Spec is an abstract module type.
type Spec struct {
	ID       string
	Name     string
	Category Category
	// Images is the number of image slots; Min of them are required.
	Images Range
	// ImageSize is the minimum recommended source size per image.
	ImageSize Size
	Text      []TextBound
	Width     int
	Height    int
	// Overlay specs draw their text on top of a full-bleed image.
	Overlay bool
}

// RequiredText returns the number of required text slots.
func (s Spec) RequiredText() int {
	n := 0
	for _, t := range s.Text {
		if t.Required {
			n++
		}
	}
	return n
}

// OptionalText returns the number of optional text slots.
func (s Spec) OptionalText() int {
	return len(s.Text) - s.RequiredText()
}

// Bound returns the text bound for a role.
func (s Spec) Bound(r Role) (TextBound, bool) {
	for _, t := range s.Text {
		if t.Role == r {
			return t, true
		}
	}
	return TextBound{}, false
}

// Violation describes content that falls outside a spec's bounds.
type Violation struct {
	Role    string
	Message string
}

func (v Violation) String() string {
	return v.Role + ": " + v.Message
}

// Check reports text and image content that does not fit the spec. It is
// advisory; rendering never depends on it.
func (s Spec) Check(texts map[Role]string, images int) []Violation {
	var out []Violation
	for _, b := range s.Text {
		n := utf8.RuneCountInString(strings.TrimSpace(texts[b.Role]))
		switch {
		case n == 0 && b.Required:
			out = append(out, Violation{Role: b.Role.String(), Message: "required text is missing"})
		case n == 0:
		case b.MinChars > 0 && n < b.MinChars:
			out = append(out, Violation{Role: b.Role.String(), Message: fmt.Sprintf("%d characters, minimum is %d", n, b.MinChars)})
		case b.MaxChars > 0 && n > b.MaxChars:
			out = append(out, Violation{Role: b.Role.String(), Message: fmt.Sprintf("%d characters, maximum is %d", n, b.MaxChars)})
		}
	}
	if images < s.Images.Min {
		out = append(out, Violation{Role: "images", Message: fmt.Sprintf("%d images, minimum is %d", images, s.Images.Min)})
	}
	if images > s.Images.Max {
		out = append(out, Violation{Role: "images", Message: fmt.Sprintf("%d images, maximum is %d", images, s.Images.Max)})
	}
	return out
}

var byID = func() map[string]Spec {
	m := make(map[string]Spec, len(catalogue))
	for _, s := range catalogue {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the spec with the given id.
func Lookup(id string) (Spec, bool) {
	s, ok := byID[id]
	if !ok {
		return Spec{}, false
	}
	return clone(s), true
}

// All returns every spec, standard before premium, then by id.
func All() []Spec {
	out := make([]Spec, 0, len(catalogue))
	for _, s := range catalogue {
		out = append(out, clone(s))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category == Standard
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(s Spec) Spec {
	s.Text = append([]TextBound(nil), s.Text...)
	return s
}

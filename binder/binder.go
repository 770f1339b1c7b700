// Package binder maps a module's structured content onto the text slots of a
// template.
//
// Each text slot carries a role fixed when the template was authored, so
// binding is a switch over a closed set rather than a match on slot names.
package binder

import (
	"strings"

	"github.com/xalatechnologies/aplus/markdown"
	"github.com/xalatechnologies/aplus/registry"
	"github.com/xalatechnologies/aplus/templates"
)

// BulletSeparator joins bullet items into a single slot string.
const BulletSeparator = " • "

// Spec is one row of a specification table.
type Spec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Content is the structured copy of one module.
type Content struct {
	Headline          string   `json:"headline,omitempty"`
	Body              string   `json:"body,omitempty"`
	Bullets           []string `json:"bullets,omitempty"`
	Sidebar           []string `json:"sidebar,omitempty"`
	Specifications    []Spec   `json:"specifications,omitempty"`
	ImageDescriptions []string `json:"image_descriptions,omitempty"`
}

// Text returns the content for a role, or "" when the content has none.
func (c Content) Text(r registry.Role) string {
	switch r {
	case registry.RoleHeadline:
		return markdown.StripInline(c.Headline)
	case registry.RoleBody:
		return markdown.Plain(c.Body)
	case registry.RoleBullets:
		return strings.Join(clean(c.Bullets), BulletSeparator)
	case registry.RoleSidebar:
		return strings.Join(clean(c.Sidebar), "\n")
	case registry.RoleSpecifications:
		lines := make([]string, 0, len(c.Specifications))
		for _, s := range c.Specifications {
			k := strings.TrimSpace(s.Key)
			v := strings.TrimSpace(s.Value)
			switch {
			case k == "" && v == "":
				continue
			case k == "":
				lines = append(lines, v)
			default:
				lines = append(lines, k+": "+v)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

// Texts returns the content keyed by role, for every role that has text.
func (c Content) Texts() map[registry.Role]string {
	out := make(map[registry.Role]string)
	for _, r := range []registry.Role{
		registry.RoleHeadline,
		registry.RoleBody,
		registry.RoleBullets,
		registry.RoleSidebar,
		registry.RoleSpecifications,
	} {
		if s := c.Text(r); s != "" {
			out[r] = s
		}
	}
	return out
}

// Bind resolves the text of every text slot in t. Slots with a content role
// take the module's text; static slots, and content slots the module leaves
// empty, take the slot's default. Slots that end up empty are left out.
func Bind(t templates.Template, c Content) map[string]string {
	out := make(map[string]string)
	for _, s := range t.TextSlots() {
		text := c.Text(s.Role)
		if text == "" {
			text = s.Default
		}
		if text != "" {
			out[s.ID] = text
		}
	}
	return out
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := markdown.StripInline(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package aplus

import (
	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/registry"
	"github.com/xalatechnologies/aplus/templates"
)

type errorResponse struct {
	Error string `json:"error"`
}

// SpecView is the JSON form of a registry spec.
type SpecView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	MinImages int             `json:"min_images"`
	MaxImages int             `json:"max_images"`
	Overlay   bool            `json:"overlay,omitempty"`
	Text      []TextBoundView `json:"text"`
	Templates []string        `json:"templates"`
}

// TextBoundView is the JSON form of a text bound.
type TextBoundView struct {
	Role     string `json:"role"`
	Required bool   `json:"required"`
	MinChars int    `json:"min_chars,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
}

func specView(s registry.Spec, lib *templates.Library) SpecView {
	v := SpecView{
		ID:        s.ID,
		Name:      s.Name,
		Category:  string(s.Category),
		Width:     s.Width,
		Height:    s.Height,
		MinImages: s.Images.Min,
		MaxImages: s.Images.Max,
		Overlay:   s.Overlay,
	}
	for _, b := range s.Text {
		v.Text = append(v.Text, TextBoundView{
			Role:     b.Role.String(),
			Required: b.Required,
			MinChars: b.MinChars,
			MaxChars: b.MaxChars,
		})
	}
	for _, t := range lib.ForSpec(s.ID) {
		v.Templates = append(v.Templates, t.ID)
	}
	return v
}

// RenderRequest asks for one module preview.
type RenderRequest struct {
	// TemplateID selects a template. When empty a variant of SpecID is picked.
	TemplateID string `json:"template_id"`
	SpecID     string `json:"spec_id"`
	// Texts sets slot text directly and wins over Content.
	Texts   map[string]string `json:"texts"`
	Content *binder.Content   `json:"content"`
	// Images maps image slot ids to URLs or locators. ImageURLs fills the
	// remaining image slots in order.
	Images    map[string]string `json:"images"`
	ImageURLs []string          `json:"image_urls"`
	Theme     *templates.Theme  `json:"theme"`
	Format    string            `json:"format"`
}

// DocumentRequest is the body of a document upsert.
type DocumentRequest struct {
	Title        string            `json:"title"`
	Theme        *templates.Theme  `json:"theme"`
	Modules      []exporter.Module `json:"modules"`
	SourceImages []string          `json:"source_images"`
}

// ExportResponse is returned by the export endpoint.
type ExportResponse struct {
	DownloadURL   string                   `json:"download_url"`
	FileSizeBytes int64                    `json:"file_size_bytes"`
	ModuleCount   int                      `json:"module_count"`
	Requested     int                      `json:"requested"`
	Failures      []exporter.ModuleFailure `json:"failures,omitempty"`
}

// ImageResponse describes an uploaded source image.
type ImageResponse struct {
	Locator      string `json:"locator"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
}

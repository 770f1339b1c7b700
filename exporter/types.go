package exporter

import (
	"context"
	"errors"
	"time"

	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/templates"
)

var (
	// ErrDocumentNotFound is returned when the document does not exist or
	// belongs to another owner.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoModules is returned for a document without modules.
	ErrNoModules = errors.New("no modules to export")
	// ErrNothingRendered is returned when every module failed to render. No
	// archive is stored.
	ErrNothingRendered = errors.New("nothing to export")
	// ErrArchiveBuild is returned when the archive cannot be assembled.
	ErrArchiveBuild = errors.New("build archive")
)

// Module is one content block of a document.
type Module struct {
	// Type is the registry spec id.
	Type string `json:"type"`
	// TemplateID selects a template explicitly. Empty means the spec default.
	TemplateID string         `json:"template_id,omitempty"`
	Content    binder.Content `json:"content"`
}

// Document is an ordered list of modules with shared styling and images.
type Document struct {
	ID      string           `json:"id"`
	OwnerID string           `json:"owner_id"`
	Title   string           `json:"title"`
	Theme   *templates.Theme `json:"theme,omitempty"`
	Modules []Module         `json:"modules"`
	// SourceImages are URLs of uploaded or generated photography.
	SourceImages []string  `json:"source_images,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentReader loads documents. It returns an error wrapping
// ErrDocumentNotFound when id is unknown.
type DocumentReader interface {
	Document(ctx context.Context, id string) (*Document, error)
}

// Fetcher retrieves the raw bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Storage persists archives and signs time-limited URLs for them.
type Storage interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// Synthesizer generates an image from a text description.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) ([]byte, error)
}

// Record summarises one finished export.
type Record struct {
	DocumentID string
	OwnerID    string
	Path       string
	Format     compositor.Format
	Requested  int
	Rendered   int
	SizeBytes  int64
	CreatedAt  time.Time
}

// Recorder keeps a history of exports.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Request asks for one document to be exported.
type Request struct {
	DocumentID string
	OwnerID    string
	Format     compositor.Format
}

// Asset is one rendered module.
type Asset struct {
	Name   string
	Data   []byte
	Format compositor.Format
	Width  int
	Height int
}

// ModuleFailure explains why a module is missing from the archive.
type ModuleFailure struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Result describes a stored archive.
type Result struct {
	DownloadURL   string          `json:"download_url"`
	Path          string          `json:"path"`
	Locator       string          `json:"locator"`
	FileSizeBytes int64           `json:"file_size_bytes"`
	ModuleCount   int             `json:"module_count"`
	Requested     int             `json:"requested"`
	Failures      []ModuleFailure `json:"failures,omitempty"`
}

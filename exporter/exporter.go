// Package exporter renders every module of a document and bundles the
// results into one zip archive.
//
// Modules are rendered independently and concurrently. A module that cannot
// be rendered is left out and reported in the result; the export fails only
// when the document is missing or empty, when nothing renders, or when the
// archive cannot be built or stored.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/templates"
)

const (
	DefaultBucket       = "exports"
	DefaultURLTTL       = time.Hour
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 15 * time.Second
	DefaultDeadline     = 5 * time.Minute
)

// Assignment decides which source image fills which image slot.
type Assignment string

const (
	// AssignFirst puts the first source image in every image slot.
	AssignFirst Assignment = "first"
	// AssignRoundRobin cycles through the source images, starting at an
	// offset given by the module position.
	AssignRoundRobin Assignment = "round-robin"
)

// ParseAssignment maps a name to an Assignment. Empty means AssignFirst.
func ParseAssignment(s string) (Assignment, error) {
	switch Assignment(strings.ToLower(strings.TrimSpace(s))) {
	case "", AssignFirst:
		return AssignFirst, nil
	case AssignRoundRobin, "roundrobin":
		return AssignRoundRobin, nil
	default:
		return "", fmt.Errorf("unknown image assignment %q", s)
	}
}

// Exporter turns documents into archives.
type Exporter struct {
	reader  DocumentReader
	fetcher Fetcher
	store   Storage

	library      *templates.Library
	compositor   *compositor.Compositor
	synth        Synthesizer
	recorder     Recorder
	logger       *log.Logger
	now          func() time.Time
	bucket       string
	urlTTL       time.Duration
	concurrency  int
	fetchTimeout time.Duration
	deadline     time.Duration
	assignment   Assignment
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLibrary sets the template library. The built-in library is the default.
func WithLibrary(l *templates.Library) Option {
	return func(e *Exporter) { e.library = l }
}

// WithCompositor sets the compositor used for rendering.
func WithCompositor(c *compositor.Compositor) Option {
	return func(e *Exporter) { e.compositor = c }
}

// WithBucket sets the storage bucket for archives.
func WithBucket(b string) Option {
	return func(e *Exporter) { e.bucket = b }
}

// WithURLTTL sets how long download URLs stay valid.
func WithURLTTL(d time.Duration) Option {
	return func(e *Exporter) { e.urlTTL = d }
}

// WithConcurrency bounds the number of modules rendered at once.
func WithConcurrency(n int) Option {
	return func(e *Exporter) { e.concurrency = n }
}

// WithFetchTimeout bounds each source image fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Exporter) { e.fetchTimeout = d }
}

// WithDeadline bounds a whole export.
func WithDeadline(d time.Duration) Option {
	return func(e *Exporter) { e.deadline = d }
}

// WithAssignment sets how source images map onto image slots.
func WithAssignment(a Assignment) Option {
	return func(e *Exporter) { e.assignment = a }
}

// WithSynthesizer generates images for documents without source images.
func WithSynthesizer(s Synthesizer) Option {
	return func(e *Exporter) { e.synth = s }
}

// WithRecorder records finished exports.
func WithRecorder(r Recorder) Option {
	return func(e *Exporter) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New returns an Exporter reading documents from reader, fetching images with
// fetcher and storing archives in store.
func New(reader DocumentReader, fetcher Fetcher, store Storage, opts ...Option) *Exporter {
	e := &Exporter{
		reader:       reader,
		fetcher:      fetcher,
		store:        store,
		library:      templates.Default(),
		compositor:   compositor.New(),
		now:          time.Now,
		bucket:       DefaultBucket,
		urlTTL:       DefaultURLTTL,
		concurrency:  DefaultConcurrency,
		fetchTimeout: DefaultFetchTimeout,
		deadline:     DefaultDeadline,
		assignment:   AssignFirst,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Export renders the document's modules in order and stores them as one zip
// archive.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}
	if req.Format == "" {
		req.Format = compositor.PNG
	}
	logger := e.logger.With("document", req.DocumentID, "owner", req.OwnerID)

	doc, err := e.reader.Document(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read document %s: %w", req.DocumentID, err)
	}
	if doc == nil || (doc.OwnerID != "" && doc.OwnerID != req.OwnerID) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, req.DocumentID)
	}
	if len(doc.Modules) == 0 {
		return nil, fmt.Errorf("%w: document %s", ErrNoModules, doc.ID)
	}

	assets, failures, err := e.renderAll(ctx, doc, req.Format)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", doc.ID, err)
	}
	for _, f := range failures {
		logger.Warn("module skipped", "index", f.Index, "type", f.Type, "reason", f.Reason)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: all %d modules failed", ErrNothingRendered, len(doc.Modules))
	}

	now := e.now().UTC()
	archive, err := buildArchive(assets, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveBuild, err)
	}

	path := archivePath(req.OwnerID, doc.ID, now)
	locator, err := e.store.Put(ctx, e.bucket, path, archive, "application/zip")
	if err != nil {
		return nil, fmt.Errorf("store archive: %w", err)
	}
	url, err := e.store.SignedURL(ctx, e.bucket, path, e.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("sign archive url: %w", err)
	}

	res := &Result{
		DownloadURL:   url,
		Path:          path,
		Locator:       locator,
		FileSizeBytes: int64(len(archive)),
		ModuleCount:   len(assets),
		Requested:     len(doc.Modules),
		Failures:      failures,
	}
	if e.recorder != nil {
		err := e.recorder.Record(ctx, Record{
			DocumentID: doc.ID,
			OwnerID:    req.OwnerID,
			Path:       path,
			Format:     req.Format,
			Requested:  res.Requested,
			Rendered:   res.ModuleCount,
			SizeBytes:  res.FileSizeBytes,
			CreatedAt:  now,
		})
		if err != nil {
			logger.Error("record export", "err", err)
		}
	}
	logger.Info("export stored", "path", path, "modules", res.ModuleCount, "requested", res.Requested, "bytes", res.FileSizeBytes)
	return res, nil
}

// renderAll renders modules with bounded concurrency. Results keep module
// order whatever order the renders finish in.
func (e *Exporter) renderAll(ctx context.Context, doc *Document, format compositor.Format) ([]Asset, []ModuleFailure, error) {
	n := len(doc.Modules)
	assets := make([]*Asset, n)
	failures := make([]*ModuleFailure, n)
	src := newSources(e.fetcher, e.synth, e.fetchTimeout, e.logger)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, m := range doc.Modules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := e.renderModule(ctx, src, doc, i, m, format)
			if err != nil {
				failures[i] = &ModuleFailure{Index: i + 1, Type: m.Type, Reason: err.Error()}
				return nil
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var outA []Asset
	var outF []ModuleFailure
	for i := range n {
		if assets[i] != nil {
			outA = append(outA, *assets[i])
		}
		if failures[i] != nil {
			outF = append(outF, *failures[i])
		}
	}
	return outA, outF, nil
}

var errNoTemplate = errors.New("no template")

func (e *Exporter) renderModule(ctx context.Context, src *sources, doc *Document, i int, m Module, format compositor.Format) (a *Asset, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render panic", "index", i+1, "type", m.Type, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	tpl, ok := e.resolve(m)
	if !ok {
		return nil, fmt.Errorf("%w for module type %q", errNoTemplate, m.Type)
	}

	images := src.forSlots(ctx, tpl.ImageSlots(), doc.SourceImages, m.Content, e.pick(i))
	texts := binder.Bind(tpl, m.Content)

	raw, err := e.compositor.RenderModule(tpl, images, texts, doc.Theme)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	data, err := compositor.Convert(raw, format)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	return &Asset{
		Name:   AssetName(i, m.Type, format),
		Data:   data,
		Format: format,
		Width:  tpl.Width,
		Height: tpl.Height,
	}, nil
}

// resolve finds the module's template by explicit id, falling back to the
// default template of its type.
func (e *Exporter) resolve(m Module) (templates.Template, bool) {
	if m.TemplateID != "" {
		if t, ok := e.library.Lookup(m.TemplateID); ok {
			return t, true
		}
	}
	id := e.library.DefaultID(m.Type)
	if id == "" {
		return templates.Template{}, false
	}
	return e.library.Lookup(id)
}

// pick returns the source index for image slot j of module i.
func (e *Exporter) pick(i int) func(j, n int) int {
	if e.assignment == AssignRoundRobin {
		return func(j, n int) int { return (i + j) % n }
	}
	return func(int, int) int { return 0 }
}

// AssetName is the archive entry name of module i (zero based).
func AssetName(i int, moduleType string, f compositor.Format) string {
	return fmt.Sprintf("module-%d-%s.%s", i+1, segment(moduleType), f.Ext())
}

func archivePath(owner, documentID string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%s.zip", segment(owner), segment(documentID), now.Format("20060102T150405"), uuid.NewString())
}

// segment makes s safe as a single path segment.
func segment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		return "anonymous"
	}
	return s
}

// Package aplus is the HTTP service around the module renderer: it stores
// documents, renders previews, exports archives and serves signed downloads.
//
// Callers build an App from a Config, then Init and Start it. Collaborators
// can be replaced with Options, which is how tests run the service without
// network access.
package aplus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/fetch"
	"github.com/xalatechnologies/aplus/history"
	"github.com/xalatechnologies/aplus/storage"
	"github.com/xalatechnologies/aplus/synth"
	"github.com/xalatechnologies/aplus/templates"
)

// App wires together the stores, the exporter, handlers and middleware.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Store    *Store
	History  *history.Store
	Objects  storage.Store
	Library  *templates.Library
	Exporter *exporter.Exporter
	Logger   *log.Logger

	fetcher      exporter.Fetcher
	synth        exporter.Synthesizer
	compositor   *compositor.Compositor
	limiter      *ExportLimiter
	closers      []func() error
	customRoutes []func(*App)
	initialized  bool
}

// New creates an App. Nothing is opened until Init or Start.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		compositor: compositor.New(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "aplus"})
		if lvl, err := log.ParseLevel(a.Config.LogLevel); err == nil {
			a.Logger.SetLevel(lvl)
		}
	}
	return a
}

// Init opens the databases and storage, builds the exporter and registers
// middleware and routes. It is called by Start and is safe to call once
// before it for tests.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	assignment, err := exporter.ParseAssignment(a.Config.ImageAssignment)
	if err != nil {
		return fmt.Errorf("aplus: %w", err)
	}

	if err := a.initLibrary(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("aplus: init store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if a.Objects == nil {
		objects, err := a.openObjects()
		if err != nil {
			return err
		}
		a.Objects = objects
	}

	if a.fetcher == nil {
		opts := []fetch.Option{
			fetch.WithAssets(a.Objects),
			fetch.WithTimeout(a.Config.FetchTimeout),
			fetch.WithCache(a.Config.FetchCacheTTL, a.Config.FetchCacheSize),
			fetch.WithLogger(a.Logger.WithPrefix("fetch")),
		}
		if a.Config.AllowPrivateFetch {
			opts = append(opts, fetch.AllowPrivate())
		}
		fc := fetch.New(opts...)
		a.fetcher = fc
		a.closers = append(a.closers, fc.Close)
	}

	if a.synth == nil && a.Config.GeminiAPIKey != "" {
		g, err := synth.New(context.Background(), a.Config.GeminiAPIKey,
			synth.WithModel(a.Config.GeminiModel),
			synth.WithStyle(a.Config.SynthStyle),
			synth.WithLogger(a.Logger.WithPrefix("synth")),
		)
		if err != nil {
			return fmt.Errorf("aplus: init synthesizer: %w", err)
		}
		a.synth = g
	}

	exportOpts := []exporter.Option{
		exporter.WithLibrary(a.Library),
		exporter.WithCompositor(a.compositor),
		exporter.WithBucket(a.Config.ExportBucket),
		exporter.WithURLTTL(a.Config.URLTTL),
		exporter.WithConcurrency(a.Config.Concurrency),
		exporter.WithFetchTimeout(a.Config.FetchTimeout),
		exporter.WithDeadline(a.Config.ExportDeadline),
		exporter.WithAssignment(assignment),
		exporter.WithLogger(a.Logger.WithPrefix("exporter")),
	}
	if a.synth != nil {
		exportOpts = append(exportOpts, exporter.WithSynthesizer(a.synth))
	}

	if a.Config.HistoryEnabled {
		h, err := history.Open(a.Config.HistoryDatabasePath, a.Logger.WithPrefix("history"))
		if err != nil {
			return fmt.Errorf("aplus: init history: %w", err)
		}
		a.History = h
		a.closers = append(a.closers, h.Close)
		exportOpts = append(exportOpts, exporter.WithRecorder(h))

		stop := h.StartCleanupScheduler(a.Config.HistoryRetention, a.Config.CleanupInterval, a.removeArchives)
		a.closers = append(a.closers, func() error { stop(); return nil })
	}

	a.Exporter = exporter.New(a.Store, a.fetcher, a.Objects, exportOpts...)

	a.limiter = NewExportLimiter(a.Config.ExportLimit, a.Config.ExportWindow)
	a.closers = append(a.closers, func() error { a.limiter.Close(); return nil })

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) initLibrary() error {
	if a.Config.TemplatePath == "" {
		a.Library = templates.Default()
		return nil
	}
	extra, err := templates.LoadHCL(a.Config.TemplatePath)
	if err != nil {
		return fmt.Errorf("aplus: load templates: %w", err)
	}
	for _, t := range extra {
		for _, w := range t.Validate() {
			a.Logger.Warn("template", "problem", w)
		}
	}
	lib, err := templates.NewLibrary(extra...)
	if err != nil {
		return fmt.Errorf("aplus: load templates: %w", err)
	}
	a.Logger.Info("templates loaded", "extra", len(extra), "total", lib.Len())
	a.Library = lib
	return nil
}

func (a *App) openObjects() (storage.Store, error) {
	switch a.Config.StorageBackend {
	case "local":
		if a.Config.SigningSecret == "" {
			return nil, errors.New("aplus: SigningSecret is required for local storage")
		}
		l, err := storage.NewLocal(a.Config.StorageDir, a.Config.BaseURL, []byte(a.Config.SigningSecret))
		if err != nil {
			return nil, fmt.Errorf("aplus: init storage: %w", err)
		}
		return l, nil
	case "s3":
		s, err := storage.NewS3(a.Config.S3)
		if err != nil {
			return nil, fmt.Errorf("aplus: init storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("aplus: unknown storage backend %q", a.Config.StorageBackend)
	}
}

// removeArchives deletes the archives of expired history entries when the
// backend supports deletion.
func (a *App) removeArchives(expired []history.Entry) {
	d, ok := a.Objects.(interface {
		Delete(ctx context.Context, bucket, path string) error
	})
	if !ok {
		return
	}
	for _, e := range expired {
		if err := d.Delete(context.Background(), a.Config.ExportBucket, e.Path); err != nil {
			a.Logger.Warn("remove expired archive", "path", e.Path, "err", err)
		}
	}
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "storage", a.Config.StorageBackend, "templates", a.Library.Len())
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

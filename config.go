package aplus

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/storage"
)

// Config holds all configuration for an aplus service.
type Config struct {
	Addr    string // Listen address (default ":8080")
	BaseURL string // Public URL used in signed download links (default "http://localhost:8080")

	DatabasePath        string // Document SQLite path (default "data/aplus.db")
	HistoryEnabled      bool   // Record exports in the history database
	HistoryDatabasePath string // History SQLite path (default "data/history.db")
	HistoryRetention    time.Duration
	CleanupInterval     time.Duration

	StorageBackend string // "local" (default) or "s3"
	StorageDir     string // Root of the local backend (default "data/objects")
	SigningSecret  string // Required for the local backend
	S3             storage.S3Config
	ExportBucket   string
	UploadBucket   string
	URLTTL         time.Duration

	TemplatePath string // Optional HCL file or directory with extra templates

	Concurrency     int
	FetchTimeout    time.Duration
	ExportDeadline  time.Duration
	ImageAssignment string // "first" (default) or "round-robin"
	ExportLimit     int    // Exports per owner per ExportWindow
	ExportWindow    time.Duration

	FetchCacheTTL     time.Duration
	FetchCacheSize    int
	AllowPrivateFetch bool

	GeminiAPIKey string // Enables image synthesis when set
	GeminiModel  string
	SynthStyle   string

	MaxUploadBytes int64
	MaxSourceWidth int

	LogLevel string
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/aplus.db"
	}
	if c.HistoryDatabasePath == "" {
		c.HistoryDatabasePath = "data/history.db"
	}
	if c.HistoryRetention == 0 {
		c.HistoryRetention = 30 * 24 * time.Hour
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Hour
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "local"
	}
	if c.StorageDir == "" {
		c.StorageDir = "data/objects"
	}
	if c.ExportBucket == "" {
		c.ExportBucket = exporter.DefaultBucket
	}
	if c.UploadBucket == "" {
		c.UploadBucket = "uploads"
	}
	if c.URLTTL == 0 {
		c.URLTTL = exporter.DefaultURLTTL
	}
	if c.Concurrency == 0 {
		c.Concurrency = exporter.DefaultConcurrency
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = exporter.DefaultFetchTimeout
	}
	if c.ExportDeadline == 0 {
		c.ExportDeadline = exporter.DefaultDeadline
	}
	if c.ExportLimit == 0 {
		c.ExportLimit = 10
	}
	if c.ExportWindow == 0 {
		c.ExportWindow = time.Minute
	}
	if c.FetchCacheTTL == 0 {
		c.FetchCacheTTL = 10 * time.Minute
	}
	if c.FetchCacheSize == 0 {
		c.FetchCacheSize = 256
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.MaxSourceWidth == 0 {
		c.MaxSourceWidth = 2400
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithObjects replaces the storage backend chosen by Config.StorageBackend.
func WithObjects(s storage.Store) Option {
	return func(a *App) {
		a.Objects = s
	}
}

// WithSynthesizer replaces the Gemini synthesizer.
func WithSynthesizer(s exporter.Synthesizer) Option {
	return func(a *App) {
		a.synth = s
	}
}

// WithFetcher replaces the HTTP image fetcher.
func WithFetcher(f exporter.Fetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}

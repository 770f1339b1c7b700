package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xalatechnologies/aplus"
	"github.com/xalatechnologies/aplus/storage"
)

const envPrefix = "APLUS"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "aplus",
		Short:         "Render and export product-page content modules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("templates", "", "HCL file or directory with extra templates")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("template_path", root.PersistentFlags().Lookup("templates"))

	root.AddCommand(
		newServeCmd(v),
		newRenderCmd(v),
		newTemplatesCmd(v),
		newExportCmd(v),
	)
	return root
}

func loadConfig(v *viper.Viper, file string) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file not found: %s", file)
		}
		return fmt.Errorf("read config %s: %w", file, err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it. Zero values
// are filled in by aplus.Config.
func setDefaults(v *viper.Viper) {
	for key, val := range map[string]any{
		"addr":                  "",
		"base_url":              "",
		"database_path":         "",
		"history.enabled":       true,
		"history.database_path": "",
		"history.retention":     "0s",
		"history.cleanup":       "0s",
		"storage.backend":       "",
		"storage.dir":           "",
		"storage.bucket":        "",
		"storage.upload_bucket": "",
		"storage.url_ttl":       "0s",
		"signing_secret":        "",
		"s3.region":             "",
		"s3.endpoint":           "",
		"s3.access_key":         "",
		"s3.secret_key":         "",
		"s3.path_style":         false,
		"export.concurrency":    0,
		"export.fetch_timeout":  "0s",
		"export.deadline":       "0s",
		"export.assignment":     "",
		"export.limit":          0,
		"export.window":         "0s",
		"fetch.cache_ttl":       "0s",
		"fetch.cache_size":      0,
		"fetch.allow_private":   false,
		"gemini.api_key":        "",
		"gemini.model":          "",
		"gemini.style":          "",
		"upload.max_bytes":      0,
		"upload.max_width":      0,
	} {
		v.SetDefault(key, val)
	}
}

func configFrom(v *viper.Viper) aplus.Config {
	return aplus.Config{
		Addr:                v.GetString("addr"),
		BaseURL:             v.GetString("base_url"),
		DatabasePath:        v.GetString("database_path"),
		HistoryEnabled:      v.GetBool("history.enabled"),
		HistoryDatabasePath: v.GetString("history.database_path"),
		HistoryRetention:    v.GetDuration("history.retention"),
		CleanupInterval:     v.GetDuration("history.cleanup"),
		StorageBackend:      v.GetString("storage.backend"),
		StorageDir:          v.GetString("storage.dir"),
		SigningSecret:       v.GetString("signing_secret"),
		S3: storage.S3Config{
			Region:       v.GetString("s3.region"),
			Endpoint:     v.GetString("s3.endpoint"),
			AccessKey:    v.GetString("s3.access_key"),
			SecretKey:    v.GetString("s3.secret_key"),
			UsePathStyle: v.GetBool("s3.path_style"),
		},
		ExportBucket:      v.GetString("storage.bucket"),
		UploadBucket:      v.GetString("storage.upload_bucket"),
		URLTTL:            v.GetDuration("storage.url_ttl"),
		TemplatePath:      v.GetString("template_path"),
		Concurrency:       v.GetInt("export.concurrency"),
		FetchTimeout:      v.GetDuration("export.fetch_timeout"),
		ExportDeadline:    v.GetDuration("export.deadline"),
		ImageAssignment:   v.GetString("export.assignment"),
		ExportLimit:       v.GetInt("export.limit"),
		ExportWindow:      v.GetDuration("export.window"),
		FetchCacheTTL:     v.GetDuration("fetch.cache_ttl"),
		FetchCacheSize:    v.GetInt("fetch.cache_size"),
		AllowPrivateFetch: v.GetBool("fetch.allow_private"),
		GeminiAPIKey:      v.GetString("gemini.api_key"),
		GeminiModel:       v.GetString("gemini.model"),
		SynthStyle:        v.GetString("gemini.style"),
		MaxUploadBytes:    v.GetInt64("upload.max_bytes"),
		MaxSourceWidth:    v.GetInt("upload.max_width"),
		LogLevel:          v.GetString("log_level"),
	}
}

func newLogger(w io.Writer, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: "aplus"})
	if lvl, err := log.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

func stderrLogger(v *viper.Viper) *log.Logger {
	return newLogger(os.Stderr, v.GetString("log_level"))
}

package aplus

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
	"github.com/xalatechnologies/aplus/storage"
)

// OwnerHeader carries the caller's identity, asserted by an upstream gateway.
const OwnerHeader = "X-Owner-ID"

const ownerKey = "owner"

func (a *App) setupMiddleware() {
	e := a.Echo
	logger := a.Logger.WithPrefix("http")

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestID())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "ip", v.RemoteIP, "id", v.RequestID}
			if v.Error != nil {
				kv = append(kv, "err", v.Error)
			}
			if v.Status >= 500 {
				logger.Error("request", kv...)
			} else {
				logger.Info("request", kv...)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.BodyLimit(bodyLimit(a.Config.MaxUploadBytes)))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			// Archives and rasters are already compressed.
			return strings.HasPrefix(p, storage.DownloadPrefix) || p == "/api/render"
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
	}))

	e.Use(cacheControlMiddleware)
}

// bodyLimit formats n bytes for middleware.BodyLimit, leaving room for
// multipart framing around an upload.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n+1<<20, 10)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, storage.DownloadPrefix):
			c.Response().Header().Set("Cache-Control", "private, max-age=300")
		case path == "/api/specs" || path == "/api/templates":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		default:
			c.Response().Header().Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

// requireOwner rejects requests without an owner header.
func requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner := strings.TrimSpace(c.Request().Header.Get(OwnerHeader))
		if owner == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+OwnerHeader+" header")
		}
		c.Set(ownerKey, owner)
		return next(c)
	}
}

func ownerOf(c echo.Context) string {
	s, _ := c.Get(ownerKey).(string)
	return s
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, exporter.ErrDocumentNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exporter.ErrNoModules), errors.Is(err, exporter.ErrNothingRendered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrOwnerConflict):
		return http.StatusConflict
	case errors.Is(err, compositor.ErrUnknownFormat), errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrBadSignature):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrExpired):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		code = errorStatus(err)
		if code < 500 {
			msg = err.Error()
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		a.Logger.Error("server error", "uri", c.Request().RequestURI, "err", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}

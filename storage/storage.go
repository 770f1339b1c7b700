// Package storage keeps export archives and uploaded source images, and signs
// time-limited download URLs for them.
//
// Every backend returns locators of the form asset://bucket/path so callers
// can hand them back to Get without knowing where the bytes live.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get for an unknown object.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidPath is returned for empty bucket names and paths that
	// escape their bucket.
	ErrInvalidPath = errors.New("invalid object path")
	// ErrBadSignature is returned when a signed URL does not verify.
	ErrBadSignature = errors.New("bad signature")
	// ErrExpired is returned when a signed URL is past its expiry.
	ErrExpired = errors.New("link expired")
)

// LocatorScheme prefixes every locator.
const LocatorScheme = "asset://"

// Store is implemented by every backend.
type Store interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// Locator returns the locator for an object.
func Locator(bucket, p string) string {
	return LocatorScheme + bucket + "/" + p
}

// ParseLocator splits a locator into bucket and path.
func ParseLocator(s string) (bucket, p string, ok bool) {
	rest, found := strings.CutPrefix(s, LocatorScheme)
	if !found {
		return "", "", false
	}
	bucket, p, found = strings.Cut(rest, "/")
	if !found || bucket == "" || p == "" {
		return "", "", false
	}
	return bucket, p, true
}

// Clean validates bucket and object path and returns the path in canonical
// form. Paths are slash separated and may not leave the bucket.
func Clean(bucket, p string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	if p == "" || strings.Contains(p, `\`) || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return clean, nil
}

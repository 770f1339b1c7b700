package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local stores objects under a directory and signs URLs with an HMAC secret.
// Signed URLs point at DownloadPrefix below BaseURL and are checked with
// Verify by the handler that serves them.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// DownloadPrefix is the URL path under which signed downloads are served.
const DownloadPrefix = "/downloads/"

// NewLocal returns a Local rooted at dir. The directory is created if needed.
func NewLocal(dir, baseURL string, secret []byte) (*Local, error) {
	if len(secret) == 0 {
		return nil, errors.New("storage: empty signing secret")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (l *Local) file(bucket, p string) (string, string, error) {
	clean, err := Clean(bucket, p)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(l.root, bucket, filepath.FromSlash(clean)), clean, nil
}

// Put writes data atomically and returns its locator.
func (l *Local) Put(_ context.Context, bucket, p string, data []byte, _ string) (string, error) {
	name, clean, err := l.file(bucket, p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".put-*")
	if err != nil {
		return "", fmt.Errorf("storage: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	return Locator(bucket, clean), nil
}

// Get reads an object.
func (l *Local) Get(_ context.Context, bucket, p string) ([]byte, error) {
	name, _, err := l.file(bucket, p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, p)
	}
	return b, err
}

// Delete removes an object. Removing a missing object is not an error.
func (l *Local) Delete(_ context.Context, bucket, p string) error {
	name, _, err := l.file(bucket, p)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SignedURL returns a download URL valid for ttl.
func (l *Local) SignedURL(_ context.Context, bucket, p string, ttl time.Duration) (string, error) {
	clean, err := Clean(bucket, p)
	if err != nil {
		return "", err
	}
	expires := l.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", l.sign(bucket, clean, expires))
	return l.baseURL + DownloadPrefix + bucket + "/" + clean + "?" + q.Encode(), nil
}

// Verify checks the expires and sig query values of a signed URL.
func (l *Local) Verify(bucket, p, expires, sig string) error {
	clean, err := Clean(bucket, p)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	want := l.sign(bucket, clean, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	if l.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (l *Local) sign(bucket, p string, expires int64) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s/%s\n%d", bucket, p, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator(t *testing.T) {
	loc := Locator("exports", "o/d/a.zip")
	assert.Equal(t, "asset://exports/o/d/a.zip", loc)

	b, p, ok := ParseLocator(loc)
	require.True(t, ok)
	assert.Equal(t, "exports", b)
	assert.Equal(t, "o/d/a.zip", p)

	for _, bad := range []string{"", "https://x/y", "asset://", "asset://bucket", "asset:///p"} {
		_, _, ok := ParseLocator(bad)
		assert.False(t, ok, bad)
	}
}

func TestClean(t *testing.T) {
	got, err := Clean("b", "a/./b//c.png")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.png", got)

	for _, tt := range []struct{ bucket, path string }{
		{"", "x"},
		{"b/c", "x"},
		{"..", "x"},
		{"b", ""},
		{"b", "/abs"},
		{"b", "../escape"},
		{"b", "a/../../escape"},
		{"b", `a\b`},
	} {
		_, err := Clean(tt.bucket, tt.path)
		assert.ErrorIs(t, err, ErrInvalidPath, "%q %q", tt.bucket, tt.path)
	}
}

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), "https://aplus.test/", []byte("secret"))
	require.NoError(t, err)
	return l
}

func TestLocalPutGetDelete(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	loc, err := l.Put(ctx, "exports", "o/d/x.zip", []byte("zip bytes"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "asset://exports/o/d/x.zip", loc)

	got, err := l.Get(ctx, "exports", "o/d/x.zip")
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(got))

	require.NoError(t, l.Delete(ctx, "exports", "o/d/x.zip"))
	require.NoError(t, l.Delete(ctx, "exports", "o/d/x.zip"))
	_, err = l.Get(ctx, "exports", "o/d/x.zip")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Put(ctx, "exports", "../../etc/passwd", nil, "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalSignedURL(t *testing.T) {
	l := newLocal(t)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	raw, err := l.SignedURL(context.Background(), "exports", "o/d/x.zip", time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "aplus.test", u.Host)
	assert.Equal(t, "/downloads/exports/o/d/x.zip", u.Path)

	q := u.Query()
	assert.Equal(t, "1700003600", q.Get("expires"))
	require.NoError(t, l.Verify("exports", "o/d/x.zip", q.Get("expires"), q.Get("sig")))

	assert.ErrorIs(t, l.Verify("exports", "o/d/y.zip", q.Get("expires"), q.Get("sig")), ErrBadSignature)
	assert.ErrorIs(t, l.Verify("exports", "o/d/x.zip", "1700009999", q.Get("sig")), ErrBadSignature)
	assert.ErrorIs(t, l.Verify("exports", "o/d/x.zip", "soon", q.Get("sig")), ErrBadSignature)

	now = now.Add(2 * time.Hour)
	assert.ErrorIs(t, l.Verify("exports", "o/d/x.zip", q.Get("expires"), q.Get("sig")), ErrExpired)
}

func TestNewLocalNeedsSecret(t *testing.T) {
	_, err := NewLocal(t.TempDir(), "", nil)
	assert.Error(t, err)
}

// fakeS3 answers just enough of the S3 REST API for path-style requests.
type fakeS3 struct {
	mu      sync.Mutex
	methods []string
	paths   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.methods = append(f.methods, r.Method)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/missing.zip"):
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	case r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("zip bytes"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3(t *testing.T, h http.Handler) *S3 {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewS3(S3Config{
		Region:       "us-east-1",
		Endpoint:     srv.URL,
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return s
}

func TestS3PutGet(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(t, fake)
	ctx := context.Background()

	loc, err := s.Put(ctx, "exports", "o/d/x.zip", []byte("zip bytes"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "asset://exports/o/d/x.zip", loc)

	got, err := s.Get(ctx, "exports", "o/d/x.zip")
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(got))

	_, err = s.Get(ctx, "exports", "o/d/missing.zip")
	assert.ErrorIs(t, err, ErrNotFound)

	require.GreaterOrEqual(t, len(fake.paths), 2)
	assert.Equal(t, http.MethodPut, fake.methods[0])
	assert.Equal(t, "/exports/o/d/x.zip", fake.paths[0])
}

func TestS3SignedURL(t *testing.T) {
	s := newS3(t, &fakeS3{})

	raw, err := s.SignedURL(context.Background(), "exports", "o/d/x.zip", time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/exports/o/d/x.zip", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNewS3Validation(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.Error(t, err)
	_, err = NewS3(S3Config{Region: "eu-west-1"})
	assert.Error(t, err)
}

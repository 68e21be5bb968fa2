package messaging

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/swaasthya/saathi/internal/reliability"
)

func TestMediaFetcherSendsBasicAuthToGatewayHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	f := NewMediaFetcher(MediaFetcherConfig{Username: "AC1", Password: "tok", AuthHostSuffix: "127.0.0.1"})
	dst := filepath.Join(t.TempDir(), "m.png")
	ct, err := f.Fetch(context.Background(), srv.URL+"/m", dst)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if b, _ := os.ReadFile(dst); string(b) != "png-bytes" {
		t.Fatalf("body = %q", b)
	}
}

func TestMediaFetcherSkipsAuthForOtherHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("credentials leaked to non-gateway host")
		}
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()
	f := NewMediaFetcher(MediaFetcherConfig{Username: "AC1", Password: "tok"})
	if _, err := f.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestMediaFetcherStatusAndSizeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()
	f := NewMediaFetcher(MediaFetcherConfig{MaxBytes: 10})
	dir := t.TempDir()

	_, err := f.Fetch(context.Background(), srv.URL+"/missing", filepath.Join(dir, "a"))
	var ue *reliability.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusNotFound || ue.Retryable {
		t.Fatalf("Fetch() error = %v, want non-retryable 404", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/big", filepath.Join(dir, "b")); !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("Fetch() error = %v, want ErrMediaTooLarge", err)
	}
}

func TestMediaFetcherDecodesDataURL(t *testing.T) {
	f := NewMediaFetcher(MediaFetcherConfig{})
	dst := filepath.Join(t.TempDir(), "img")
	ct, err := f.Fetch(context.Background(), "data:image/jpeg;base64,aGVsbG8=", dst)
	if err != nil || ct != "image/jpeg" {
		t.Fatalf("Fetch() = %q, %v", ct, err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "hello" {
		t.Fatalf("body = %q", b)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.jpg")
	_ = os.WriteFile(p, []byte("hello"), 0o600)
	got, err := DataURL(p, "image/jpeg; charset=binary")
	if err != nil {
		t.Fatalf("DataURL() error = %v", err)
	}
	if got != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("DataURL() = %q", got)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":             ".jpg",
		"audio/ogg; codecs=opus": ".ogg",
		"audio/wav":              ".wav",
		"application/pdf":        ".bin",
	}
	for in, want := range cases {
		if got := ExtensionFor(in); got != want {
			t.Fatalf("ExtensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMediaFetcherAuthHostNeedsDotBoundary(t *testing.T) {
	var gotAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		gotAuth.Store(ok)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := NewMediaFetcher(MediaFetcherConfig{Username: "AC123", Password: "secret-token"})
	f.http.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}

	cases := map[string]bool{
		"http://attacker-eviltwilio.com/x": false,
		"http://eviltwilio.com/x":          false,
		"http://twilio.com.evil.io/x":      false,
		"http://api.twilio.com/x":          true,
		"http://twilio.com/x":              true,
	}
	for rawURL, want := range cases {
		gotAuth.Store(false)
		if _, err := f.Fetch(context.Background(), rawURL, filepath.Join(t.TempDir(), "m")); err != nil {
			t.Fatalf("Fetch(%s) error = %v", rawURL, err)
		}
		if got := gotAuth.Load(); got != want {
			t.Fatalf("Fetch(%s) sent credentials = %v, want %v", rawURL, got, want)
		}
	}
}

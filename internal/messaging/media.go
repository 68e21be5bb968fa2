package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/swaasthya/saathi/internal/reliability"
)

const (
	mediaService       = "media"
	defaultMaxMediaLen = 16 << 20
)

var ErrMediaTooLarge = errors.New("media exceeds size limit")

type MediaFetcherConfig struct {
	// Basic-auth credentials sent to AuthHostSuffix and its subdomains.
	Username       string
	Password       string
	AuthHostSuffix string
	MaxBytes       int64
	Timeout        time.Duration
}

// MediaFetcher downloads inbound media to local files.
type MediaFetcher struct {
	http *http.Client
	cfg  MediaFetcherConfig
}

func NewMediaFetcher(cfg MediaFetcherConfig) *MediaFetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxMediaLen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AuthHostSuffix == "" {
		cfg.AuthHostSuffix = "twilio.com"
	}
	return &MediaFetcher{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

// Fetch writes the media at rawURL to dst and returns its content type.
// data: URLs are decoded in place.
func (f *MediaFetcher) Fetch(ctx context.Context, rawURL, dst string) (string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return f.fetchDataURL(rawURL, dst)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	if f.cfg.Username != "" && f.gatewayHost(req.URL.Hostname()) {
		req.SetBasicAuth(f.cfg.Username, f.cfg.Password)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", reliability.Upstream(mediaService, "fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", reliability.HTTPStatusError(mediaService, "fetch", resp.StatusCode, string(body))
	}
	if err := f.writeLimited(resp.Body, dst); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

// gatewayHost reports whether host is AuthHostSuffix itself or one of its
// subdomains.
func (f *MediaFetcher) gatewayHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	suffix := strings.ToLower(strings.TrimPrefix(f.cfg.AuthHostSuffix, "."))
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func (f *MediaFetcher) fetchDataURL(rawURL, dst string) (string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", fmt.Errorf("unsupported data url")
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > f.cfg.MaxBytes {
		return "", ErrMediaTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode data url: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return "", err
	}
	return strings.TrimSuffix(meta, ";base64"), nil
}

func (f *MediaFetcher) writeLimited(r io.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(r, f.cfg.MaxBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return reliability.Upstream(mediaService, "fetch", err)
	}
	if n > f.cfg.MaxBytes {
		return ErrMediaTooLarge
	}
	return nil
}

// DataURL encodes a local file as a base64 data URL.
func DataURL(path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ExtensionFor picks a file extension for a media content type.
func ExtensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/amr":
		return ".amr"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	default:
		return ".bin"
	}
}

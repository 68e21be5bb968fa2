package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swaasthya/saathi/internal/audio"
)

const assetPrefix = "answer_"

// Asset is a published audio artifact.
type Asset struct {
	Name     string
	URL      string
	Path     string
	Duration time.Duration
	Chunks   int
	Segments int
}

// AssetStore publishes a finished audio file and returns where it is served.
type AssetStore interface {
	Publish(ctx context.Context, src, ext string) (Asset, error)
}

// LocalAssetStore copies assets into the directory served under /static.
type LocalAssetStore struct {
	dir     string
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewLocalAssetStore(dir, baseURL string, ttl time.Duration) (*LocalAssetStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("asset dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("asset dir: %w", err)
	}
	return &LocalAssetStore{
		dir:     dir,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

func (s *LocalAssetStore) Dir() string { return s.dir }

// URLFor returns the public URL of a published asset name.
func (s *LocalAssetStore) URLFor(name string) string {
	return s.baseURL + "/static/" + name
}

func (s *LocalAssetStore) Publish(ctx context.Context, src, ext string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	name := assetPrefix + uuid.NewString() + ext
	dst := filepath.Join(s.dir, name)
	if err := copyFile(src, dst); err != nil {
		return Asset{}, fmt.Errorf("publish asset: %w", err)
	}
	d, err := audio.Duration(dst)
	if err != nil {
		slog.Debug("asset duration lookup failed", "asset", name, "error", err)
	}
	return Asset{Name: name, URL: s.URLFor(name), Path: dst, Duration: d}, nil
}

// Prune removes published assets older than the configured TTL.
func (s *LocalAssetStore) Prune() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), assetPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// StartJanitor prunes expired assets until ctx is done.
func (s *LocalAssetStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.Prune(); err != nil {
					slog.Warn("asset prune failed", "error", err)
				} else if n > 0 {
					slog.Info("pruned audio assets", "removed", n)
				}
			}
		}
	}()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

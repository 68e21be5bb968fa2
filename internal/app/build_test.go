package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/swaasthya/saathi/internal/config"
	"github.com/swaasthya/saathi/internal/session"
)

func TestBuildMockStackHandlesPrescription(t *testing.T) {
	cfg := config.Config{
		PublicBaseURL:    "https://saathi.example",
		EventTimeout:     30 * time.Second,
		ScratchDir:       t.TempDir(),
		PublicDir:        t.TempDir(),
		AssetTTL:         time.Hour,
		MetricsNamespace: "saathi_app_test",
		ProviderMode:     "mock",
		AudioBackend:     "wav",
		FFmpegPath:       "ffmpeg-not-installed",
		SessionStore:     "memory",
		SessionTTL:       time.Hour,
		DedupeTTL:        time.Hour,
		TTSMaxChunkChars: 500,
		TTSParallelism:   2,
		TTSSampleRate:    22050,
		AnswerMinWords:   10,
	}
	built, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer built.Cleanup()

	if built.Providers.Mode != "mock" || built.Providers.AudioBackend != "wav" || built.Providers.SessionStore != "memory" {
		t.Fatalf("Providers = %+v", built.Providers)
	}

	srv := httptest.NewServer(built.API.Router())
	defer srv.Close()

	image := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("prescription photo"))
	form := url.Values{
		"From":              {"whatsapp:+919800000001"},
		"MessageSid":        {"SM-build-1"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {image},
		"MediaContentType0": {"image/jpeg"},
	}
	resp, err := http.Post(srv.URL+"/whatsapp-webhook", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST webhook error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", resp.StatusCode)
	}

	if err := built.Dispatcher.Shutdown(context.Background()); err != nil {
		t.Fatalf("Dispatcher.Shutdown() error = %v", err)
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/" + url.PathEscape("whatsapp:+919800000001"))
	if err != nil {
		t.Fatalf("GET session error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d, want 200", resp.StatusCode)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Phase != session.PhaseAwaitingLanguage || !snap.HasSummary || !snap.AwaitingMedicinePhoto {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestBuildRejectsLiveModeWithoutKeys(t *testing.T) {
	_, err := resolveProviders(config.Config{ProviderMode: "live"}, nil)
	if err == nil {
		t.Fatal("resolveProviders(live without keys) error = nil")
	}
}

func TestResolveAudioFallsBackToWAV(t *testing.T) {
	setup := resolveAudio(config.Config{AudioBackend: "ffmpeg", FFmpegPath: "ffmpeg-not-installed"})
	if setup.backend != "wav" {
		t.Fatalf("backend = %q, want wav", setup.backend)
	}
}

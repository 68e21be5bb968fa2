package conversation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swaasthya/saathi/internal/advice"
	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/prescription"
	"github.com/swaasthya/saathi/internal/session"
	"github.com/swaasthya/saathi/internal/speech"
	"github.com/swaasthya/saathi/internal/verify"
)

type recordingVoice struct {
	mu    sync.Mutex
	texts []string
}

func (v *recordingVoice) Synthesize(_ context.Context, text, _ string) ([][]byte, error) {
	v.mu.Lock()
	v.texts = append(v.texts, text)
	v.mu.Unlock()
	return [][]byte{make([]byte, 3200)}, nil
}

func (v *recordingVoice) take() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := strings.Join(v.texts, " ")
	v.texts = nil
	return out
}

type hindiBackend struct{}

func (hindiBackend) Name() string { return "stub" }

func (hindiBackend) Translate(_ context.Context, text, target, _ string) (string, error) {
	if target == "hi" && strings.Contains(text, "Paracetamol") {
		return "पैरासिटामोल 500mg दिन में दो बार 5 दिनों तक भोजन के बाद लें।", nil
	}
	return text, nil
}

func TestPrescriptionToReminderFlow(t *testing.T) {
	public := t.TempDir()
	store, err := speech.NewLocalAssetStore(public, "https://saathi.example", time.Hour)
	if err != nil {
		t.Fatalf("NewLocalAssetStore() error = %v", err)
	}
	voice := &recordingVoice{}
	synth := speech.NewSynthesizer(voice, audio.NewWAV(), store, speech.SynthesizerConfig{ScratchDir: t.TempDir()}, nil)

	model := llm.NewMockClient()
	translator := localize.NewTranslator(hindiBackend{}, nil)
	messenger := &recordingMessenger{}
	repo := session.NewMemoryRepository()
	ctrl := NewController(Deps{
		Sessions:    repo,
		Messenger:   messenger,
		Media:       messaging.NewMediaFetcher(messaging.MediaFetcherConfig{}),
		Extractor:   prescription.NewExtractor(model, nil, prescription.ExtractorConfig{}, nil),
		Verifier:    verify.NewPipeline(model, translator, verify.PipelineConfig{}, nil),
		Advisor:     advice.NewAdvisor(model, translator, advice.Config{}),
		Translator:  translator,
		Synthesizer: synth,
		Recognizer:  &stubTranscriber{},
	}, Config{ScratchDir: t.TempDir()})
	ctx := context.Background()

	if err := ctrl.Handle(ctx, mediaEvent("image/jpeg", []byte("prescription photo"))); err != nil {
		t.Fatalf("prescription Handle() error = %v", err)
	}
	replies := messenger.all()
	if len(replies) != 3 {
		t.Fatalf("len(replies) = %d, want 3", len(replies))
	}
	menu := replies[1].Body
	for _, l := range language.All() {
		if !strings.Contains(menu, l.NativeLabel) {
			t.Fatalf("menu misses %s: %q", l.Label, menu)
		}
	}
	assetName := strings.TrimPrefix(replies[0].MediaURL, "https://saathi.example/static/")
	if _, err := os.Stat(filepath.Join(public, assetName)); err != nil {
		t.Fatalf("menu audio %q not published: %v", replies[0].MediaURL, err)
	}
	if s, _ := repo.Get(ctx, testUser); !strings.Contains(s.PrescriptionSummary, "Paracetamol 500mg") {
		t.Fatalf("summary = %q", s.PrescriptionSummary)
	}
	voice.take()

	if err := ctrl.Handle(ctx, textEvent("1")); err != nil {
		t.Fatalf("language Handle() error = %v", err)
	}
	spoken := voice.take()
	if strings.Contains(spoken, "500") || !strings.Contains(spoken, "पाँच सौ") {
		t.Fatalf("spoken text = %q, want 500 spelled out in Hindi", spoken)
	}
	if !strings.Contains(spoken, "अनुस्मारक") {
		t.Fatalf("spoken text = %q, want reminder prompt", spoken)
	}
	summaryReply := messenger.all()[3]
	if !strings.Contains(summaryReply.Body, "Hindi") || summaryReply.MediaURL == "" {
		t.Fatalf("summary reply = %+v", summaryReply)
	}

	if err := ctrl.Handle(ctx, textEvent("2")); err != nil {
		t.Fatalf("reminder Handle() error = %v", err)
	}
	confirm := messenger.last()
	if confirm.Body != "✅ "+language.ReminderConfirmation("hi") || confirm.MediaURL == "" {
		t.Fatalf("confirmation = %+v", confirm)
	}
}

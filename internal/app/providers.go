package app

import (
	"fmt"
	"log/slog"

	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/config"
	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/observability"
	"github.com/swaasthya/saathi/internal/sarvam"
	"github.com/swaasthya/saathi/internal/speech"
)

type providerSetup struct {
	llm    llm.Client
	voice  speech.Voice
	stt    speech.STT
	mode   string
	detail string
}

func resolveProviders(cfg config.Config, metrics *observability.Metrics) (providerSetup, error) {
	if cfg.UseMockProviders() {
		detail := "mock"
		if cfg.ProviderMode == "auto" {
			detail = "mock (GROQ_API_KEY or SARVAM_API_KEY not set)"
		}
		return providerSetup{
			llm:    llm.NewMockClient(),
			voice:  speech.NewMockVoice(),
			stt:    speech.NewMockSTT(),
			mode:   "mock",
			detail: detail,
		}, nil
	}
	if cfg.GroqAPIKey == "" || cfg.SarvamAPIKey == "" {
		return providerSetup{}, fmt.Errorf("PROVIDER_MODE=live requires GROQ_API_KEY and SARVAM_API_KEY")
	}

	model := llm.NewOpenAIClient(llm.Config{
		APIKey:   cfg.GroqAPIKey,
		BaseURL:  cfg.GroqBaseURL,
		Timeout:  cfg.LLMTimeout,
		Recorder: metrics,
	})
	client := sarvam.NewClient(sarvam.Config{
		APIKey:            cfg.SarvamAPIKey,
		BaseURL:           cfg.SarvamBaseURL,
		RequestsPerSecond: cfg.SarvamRateLimit,
		Recorder:          metrics,
	})
	return providerSetup{
		llm: model,
		voice: speech.NewSarvamVoice(client, speech.SarvamVoiceConfig{
			Model:      cfg.SarvamTTSModel,
			Speaker:    cfg.SarvamTTSSpeaker,
			SampleRate: cfg.TTSSampleRate,
		}),
		stt:    client,
		mode:   "live",
		detail: fmt.Sprintf("groq %s + sarvam %s", cfg.LLMTextModel, cfg.SarvamTTSModel),
	}, nil
}

type audioSetup struct {
	transcoder audio.Transcoder
	converter  audio.Converter
	backend    string
}

// resolveAudio prefers ffmpeg and degrades to the WAV backend when the
// binary is missing. Voice notes still need ffmpeg to decode OGG/Opus.
func resolveAudio(cfg config.Config) audioSetup {
	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath, "")
	wav := audio.NewWAV()
	available := ffmpeg.Available()

	setup := audioSetup{transcoder: wav, converter: wav, backend: "wav"}
	if available {
		setup.converter = ffmpeg
	}
	switch {
	case cfg.AudioBackend == "ffmpeg" && available:
		setup.transcoder = ffmpeg
		setup.backend = "ffmpeg"
	case cfg.AudioBackend == "ffmpeg":
		slog.Warn("ffmpeg not found; falling back to wav audio", "path", cfg.FFmpegPath)
	}
	if !available {
		slog.Warn("ffmpeg not found; only WAV voice notes can be transcribed", "path", cfg.FFmpegPath)
	}
	return setup
}

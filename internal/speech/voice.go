package speech

import (
	"context"

	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/sarvam"
)

type SarvamVoiceConfig struct {
	Model      string
	Speaker    string
	SampleRate int
}

// SarvamVoice adapts the Sarvam text-to-speech endpoint to Voice.
type SarvamVoice struct {
	client *sarvam.Client
	cfg    SarvamVoiceConfig
}

func NewSarvamVoice(client *sarvam.Client, cfg SarvamVoiceConfig) *SarvamVoice {
	if cfg.Model == "" {
		cfg.Model = "bulbul:v2"
	}
	if cfg.Speaker == "" {
		cfg.Speaker = "anushka"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	return &SarvamVoice{client: client, cfg: cfg}
}

func (v *SarvamVoice) Synthesize(ctx context.Context, text, lang string) ([][]byte, error) {
	return v.client.TextToSpeech(ctx, sarvam.TTSRequest{
		Text:                text,
		LanguageCode:        speechCode(lang),
		Speaker:             v.cfg.Speaker,
		Model:               v.cfg.Model,
		Pitch:               0,
		Pace:                1,
		Loudness:            1,
		SampleRate:          v.cfg.SampleRate,
		EnablePreprocessing: true,
	})
}

func speechCode(lang string) string {
	if l, ok := language.ByCode(lang); ok {
		return l.SpeechCode
	}
	return lang
}

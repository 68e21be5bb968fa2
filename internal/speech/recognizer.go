package speech

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/sarvam"
)

// DefaultTranscript is used when the provider heard nothing.
const DefaultTranscript = "Sorry, could not understand the audio."

// STT transcribes a 16 kHz mono PCM WAV file.
type STT interface {
	SpeechToText(ctx context.Context, wavPath, model, languageCode string) (sarvam.Transcript, error)
}

// Recognizer converts a downloaded voice note and transcribes it.
type Recognizer struct {
	converter audio.Converter
	stt       STT
	model     string
}

func NewRecognizer(converter audio.Converter, stt STT, model string) *Recognizer {
	if model == "" {
		model = "saarika:v2.5"
	}
	return &Recognizer{converter: converter, stt: stt, model: model}
}

// Transcribe writes the converted WAV next to src, so the caller's scratch
// directory owns it.
func (r *Recognizer) Transcribe(ctx context.Context, src string) (string, error) {
	wavPath := strings.TrimSuffix(src, filepath.Ext(src)) + ".16k.wav"
	if err := r.converter.ToSpeechWAV(ctx, src, wavPath); err != nil {
		return "", err
	}
	if _, err := audio.InspectWAV(wavPath); err != nil {
		return "", err
	}
	transcript, err := r.stt.SpeechToText(ctx, wavPath, r.model, "unknown")
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return DefaultTranscript, nil
	}
	return text, nil
}

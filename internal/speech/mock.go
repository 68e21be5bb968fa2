package speech

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/swaasthya/saathi/internal/sarvam"
)

const (
	mockSampleRate  = 22050
	mockPerRune     = 40 * time.Millisecond
	mockMaxPerChunk = 8 * time.Second
	MockTranscript  = "What is this medicine for?"
)

// MockVoice renders silence sized to the text, used when no speech
// provider is configured.
type MockVoice struct{}

func NewMockVoice() *MockVoice { return &MockVoice{} }

func (MockVoice) Synthesize(ctx context.Context, text, _ string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := time.Duration(utf8.RuneCountInString(text)) * mockPerRune
	if d > mockMaxPerChunk {
		d = mockMaxPerChunk
	}
	samples := int(d.Seconds() * mockSampleRate)
	if samples == 0 {
		return nil, nil
	}
	return [][]byte{make([]byte, samples*2)}, nil
}

// MockSTT returns a fixed question for every voice note.
type MockSTT struct{}

func NewMockSTT() *MockSTT { return &MockSTT{} }

func (MockSTT) SpeechToText(ctx context.Context, _, _, _ string) (sarvam.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return sarvam.Transcript{}, err
	}
	return sarvam.Transcript{Text: MockTranscript, LanguageCode: "en-IN"}, nil
}

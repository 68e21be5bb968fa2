package audio

import (
	"context"
	"errors"
	"fmt"
)

// PCMFormat describes interleaved signed little-endian PCM.
type PCMFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f PCMFormat) withDefaults() PCMFormat {
	if f.SampleRate <= 0 {
		f.SampleRate = 22050
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if f.BitDepth <= 0 {
		f.BitDepth = 16
	}
	return f
}

// Transcoder turns raw PCM segments into encoded files and joins encoded
// files without re-encoding them.
type Transcoder interface {
	Extension() string
	ContentType() string
	Encode(ctx context.Context, pcm []byte, format PCMFormat, dst string) error
	Concatenate(ctx context.Context, srcs []string, dst string) error
}

// Converter normalizes an inbound voice note into 16 kHz mono PCM WAV.
type Converter interface {
	ToSpeechWAV(ctx context.Context, src, dst string) error
}

// TranscodeError reports a failure inside the audio pipeline.
type TranscodeError struct {
	Op  string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Op, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// IsTranscodeError reports whether err came from the audio pipeline.
func IsTranscodeError(err error) bool {
	var te *TranscodeError
	return errors.As(err, &te)
}

func transcodeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTranscodeError(err) {
		return err
	}
	return &TranscodeError{Op: op, Err: err}
}

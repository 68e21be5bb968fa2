package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAV is a pure-Go transcoder producing PCM WAV files. Concatenation copies
// samples, so segments are never re-encoded.
type WAV struct{}

func NewWAV() *WAV { return &WAV{} }

func (*WAV) Extension() string   { return ".wav" }
func (*WAV) ContentType() string { return "audio/wav" }

func (*WAV) Encode(_ context.Context, pcm []byte, format PCMFormat, dst string) error {
	if len(pcm) == 0 {
		return &TranscodeError{Op: "encode", Err: errors.New("empty segment")}
	}
	format = format.withDefaults()
	if format.BitDepth != 16 {
		return &TranscodeError{Op: "encode", Err: fmt.Errorf("unsupported bit depth %d", format.BitDepth)}
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           samplesFromPCM16(pcm),
		SourceBitDepth: 16,
	}
	return transcodeErr("encode", writeWAV(dst, buf))
}

func (*WAV) Concatenate(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return &TranscodeError{Op: "concat", Err: errors.New("no segments")}
	}
	var out *goaudio.IntBuffer
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, _, err := readWAV(src)
		if err != nil {
			return transcodeErr("concat", fmt.Errorf("%s: %w", src, err))
		}
		if out == nil {
			out = buf
			continue
		}
		if buf.Format.SampleRate != out.Format.SampleRate || buf.Format.NumChannels != out.Format.NumChannels {
			return &TranscodeError{Op: "concat", Err: fmt.Errorf("%s: format mismatch", src)}
		}
		out.Data = append(out.Data, buf.Data...)
	}
	return transcodeErr("concat", writeWAV(dst, out))
}

// ToSpeechWAV accepts WAV input only; it downmixes and resamples to 16 kHz mono.
func (*WAV) ToSpeechWAV(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, _, err := readWAV(src)
	if err != nil {
		return transcodeErr("convert", err)
	}
	mono := downmix(buf.Data, buf.Format.NumChannels)
	resampled := resampleLinear(mono, buf.Format.SampleRate, 16000)
	return transcodeErr("convert", writeWAV(dst, &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           resampled,
		SourceBitDepth: 16,
	}))
}

// WAVInfo summarizes a WAV file header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// InspectWAV validates path as a PCM WAV file and reads its format.
func InspectWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, transcodeErr("inspect", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, &TranscodeError{Op: "inspect", Err: errors.New("invalid wav")}
	}
	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, transcodeErr("inspect", err)
	}
	info := WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	// Duration comes from the data chunk size alone; header bytes are not audio.
	if bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8; bytesPerSec > 0 {
		info.Duration = time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec)
	}
	return info, nil
}

// SegmentPCM returns raw PCM for a provider segment. Segments wrapped in a
// RIFF container are unwrapped and report their own format; anything else is
// treated as raw PCM in fallback.
func SegmentPCM(segment []byte, fallback PCMFormat) ([]byte, PCMFormat, error) {
	fallback = fallback.withDefaults()
	if len(segment) < 12 || string(segment[:4]) != "RIFF" || string(segment[8:12]) != "WAVE" {
		return segment, fallback, nil
	}
	dec := wav.NewDecoder(bytes.NewReader(segment))
	if !dec.IsValidFile() {
		return nil, PCMFormat{}, &TranscodeError{Op: "unwrap", Err: errors.New("invalid wav segment")}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, PCMFormat{}, transcodeErr("unwrap", err)
	}
	if dec.BitDepth != 16 {
		return nil, PCMFormat{}, &TranscodeError{Op: "unwrap", Err: fmt.Errorf("unsupported bit depth %d", dec.BitDepth)}
	}
	return pcm16FromSamples(buf.Data), PCMFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   16,
	}, nil
}

func readWAV(path string) (*goaudio.IntBuffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("empty wav")
	}
	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}
	return buf, int(dec.BitDepth), nil
}

func writeWAV(path string, buf *goaudio.IntBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, buf.Format.SampleRate, 16, buf.Format.NumChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func samplesFromPCM16(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

func pcm16FromSamples(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}

func downmix(samples []int, channels int) []int {
	if channels <= 1 {
		return samples
	}
	out := make([]int, len(samples)/channels)
	for i := range out {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / channels
	}
	return out
}

func resampleLinear(samples []int, from, to int) []int {
	if from <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}

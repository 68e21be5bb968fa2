package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg shells out to an ffmpeg binary for MP3 encoding, lossless concat
// and voice-note conversion.
type FFmpeg struct {
	path    string
	bitrate string
}

func NewFFmpeg(path, bitrate string) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = "128k"
	}
	return &FFmpeg{path: path, bitrate: bitrate}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

func (f *FFmpeg) Extension() string   { return ".mp3" }
func (f *FFmpeg) ContentType() string { return "audio/mpeg" }

func (f *FFmpeg) Encode(ctx context.Context, pcm []byte, format PCMFormat, dst string) error {
	if len(pcm) == 0 {
		return &TranscodeError{Op: "encode", Err: errors.New("empty segment")}
	}
	format = format.withDefaults()
	if format.BitDepth != 16 {
		return &TranscodeError{Op: "encode", Err: fmt.Errorf("unsupported bit depth %d", format.BitDepth)}
	}
	raw := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".raw"
	if err := os.WriteFile(raw, pcm, 0o600); err != nil {
		return transcodeErr("encode", err)
	}
	defer os.Remove(raw)

	return f.run(ctx, "encode",
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-i", raw,
		"-acodec", "libmp3lame",
		"-ab", f.bitrate,
		dst,
	)
}

func (f *FFmpeg) Concatenate(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return &TranscodeError{Op: "concat", Err: errors.New("no segments")}
	}
	list := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".concat.txt"
	if err := os.WriteFile(list, []byte(concatList(srcs)), 0o600); err != nil {
		return transcodeErr("concat", err)
	}
	defer os.Remove(list)

	return f.run(ctx, "concat", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", dst)
}

func (f *FFmpeg) ToSpeechWAV(ctx context.Context, src, dst string) error {
	return f.run(ctx, "convert", "-i", src, "-ar", "16000", "-ac", "1", dst)
}

func (f *FFmpeg) run(ctx context.Context, op string, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.path, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return &TranscodeError{Op: op, Err: err}
	}
	return nil
}

// concatList renders the concat demuxer script, quoting each path.
func concatList(srcs []string) string {
	var b strings.Builder
	for _, src := range srcs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(src, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

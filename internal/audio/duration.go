package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Duration measures the playback length of an encoded asset. Unknown
// extensions return zero.
func Duration(path string) (time.Duration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		info, err := InspectWAV(path)
		if err != nil {
			return 0, err
		}
		return info.Duration, nil
	case ".mp3":
		return mp3Duration(path)
	default:
		return 0, nil
	}
}

func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, transcodeErr("inspect", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, transcodeErr("inspect", err)
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length <= 0 {
		return 0, nil
	}
	// Decoded stream is 16-bit stereo: four bytes per frame.
	frames := length / 4
	return time.Duration(frames) * time.Second / time.Duration(rate), nil
}

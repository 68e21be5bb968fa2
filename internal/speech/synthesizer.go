// Package speech turns localized text into one playable audio asset and
// voice notes into transcripts.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/workspace"
)

// ErrNoAudio is returned when the provider produced no audio for a chunk.
var ErrNoAudio = errors.New("speech provider returned no audio")

const (
	defaultMaxChunkChars = 500
	defaultParallelism   = 2
)

// Voice synthesizes one chunk of text. A single call may return several raw
// PCM segments, in playback order.
type Voice interface {
	Synthesize(ctx context.Context, text, lang string) ([][]byte, error)
}

// Observer receives per-invocation synthesis statistics.
type Observer interface {
	ObserveSynthesis(chunks, segments int, audio time.Duration)
}

type SynthesizerConfig struct {
	MaxChunkChars int
	Parallelism   int
	ScratchDir    string
	Format        audio.PCMFormat
}

// Synthesizer implements the chunk, synthesize, encode, concatenate and
// publish pipeline.
type Synthesizer struct {
	voice      Voice
	transcoder audio.Transcoder
	store      AssetStore
	cfg        SynthesizerConfig
	observer   Observer
}

func NewSynthesizer(voice Voice, transcoder audio.Transcoder, store AssetStore, cfg SynthesizerConfig, observer Observer) *Synthesizer {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = defaultMaxChunkChars
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	return &Synthesizer{
		voice:      voice,
		transcoder: transcoder,
		store:      store,
		cfg:        cfg,
		observer:   observer,
	}
}

// Synthesize returns the published asset for text. A nil asset with a nil
// error means there was nothing to say; callers reply with text instead.
// Any provider or transcode failure aborts the whole invocation.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) (*Asset, error) {
	text = speakableText(localize.Localize(text, lang))
	chunks := SplitIntoChunks(text, s.cfg.MaxChunkChars)
	if len(chunks) == 0 {
		return nil, nil
	}

	var asset *Asset
	err := workspace.Run(s.cfg.ScratchDir, "tts", func(dir workspace.Dir) error {
		paths, err := s.renderChunks(ctx, dir, chunks, lang)
		if err != nil {
			return err
		}
		joined := dir.File("joined" + s.transcoder.Extension())
		if err := s.transcoder.Concatenate(ctx, paths, joined); err != nil {
			return err
		}
		published, err := s.store.Publish(ctx, joined, s.transcoder.Extension())
		if err != nil {
			return err
		}
		published.Chunks = len(chunks)
		published.Segments = len(paths)
		asset = &published
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.ObserveSynthesis(asset.Chunks, asset.Segments, asset.Duration)
	}
	slog.Debug("speech synthesized",
		"lang", lang,
		"chunks", asset.Chunks,
		"segments", asset.Segments,
		"asset", asset.Name,
	)
	return asset, nil
}

// renderChunks calls the provider for every chunk with bounded parallelism
// and encodes each segment to its own file. The returned paths are ordered
// by chunk index, then segment index.
func (s *Synthesizer) renderChunks(ctx context.Context, dir workspace.Dir, chunks []Chunk, lang string) ([]string, error) {
	perChunk := make([][]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			segments, err := s.voice.Synthesize(gctx, chunk.Text, lang)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			if len(segments) == 0 {
				return fmt.Errorf("chunk %d: %w", chunk.Index, ErrNoAudio)
			}
			paths := make([]string, 0, len(segments))
			for i, segment := range segments {
				pcm, format, err := audio.SegmentPCM(segment, s.cfg.Format)
				if err != nil {
					return err
				}
				path := dir.File(fmt.Sprintf("chunk_%03d_%03d%s", chunk.Index, i, s.transcoder.Extension()))
				if err := s.transcoder.Encode(gctx, pcm, format, path); err != nil {
					return err
				}
				paths = append(paths, path)
			}
			perChunk[chunk.Index] = paths
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ordered []string
	for _, paths := range perChunk {
		ordered = append(ordered, paths...)
	}
	return ordered, nil
}

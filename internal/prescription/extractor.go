// Package prescription turns a photographed prescription into a short
// plain-language instruction summary.
package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/reliability"
)

var ErrEmptySummary = errors.New("no prescription text found in image")

const (
	visionPrompt = "From this medical image, extract only the relevant prescription and rewrite it in plain English " +
		"as simple, spoken patient instructions. Do NOT include headings, metadata, or explanations. " +
		"No markdown. Only the final clean instructions."

	refinePrompt = "You are a medical assistant. Based on the following structured prescription data (JSON), " +
		"produce a concise patient-facing summary with actionable instructions. Do NOT include headings, bullets, " +
		"disclaimers, or formatting. No markdown. Only plain sentences. If dosages or timings are present, include them clearly."
)

// Structurer converts draft text into structured JSON.
type Structurer interface {
	Summarize(ctx context.Context, text string) (json.RawMessage, error)
}

type ExtractorConfig struct {
	VisionModel string
	TextModel   string
}

type Extractor struct {
	llm        llm.Client
	structurer Structurer
	cfg        ExtractorConfig
	recorder   localize.FallbackRecorder
}

func NewExtractor(client llm.Client, structurer Structurer, cfg ExtractorConfig, recorder localize.FallbackRecorder) *Extractor {
	return &Extractor{llm: client, structurer: structurer, cfg: cfg, recorder: recorder}
}

// ExtractSummary reads the prescription at imageURL. The vision draft is
// required; the structured refinement is best effort and falls back to the
// draft on any failure.
func (e *Extractor) ExtractSummary(ctx context.Context, imageURL string) (string, error) {
	raw, err := e.llm.Complete(ctx, llm.Request{
		Model:       e.cfg.VisionModel,
		Messages:    []llm.Message{llm.UserImage(imageURL, visionPrompt)},
		Temperature: 0.3,
		TopP:        1,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("vision summary: %w", err)
	}
	draft := localize.SanitizePlainText(lastParagraph(raw))
	if draft == "" {
		return "", ErrEmptySummary
	}

	steps := []reliability.Step[string]{{Name: "draft", Run: func(context.Context) (string, error) { return draft, nil }}}
	if e.structurer != nil {
		steps = append([]reliability.Step[string]{{Name: "refined", Run: func(ctx context.Context) (string, error) {
			return e.refine(ctx, draft)
		}}}, steps...)
	}
	outcome, err := reliability.Chain(ctx, nil, steps...)
	if err != nil {
		return "", err
	}
	if outcome.UsedFallback() {
		slog.Warn("prescription refinement failed, using draft", "errors", len(outcome.Failures), "error", errors.Join(outcome.Failures...))
		if e.recorder != nil {
			e.recorder.ObserveFallback("prescription", outcome.Step)
		}
	}
	return outcome.Value, nil
}

func (e *Extractor) refine(ctx context.Context, draft string) (string, error) {
	structured, err := e.structurer.Summarize(ctx, draft)
	if err != nil {
		return "", err
	}
	out, err := e.llm.Complete(ctx, llm.Request{
		Model:       e.cfg.TextModel,
		Messages:    []llm.Message{llm.UserText(refinePrompt, "JSON:\n"+string(structured))},
		Temperature: 0.3,
		TopP:        1,
		MaxTokens:   5000,
	})
	if err != nil {
		return "", err
	}
	out = localize.SanitizePlainText(localize.StripEmphasis(out))
	if out == "" {
		return "", errors.New("empty refinement")
	}
	return out, nil
}

// lastParagraph keeps the final paragraph of a model answer; vision models
// tend to lead with commentary before the instructions themselves.
func lastParagraph(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	parts := strings.Split(text, "\n\n")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return localize.StripEmphasis(p)
		}
	}
	return ""
}

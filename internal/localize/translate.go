package localize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/reliability"
)

// DefaultPublicTranslateURL is the keyless public translation endpoint.
const DefaultPublicTranslateURL = "https://translate.googleapis.com/translate_a/single"

var errEmptyTranslation = errors.New("empty translation")

// Backend is one translation provider.
type Backend interface {
	Name() string
	Translate(ctx context.Context, text, target, source string) (string, error)
}

// FallbackRecorder is notified whenever a secondary provider served a request.
type FallbackRecorder interface {
	ObserveFallback(component, step string)
}

// Translation is a localized result and the path that produced it.
type Translation struct {
	Text     string
	Backend  string
	Fallback bool
}

// Translator translates with a primary backend and one automatic fallback,
// then makes numerals speakable for the target language.
type Translator struct {
	primary  Backend
	fallback Backend
	attempts int
	backoff  reliability.Backoff
	recorder FallbackRecorder
}

type TranslatorOption func(*Translator)

// WithAttempts bounds retries per backend on retryable failures.
func WithAttempts(n int) TranslatorOption {
	return func(t *Translator) { t.attempts = n }
}

func WithFallbackRecorder(r FallbackRecorder) TranslatorOption {
	return func(t *Translator) { t.recorder = r }
}

func NewTranslator(primary, fallback Backend, opts ...TranslatorOption) *Translator {
	t := &Translator{
		primary:  primary,
		fallback: fallback,
		attempts: 2,
		backoff:  reliability.CappedBackoff(250*time.Millisecond, 2*time.Second),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate converts text into target. Empty input yields an empty result
// without calling any backend.
func (t *Translator) Translate(ctx context.Context, text, target, source string) (Translation, error) {
	if strings.TrimSpace(text) == "" {
		return Translation{}, nil
	}
	target = language.BaseCode(target)
	if target == "" {
		return Translation{}, fmt.Errorf("translate: target language required")
	}
	if strings.TrimSpace(source) == "" {
		source = "auto"
	}

	var steps []reliability.Step[string]
	for _, b := range []Backend{t.primary, t.fallback} {
		if b == nil {
			continue
		}
		backend := b
		steps = append(steps, reliability.Step[string]{
			Name:     backend.Name(),
			Attempts: t.attempts,
			Run: func(ctx context.Context) (string, error) {
				out, err := backend.Translate(ctx, text, target, source)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(out) == "" {
					return "", errEmptyTranslation
				}
				return out, nil
			},
		})
	}
	if len(steps) == 0 {
		return Translation{}, fmt.Errorf("translate: no backend configured")
	}

	outcome, err := reliability.Chain(ctx, t.backoff, steps...)
	if err != nil {
		return Translation{}, fmt.Errorf("translate to %s: %w", target, err)
	}
	if outcome.UsedFallback() && t.recorder != nil {
		t.recorder.ObserveFallback("translate", outcome.Step)
	}
	return Translation{
		Text:     Localize(SanitizePlainText(outcome.Value), target),
		Backend:  outcome.Step,
		Fallback: outcome.UsedFallback(),
	}, nil
}

// LLMBackend asks a language model for a translation-only response.
type LLMBackend struct {
	client llm.Client
	model  string
}

func NewLLMBackend(client llm.Client, model string) *LLMBackend {
	return &LLMBackend{client: client, model: model}
}

func (b *LLMBackend) Name() string { return "llm" }

func (b *LLMBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	system := fmt.Sprintf("You are a professional translator. Translate the user's message from %s to %s. "+
		"Preserve meaning and tone. Respond with ONLY the translated text, no quotes, no extra words, no notes.",
		describe(source), describe(target))
	out, err := b.client.Complete(ctx, llm.Request{
		Model:       b.model,
		System:      system,
		Messages:    []llm.Message{llm.UserText(text)},
		Temperature: 0.2,
		TopP:        1,
		MaxTokens:   5000,
	})
	if err != nil {
		return "", err
	}
	return StripEmphasis(out), nil
}

func describe(code string) string {
	if code == "" || code == "auto" {
		return "the detected source language"
	}
	if l, ok := language.ByCode(code); ok {
		return l.Label
	}
	return code
}

// PublicBackend calls the public Google translate endpoint.
type PublicBackend struct {
	baseURL string
	client  *http.Client
}

func NewPublicBackend(baseURL string) *PublicBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultPublicTranslateURL
	}
	return &PublicBackend{
		baseURL: strings.TrimSpace(baseURL),
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (b *PublicBackend) Name() string { return "public" }

func (b *PublicBackend) Translate(ctx context.Context, text, target, source string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	res, err := b.client.Do(req)
	if err != nil {
		return "", reliability.Upstream("public-translate", "get", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", reliability.HTTPStatusError("public-translate", "get", res.StatusCode, string(body))
	}

	var data []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&data); err != nil {
		return "", reliability.Upstream("public-translate", "decode", err)
	}
	return joinSegments(data)
}

// joinSegments concatenates the translated part of each sentence segment
// found in the first element of the response array.
func joinSegments(data []json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", reliability.Upstream("public-translate", "decode", errors.New("empty response"))
	}
	var segments [][]any
	if err := json.Unmarshal(data[0], &segments); err != nil {
		return "", reliability.Upstream("public-translate", "decode", err)
	}
	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}

package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/swaasthya/saathi/internal/reliability"
)

const (
	DefaultBaseURL = "https://api.sarvam.ai"
	providerName   = "sarvam"
)

// ErrorRecorder receives provider failures for metrics.
type ErrorRecorder interface {
	ObserveProviderError(provider, code string)
}

type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
	Recorder          ErrorRecorder
}

// Client calls the Sarvam text-to-speech and speech-to-text APIs.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  reliability.Backoff
	recorder ErrorRecorder
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  base,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		attempts: attempts,
		backoff:  reliability.CappedBackoff(300*time.Millisecond, 3*time.Second),
		recorder: cfg.Recorder,
	}
}

// TTSRequest carries one text-to-speech call.
type TTSRequest struct {
	Text                string  `json:"text"`
	LanguageCode        string  `json:"target_language_code"`
	Speaker             string  `json:"speaker"`
	Model               string  `json:"model"`
	Pitch               float64 `json:"pitch"`
	Pace                float64 `json:"pace"`
	Loudness            float64 `json:"loudness"`
	SampleRate          int     `json:"speech_sample_rate"`
	EnablePreprocessing bool    `json:"enable_preprocessing"`
}

type ttsResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// TextToSpeech returns the decoded audio segments in provider order.
func (c *Client) TextToSpeech(ctx context.Context, req TTSRequest) ([][]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	body, err := c.do(ctx, "text-to-speech", "/text-to-speech", "application/json", payload)
	if err != nil {
		return nil, err
	}

	var res ttsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, c.fail(reliability.Upstream(providerName, "text-to-speech decode", err))
	}
	segments := make([][]byte, 0, len(res.Audios))
	for i, encoded := range res.Audios {
		if strings.TrimSpace(encoded) == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, c.fail(reliability.Upstream(providerName, "text-to-speech decode", fmt.Errorf("segment %d: %w", i, err)))
		}
		segments = append(segments, raw)
	}
	return segments, nil
}

// Transcript is a speech-to-text result.
type Transcript struct {
	Text         string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// SpeechToText uploads a mono PCM WAV file. languageCode may be "unknown".
func (c *Client) SpeechToText(ctx context.Context, wavPath, model, languageCode string) (Transcript, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("read audio: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return Transcript{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, fmt.Errorf("write form file: %w", err)
	}
	if model != "" {
		_ = mw.WriteField("model", model)
	}
	if languageCode == "" {
		languageCode = "unknown"
	}
	_ = mw.WriteField("language_code", languageCode)
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("close form: %w", err)
	}

	body, err := c.do(ctx, "speech-to-text", "/speech-to-text", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return Transcript{}, err
	}
	var out Transcript
	if err := json.Unmarshal(body, &out); err != nil {
		return Transcript{}, c.fail(reliability.Upstream(providerName, "speech-to-text decode", err))
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, nil
}

// do posts payload with rate limiting and bounded retries of retryable failures.
func (c *Client) do(ctx context.Context, op, path, contentType string, payload []byte) ([]byte, error) {
	outcome, err := reliability.Chain(ctx, c.backoff, reliability.Step[[]byte]{
		Name:     op,
		Attempts: c.attempts,
		Run: func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return c.post(ctx, op, path, contentType, payload)
		},
	})
	if err != nil {
		var ue *reliability.UpstreamError
		if errors.As(err, &ue) {
			return nil, c.fail(ue)
		}
		return nil, c.fail(reliability.Upstream(providerName, op, err))
	}
	return outcome.Value, nil
}

func (c *Client) post(ctx context.Context, op, path, contentType string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("api-subscription-key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, reliability.Upstream(providerName, op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.HTTPStatusError(providerName, op, res.StatusCode, string(body))
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<20))
	if err != nil {
		return nil, reliability.Upstream(providerName, op, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}

func (c *Client) fail(err error) error {
	if c.recorder != nil && err != nil {
		code := "error"
		var ue *reliability.UpstreamError
		switch {
		case reliability.IsContextError(err):
			code = "timeout"
		case errors.As(err, &ue) && ue.Status != 0:
			code = strconv.Itoa(ue.Status)
		}
		c.recorder.ObserveProviderError(providerName, code)
	}
	return err
}

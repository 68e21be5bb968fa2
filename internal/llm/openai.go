package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/swaasthya/saathi/internal/reliability"
)

const providerName = "groq"

// Config configures an OpenAI-compatible inference endpoint.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Recorder ErrorRecorder
}

// OpenAIClient talks to any OpenAI-compatible chat completion API (Groq by default).
type OpenAIClient struct {
	client   *openai.Client
	timeout  time.Duration
	recorder ErrorRecorder
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(oc),
		timeout:  timeout,
		recorder: cfg.Recorder,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               req.Model,
		Messages:            buildMessages(req),
		Temperature:         req.Temperature,
		TopP:                req.TopP,
		MaxCompletionTokens: req.MaxTokens,
	})
	if err != nil {
		err = classify(err)
		c.observe(err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := reliability.Upstream(providerName, "chat completion", errors.New("no choices returned"))
		c.observe(err)
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		if m.ImageURL == "" && len(m.Texts) <= 1 {
			content := ""
			if len(m.Texts) == 1 {
				content = m.Texts[0]
			}
			msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: content})
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Texts)+1)
		for _, t := range m.Texts {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: t})
		}
		if m.ImageURL != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: m.ImageURL},
			})
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	return msgs
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return reliability.HTTPStatusError(providerName, "chat completion", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reliability.HTTPStatusError(providerName, "chat completion", reqErr.HTTPStatusCode, fmt.Sprint(reqErr.Err))
	}
	return reliability.Upstream(providerName, "chat completion", err)
}

func (c *OpenAIClient) observe(err error) {
	if c.recorder == nil || err == nil {
		return
	}
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

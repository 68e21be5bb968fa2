package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/swaasthya/saathi/internal/reliability"
)

type recordedError struct {
	provider string
	code     string
}

type errorRecorderStub struct {
	errs []recordedError
}

func (r *errorRecorderStub) ObserveProviderError(provider, code string) {
	r.errs = append(r.errs, recordedError{provider: provider, code: code})
}

func TestBuildMessagesMultipart(t *testing.T) {
	msgs := buildMessages(Request{
		System: "sys",
		Messages: []Message{
			UserText("hello"),
			UserImage("data:image/jpeg;base64,AAAA", "look", "closer"),
		},
	})
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "sys" {
		t.Fatalf("system message = %+v", msgs[0])
	}
	if msgs[1].Content != "hello" || len(msgs[1].MultiContent) != 0 {
		t.Fatalf("text message = %+v, want plain content", msgs[1])
	}
	parts := msgs[2].MultiContent
	if len(parts) != 3 || parts[2].ImageURL == nil || parts[2].ImageURL.URL != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("image message parts = %+v", parts)
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"namaste"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	out, err := c.Complete(context.Background(), Request{Model: "m1", Messages: []Message{UserText("hi")}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "namaste" {
		t.Fatalf("Complete() = %q, want namaste", out)
	}
	if gotModel != "m1" {
		t.Fatalf("model = %q, want m1", gotModel)
	}
}

func TestOpenAIClientClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	rec := &errorRecorderStub{}
	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second, Recorder: rec})
	_, err := c.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserText("hi")}})
	var ue *reliability.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %T %v, want UpstreamError", err, err)
	}
	if ue.Status != http.StatusServiceUnavailable || !ue.Retryable {
		t.Fatalf("upstream error = %+v, want retryable 503", ue)
	}
	if len(rec.errs) != 1 || rec.errs[0].code != "503" {
		t.Fatalf("recorded = %+v, want one 503", rec.errs)
	}
}

package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn. A message may carry several text
// blocks and at most one image reference.
type Message struct {
	Role     string
	Texts    []string
	ImageURL string
}

// Request is a single chat completion call.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Client is the vision/language inference boundary.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// UserText builds a text-only user turn.
func UserText(texts ...string) Message {
	return Message{Role: RoleUser, Texts: texts}
}

// UserImage builds a user turn with text blocks followed by an image.
func UserImage(imageURL string, texts ...string) Message {
	return Message{Role: RoleUser, Texts: texts, ImageURL: imageURL}
}

// AssistantText builds an assistant turn, used to ask for a continuation.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Texts: []string{text}}
}

// ErrorRecorder receives provider failures for metrics.
type ErrorRecorder interface {
	ObserveProviderError(provider, code string)
}

package llm

import (
	"context"
	"strings"
)

// MockClient returns canned responses so the whole flow can run offline.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (MockClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		texts    []string
		hasImage bool
	)
	for _, m := range req.Messages {
		texts = append(texts, m.Texts...)
		hasImage = hasImage || m.ImageURL != ""
	}
	prompt := strings.Join(texts, "\n")

	switch {
	case strings.Contains(strings.ToLower(req.System), "translator"):
		if len(texts) == 0 {
			return "", nil
		}
		return texts[len(texts)-1], nil
	case strings.Contains(prompt, "is_medicine"):
		return `{"is_medicine": true, "matches_prescription": true, "medicine_name": "Paracetamol 500mg", "instructions": "Take one tablet twice daily for 5 days after food.", "warning": ""}`, nil
	case hasImage && strings.Contains(prompt, "Extract all legible text"):
		return "Paracetamol Tablets IP 500mg", nil
	case hasImage:
		return "Take Paracetamol 500mg twice daily for 5 days after food.", nil
	case strings.Contains(prompt, "JSON:"):
		return "Take Paracetamol 500mg twice daily for 5 days after food.", nil
	default:
		return "Paracetamol helps with fever and mild pain. Keep taking it as prescribed, drink plenty of fluids and rest. See a doctor if the fever lasts more than three days.", nil
	}
}

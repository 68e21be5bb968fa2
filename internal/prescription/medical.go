package prescription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/swaasthya/saathi/internal/reliability"
)

// DefaultMedicalAPIURL is the hosted structured-prescription service.
const DefaultMedicalAPIURL = "https://medical-api-endpoints.onrender.com/summarize-prescription"

const medicalService = "medical-api"

// MedicalClient posts draft prescription text to a service that returns a
// structured JSON rendering of it.
type MedicalClient struct {
	url    string
	client *http.Client
}

func NewMedicalClient(url string, timeout time.Duration) *MedicalClient {
	if strings.TrimSpace(url) == "" {
		url = DefaultMedicalAPIURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MedicalClient{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *MedicalClient) Summarize(ctx context.Context, text string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, reliability.Upstream(medicalService, "summarize", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.HTTPStatusError(medicalService, "summarize", res.StatusCode, string(body))
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, reliability.Upstream(medicalService, "summarize", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil, reliability.Upstream(medicalService, "summarize", fmt.Errorf("response is not JSON"))
	}
	return json.RawMessage(body), nil
}

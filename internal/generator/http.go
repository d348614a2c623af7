package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/askdb-labs/askdb/internal/errors"
)

// HTTPConfig configures the HTTP generator.
type HTTPConfig struct {
	// Endpoint is the inference endpoint URL.
	Endpoint string

	// Token, when set, is sent as a bearer token.
	Token string

	// Timeout bounds each generation call.
	Timeout time.Duration

	// Deterministic declares whether the endpoint samples at
	// temperature zero. Reported as-is to the evaluator.
	Deterministic bool
}

// HTTP posts the rendered prompt to an inference endpoint and cleans
// whatever comes back. Transport failures classify as
// generation_failed, which is retryable.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP creates an HTTP generator.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	SQL  string `json:"sql"`
	Text string `json:"text"`
}

func (h *HTTP) Generate(ctx context.Context, req Request) (Candidate, error) {
	body, err := json.Marshal(generateRequest{Prompt: BuildPrompt(req)})
	if err != nil {
		return Candidate{}, errors.NewGenerationFailed(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Candidate{}, errors.NewGenerationFailed(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.cfg.Token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Candidate{}, errors.NewGenerationFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Candidate{}, errors.NewGenerationFailed(
			fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Candidate{}, errors.NewGenerationFailed(fmt.Errorf("decode response: %w", err))
	}
	raw := out.SQL
	if raw == "" {
		raw = out.Text
	}
	return Candidate{SQL: CleanOutput(raw), Raw: raw}, nil
}

func (h *HTTP) Deterministic() bool { return h.cfg.Deterministic }

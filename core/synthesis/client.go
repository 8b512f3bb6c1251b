package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/cruz-jay/beatbot/model"
)

// ClientConfig contains configuration for the synthesis provider client.
type ClientConfig struct {
	APIURL         string
	APIToken       string
	Model          string
	Duration       int
	AttemptTimeout time.Duration
}

// Client calls the external synthesis provider. One HTTP POST per
// attempt; retry policy lives in the orchestrator, not here.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a synthesis provider client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 90 * time.Second
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 8
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.AttemptTimeout,
		},
	}
}

// buildPayload picks the request shape for the configured model. The
// stable-audio family takes a structured inputs object; everything
// else takes a bare inputs string.
func (c *Client) buildPayload(text string) interface{} {
	if strings.Contains(c.cfg.Model, "stable-audio") {
		return model.SynthStructuredRequest{
			Inputs: model.SynthStructuredInputs{
				Prompt:        text,
				Duration:      c.cfg.Duration,
				GuidanceScale: 3.5,
				Seed:          rand.Intn(1000000),
			},
		}
	}
	return model.SynthTextRequest{Inputs: text}
}

// Synthesize performs a single provider attempt. A nil error means a
// 2xx exchange whose body has been decoded into a ProviderResponse;
// note a 2xx body that is not audio decodes to ErrorPayload, which is
// not retried.
func (c *Client) Synthesize(ctx context.Context, text string) (ProviderResponse, error) {
	jsonBody, err := json.Marshal(c.buildPayload(text))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.APIURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send synthesis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    errorMessageFromBody(body),
		}
	}

	return decodeResponse(resp.Header.Get("Content-Type"), body), nil
}

// errorMessageFromBody extracts a short human-readable message from a
// non-2xx body, which may be JSON, HTML, or plain text.
func errorMessageFromBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no response body"
	}

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		var envelope model.SynthEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
			return envelope.Error
		}
	}

	if strings.Contains(text, "<!DOCTYPE html>") || strings.Contains(text, "<html") {
		if strings.Contains(text, "Service Unavailable") || strings.Contains(text, "503") {
			return "Service Unavailable"
		}
		return "provider returned an HTML error page"
	}

	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// Package gemini scores simplified credit reports with the Gemini
// generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"miriesgo/internal/scoring/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash-latest"

	maxResponseBytes = 1 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  HTTPDoer
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  client,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Score asks the model for a risk score. Every failure is an *Error.
func (c *Client) Score(ctx context.Context, report models.SimplifiedReport) (*models.RiskScore, error) {
	if !c.Configured() {
		return nil, newError(CategoryAuthentication, "api key not configured", nil)
	}

	prompt, err := buildPrompt(report)
	if err != nil {
		return nil, newError(CategoryInternal, "failed to build prompt", err)
	}
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0.2, ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return nil, newError(CategoryInternal, "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(CategoryInternal, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if timedOut(ctx, err) {
			return nil, newError(CategoryTimeout, "request timeout", err)
		}
		return nil, newError(CategoryOutage, "failed to execute request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if timedOut(ctx, err) {
			return nil, newError(CategoryTimeout, "response timeout", err)
		}
		return nil, newError(CategoryBadData, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := newError(classifyStatus(resp.StatusCode), fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	score, err := parseResponse(raw)
	if err != nil {
		return nil, newError(CategoryBadData, "failed to parse model output", err)
	}
	return score, nil
}

func timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyStatus(code int) Category {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuthentication
	case http.StatusTooManyRequests:
		return CategoryRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CategoryTimeout
	case http.StatusBadRequest:
		return CategoryBadData
	default:
		return CategoryOutage
	}
}

func parseResponse(raw []byte) (*models.RiskScore, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no candidates in response")
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	var score models.RiskScore
	if err := json.Unmarshal([]byte(stripFences(text.String())), &score); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}
	if err := score.Validate(); err != nil {
		return nil, err
	}
	return &score, nil
}

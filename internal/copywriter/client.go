// Package copywriter talks to an OpenAI-compatible chat-completions API
// for product analysis and sales copy generation.
package copywriter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

var ErrNotConfigured = errors.New("AI API key not configured")

// APIError represents a non-2xx response from the completions endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client is a minimal chat-completions client. The zero API key is legal:
// every call then fails fast with ErrNotConfigured so the UI can point
// the user at settings instead of at a network error.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// AnalyzeProduct scores a product's short-video sales potential.
func (c *Client) AnalyzeProduct(ctx context.Context, title string, price float64, sales int) (string, error) {
	prompt := fmt.Sprintf(`Analyze this product for TikTok shop potential:
- Title: %s
- Price: $%.2f
- Sales: %d

Answer concisely (under 200 words):
1. Market potential score (0-10)
2. Target audience profile
3. Suggested short-video marketing hooks`, title, price, sales)

	return c.Complete(ctx, "", prompt)
}

// OptimizeScript rewrites a DM or sales script to sound like a person
// with a clear call to action.
func (c *Client) OptimizeScript(ctx context.Context, script, intent string) (string, error) {
	prompt := fmt.Sprintf(`User intent: %s
Original script: %s

Rewrite the script to sound warm and human rather than automated, and include a clear call to action.`, intent, script)

	return c.Complete(ctx, "", prompt)
}

// VideoScript drafts a short-form video script for a product.
func (c *Client) VideoScript(ctx context.Context, product, angle string) (string, error) {
	prompt := fmt.Sprintf(`Write a 30-second TikTok video script selling: %s
Marketing angle: %s

Structure: hook (first 3 seconds), 2-3 selling points, call to action. Keep it punchy.`, product, angle)

	return c.Complete(ctx, "", prompt)
}

// Complete sends one chat-completion round trip. An empty systemPrompt
// falls back to the shop-operations default.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant for TikTok shop operations."
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())

	if c.logger != nil {
		c.logger.Debug("requesting completion", "model", c.model, "body_bytes", len(body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

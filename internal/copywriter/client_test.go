package copywriter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionHandler(t *testing.T, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(completionHandler(t, "  Score: 8/10  "))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "deepseek-chat", nil)
	got, err := c.Complete(context.Background(), "", "analyze this")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Score: 8/10" {
		t.Errorf("Complete() = %q, want trimmed reply", got)
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewClient("https://api.deepseek.com", "", "deepseek-chat", nil)
	_, err := c.Complete(context.Background(), "", "analyze this")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Complete() error = %v, want ErrNotConfigured", err)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "deepseek-chat", nil)
	_, err := c.Complete(context.Background(), "", "prompt")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if !apiErr.IsRetryable() {
		t.Error("429 should be retryable")
	}
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestAnalyzeProduct_PromptContents(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Messages[1].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "deepseek-chat", nil)
	if _, err := c.AnalyzeProduct(context.Background(), "LED dog collar", 12.99, 4300); err != nil {
		t.Fatalf("AnalyzeProduct() error = %v", err)
	}
	for _, want := range []string{"LED dog collar", "12.99", "4300"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q: %s", want, gotPrompt)
		}
	}
}

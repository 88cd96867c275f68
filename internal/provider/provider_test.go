package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sitelens/sitelens/internal/config"
)

var testImg = Image{Data: []byte{0xff, 0xd8, 0xff, 0xe0}, MIMEType: "image/jpeg"}

func anthropicFor(t *testing.T, url string) *AnthropicClient {
	t.Helper()
	return NewAnthropicClient(config.AnthropicConfig{
		APIKey:    "test-key",
		BaseURL:   url,
		Model:     "claude-test",
		MaxTokens: 1024,
	})
}

func TestAnthropicAnalyzeSuccess(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Errorf("request shape: %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": `{"overallScore": 80}`}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	result, err := anthropicFor(t, server.URL).Analyze(context.Background(), testImg, "audit this page")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	if result.Text != `{"overallScore": 80}` {
		t.Errorf("Text = %q", result.Text)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q, want /v1/messages", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
}

func TestAnthropicClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, FailureAuth},
		{"forbidden", http.StatusForbidden, FailureAuth},
		{"rate limited", http.StatusTooManyRequests, FailureRateLimited},
		{"server error", http.StatusInternalServerError, FailureServer},
		{"bad gateway", http.StatusBadGateway, FailureServer},
		{"unexpected 4xx", http.StatusUnprocessableEntity, FailureServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := anthropicFor(t, server.URL).Analyze(context.Background(), testImg, "p")
			var provErr *Error
			if !errors.As(err, &provErr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if provErr.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", provErr.Kind, tt.want)
			}
			if provErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", provErr.Status, tt.status)
			}
		})
	}
}

func TestAnthropicEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{}})
	}))
	defer server.Close()

	_, err := anthropicFor(t, server.URL).Analyze(context.Background(), testImg, "p")
	var provErr *Error
	if !errors.As(err, &provErr) || provErr.Kind != FailureEmpty {
		t.Errorf("err = %v, want empty-response", err)
	}
}

func TestAnthropicNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	_, err := anthropicFor(t, server.URL).Analyze(context.Background(), testImg, "p")
	var provErr *Error
	if !errors.As(err, &provErr) || provErr.Kind != FailureNetwork {
		t.Errorf("err = %v, want network failure", err)
	}
}

func TestAnthropicConfigured(t *testing.T) {
	withKey := NewAnthropicClient(config.AnthropicConfig{APIKey: "k"})
	if !withKey.Configured() {
		t.Error("client with key reports unconfigured")
	}
	withoutKey := NewAnthropicClient(config.AnthropicConfig{})
	if withoutKey.Configured() {
		t.Error("client without key reports configured")
	}
}

func TestOpenAIAnalyzeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "looks fine"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"})
	result, err := client.Analyze(context.Background(), testImg, "audit")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if result.Text != "looks fine" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	_, err := client.Analyze(context.Background(), testImg, "p")
	var provErr *Error
	if !errors.As(err, &provErr) || provErr.Kind != FailureEmpty {
		t.Errorf("err = %v, want empty-response", err)
	}
}

func TestGeminiAnalyzeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "gemini answer"}}}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(config.GeminiConfig{APIKey: "k", BaseURL: server.URL, Model: "gemini-test", Enabled: true})
	result, err := client.Analyze(context.Background(), testImg, "audit")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if result.Text != "gemini answer" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestGeminiConfiguredRequiresEnable(t *testing.T) {
	disabled := NewGeminiClient(config.GeminiConfig{APIKey: "k", Enabled: false})
	if disabled.Configured() {
		t.Error("disabled client reports configured")
	}
	enabled := NewGeminiClient(config.GeminiConfig{APIKey: "k", Enabled: true})
	if !enabled.Configured() {
		t.Error("enabled client with key reports unconfigured")
	}
	noKey := NewGeminiClient(config.GeminiConfig{Enabled: true})
	if noKey.Configured() {
		t.Error("enabled client without key reports configured")
	}
}

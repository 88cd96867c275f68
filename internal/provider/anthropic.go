package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitelens/sitelens/internal/config"
)

// AnthropicClient calls the Anthropic Messages API with a vision content
// block. It is the primary provider in the fallback chain.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewAnthropicClient creates a client from configuration. A client with an
// empty API key is valid but reports Configured() == false.
func NewAnthropicClient(cfg config.AnthropicConfig) *AnthropicClient {
	timeout := cfg.Timeout
	if timeout == 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	rpm := cfg.RateRPM
	if rpm <= 0 {
		rpm = 50
	}
	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

// Name identifies the provider.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Configured reports whether an API key is present.
func (c *AnthropicClient) Configured() bool { return c.apiKey != "" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Analyze sends one screenshot with a prompt. One attempt, no retry.
func (c *AnthropicClient) Analyze(ctx context.Context, img Image, prompt string) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, networkError(c.Name(), err)
	}

	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{
					Type: "image",
					Source: &anthropicImageSource{
						Type:      "base64",
						MediaType: img.MIMEType,
						Data:      base64.StdEncoding.EncodeToString(img.Data),
					},
				},
				{Type: "text", Text: prompt},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	defer resp.Body.Close()

	respBody := readBody(resp.Body)
	if clsErr := classifyHTTP(c.Name(), resp.StatusCode, respBody); clsErr != nil {
		return nil, clsErr
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, emptyError(c.Name(), "unparseable response body")
	}

	for _, block := range apiResp.Content {
		if block.Type == "text" && block.Text != "" {
			return &Result{Text: block.Text}, nil
		}
	}
	return nil, emptyError(c.Name(), "response contained no text block")
}

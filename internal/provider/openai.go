package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sitelens/sitelens/internal/config"
)

// OpenAIClient calls the OpenAI chat completions API with an image_url data
// URI. It is the secondary provider in the fallback chain.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewOpenAIClient creates a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout == 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	rpm := cfg.RateRPM
	if rpm <= 0 {
		rpm = 60
	}
	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

// Name identifies the provider.
func (c *OpenAIClient) Name() string { return "openai" }

// Configured reports whether an API key is present.
func (c *OpenAIClient) Configured() bool { return c.apiKey != "" }

type openAIRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Messages  []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Analyze sends one screenshot with a prompt. One attempt, no retry.
func (c *OpenAIClient) Analyze(ctx context.Context, img Image, prompt string) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, networkError(c.Name(), err)
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
	req := openAIRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURI}},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	defer resp.Body.Close()

	respBody := readBody(resp.Body)
	if clsErr := classifyHTTP(c.Name(), resp.StatusCode, respBody); clsErr != nil {
		return nil, clsErr
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, emptyError(c.Name(), "unparseable response body")
	}

	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, emptyError(c.Name(), "response contained no message content")
	}
	return &Result{Text: apiResp.Choices[0].Message.Content}, nil
}

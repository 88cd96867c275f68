package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sitelens/sitelens/internal/config"
)

// GeminiClient calls the Gemini generateContent API with inline image data.
// Optional third provider; disabled unless explicitly enabled.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	enabled    bool
	httpClient *http.Client
}

// NewGeminiClient creates a client from configuration.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout == 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider.
func (c *GeminiClient) Name() string { return "gemini" }

// Configured reports whether the provider is enabled and has a key.
func (c *GeminiClient) Configured() bool { return c.enabled && c.apiKey != "" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends one screenshot with a prompt. One attempt, no retry.
func (c *GeminiClient) Analyze(ctx context.Context, img Image, prompt string) (*Result, error) {
	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MIMEType: img.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
				{Text: prompt},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	defer resp.Body.Close()

	respBody := readBody(resp.Body)
	if clsErr := classifyHTTP(c.Name(), resp.StatusCode, respBody); clsErr != nil {
		return nil, clsErr
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, emptyError(c.Name(), "unparseable response body")
	}

	for _, cand := range apiResp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return &Result{Text: part.Text}, nil
			}
		}
	}
	return nil, emptyError(c.Name(), "response contained no text part")
}

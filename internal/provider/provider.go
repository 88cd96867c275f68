// Package provider contains the typed clients for the external
// vision-analysis backends. All clients share one contract: a single
// attempt per call, a bounded per-call timeout, and failures classified
// into the reasons the orchestrator's fallback decision depends on.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FailureKind classifies why a provider call failed.
type FailureKind string

const (
	// FailureAuth - 401/403; the key is bad, do not retry within the run.
	FailureAuth FailureKind = "auth"
	// FailureRateLimited - 429; terminal for this run, may work later.
	FailureRateLimited FailureKind = "rate-limited"
	// FailureServer - 5xx from the provider.
	FailureServer FailureKind = "server-error"
	// FailureEmpty - HTTP success but no usable payload.
	FailureEmpty FailureKind = "empty-response"
	// FailureNetwork - no response received at all.
	FailureNetwork FailureKind = "network"
	// FailureUnavailable - the client refused to call (circuit open).
	FailureUnavailable FailureKind = "unavailable"
)

// Image is the payload handed to a provider: raw bytes plus MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Result is a successful provider answer: free text that may or may not be
// well-formed JSON. Normalization happens downstream.
type Result struct {
	Text string
}

// Error is the classified failure of one provider call.
type Error struct {
	Provider string
	Kind     FailureKind
	Status   int
	Message  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Client is the shared contract of every vision backend.
type Client interface {
	// Name identifies the provider in logs and error messages.
	Name() string
	// Configured reports whether the required credentials are present.
	// Unconfigured providers are skipped by the orchestrator pre-flight.
	Configured() bool
	// Analyze sends one screenshot with a prompt and returns the raw text
	// answer. Exactly one attempt; the call carries its own timeout.
	Analyze(ctx context.Context, img Image, prompt string) (*Result, error)
}

// classifyHTTP maps an HTTP response to a classified provider error.
// Returns nil for 2xx.
func classifyHTTP(providerName string, status int, body []byte) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Provider: providerName, Kind: FailureAuth, Status: status, Message: truncate(body, 200)}
	case status == http.StatusTooManyRequests:
		return &Error{Provider: providerName, Kind: FailureRateLimited, Status: status, Message: truncate(body, 200)}
	case status >= 500:
		return &Error{Provider: providerName, Kind: FailureServer, Status: status, Message: truncate(body, 200)}
	default:
		// Unexpected 4xx - treat like a server-side rejection of this run.
		return &Error{Provider: providerName, Kind: FailureServer, Status: status, Message: truncate(body, 200)}
	}
}

// networkError wraps a transport-level failure.
func networkError(providerName string, err error) *Error {
	return &Error{Provider: providerName, Kind: FailureNetwork, Message: err.Error()}
}

// emptyError marks an HTTP success with an unusable payload.
func emptyError(providerName, detail string) *Error {
	return &Error{Provider: providerName, Kind: FailureEmpty, Message: detail}
}

func readBody(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil
	}
	return body
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}

package domain

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// TargetKind distinguishes what the audit was asked to look at
type TargetKind string

const (
	TargetKindURL   TargetKind = "url"
	TargetKindImage TargetKind = "image"
)

// Target is the immutable input of an audit: either a normalized absolute
// URL or an in-memory image with a detected MIME type.
type Target struct {
	Kind TargetKind `json:"kind"`
	URL  string     `json:"url,omitempty"`

	// Image payload, base64-encoded for storage. Only set for TargetKindImage.
	ImageBase64 string `json:"image_base64,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
}

// NewURLTarget validates and normalizes a raw URL into a Target.
func NewURLTarget(rawURL string) (Target, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Target{}, err
	}
	return Target{Kind: TargetKindURL, URL: normalized}, nil
}

// NewImageTarget wraps raw image bytes into a Target. The MIME type is
// sniffed from the magic bytes when not supplied.
func NewImageTarget(data []byte, mimeType string) (Target, error) {
	if len(data) == 0 {
		return Target{}, ValidationError("image", "image data is empty")
	}
	if mimeType == "" {
		mimeType = DetectImageMIME(data)
	}
	if !IsSupportedImageMIME(mimeType) {
		return Target{}, ValidationError("image", fmt.Sprintf("unsupported image type %q", mimeType))
	}
	return Target{
		Kind:        TargetKindImage,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MIMEType:    mimeType,
	}, nil
}

// ImageBytes decodes the stored image payload.
func (t Target) ImageBytes() ([]byte, error) {
	if t.Kind != TargetKindImage {
		return nil, ValidationError("target", "target has no image payload")
	}
	return base64.StdEncoding.DecodeString(t.ImageBase64)
}

// NormalizeURL turns user input into an absolute http(s) URL.
func NormalizeURL(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", ValidationError("url", "url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ValidationError("url", "invalid url: "+err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ValidationError("url", fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return "", ValidationError("url", "url has no host")
	}

	parsed.Fragment = ""
	return parsed.String(), nil
}

// DetectImageMIME sniffs common image formats from magic bytes.
func DetectImageMIME(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// IsSupportedImageMIME reports whether the vision providers accept the type.
func IsSupportedImageMIME(mime string) bool {
	switch mime {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return true
	}
	return false
}

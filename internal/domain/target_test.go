package domain

import (
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare host gets https",
			input: "example.com",
			want:  "https://example.com",
		},
		{
			name:  "http preserved",
			input: "http://example.com/page",
			want:  "http://example.com/page",
		},
		{
			name:  "fragment stripped",
			input: "https://example.com/page#section",
			want:  "https://example.com/page",
		},
		{
			name:  "query preserved",
			input: "https://example.com/search?q=design",
			want:  "https://example.com/search?q=design",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  example.com/path  ",
			want:  "https://example.com/path",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			input:   "ftp://example.com",
			wantErr: true,
		},
		{
			name:    "no host",
			input:   "https://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeURL(%q) = %q, want error", tt.input, got)
				}
				if !IsCode(err, ErrCodeValidation) {
					t.Errorf("error code = %v, want VALIDATION_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetectImageMIME(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"gif", []byte("GIF89a..."), "image/gif"},
		{"unknown", []byte("not an image"), "application/octet-stream"},
		{"empty", nil, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageMIME(tt.data); got != tt.want {
				t.Errorf("DetectImageMIME = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewImageTarget(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\npayload")

	target, err := NewImageTarget(png, "")
	if err != nil {
		t.Fatalf("NewImageTarget error: %v", err)
	}
	if target.Kind != TargetKindImage {
		t.Errorf("Kind = %q, want image", target.Kind)
	}
	if target.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png (sniffed)", target.MIMEType)
	}

	roundTrip, err := target.ImageBytes()
	if err != nil {
		t.Fatalf("ImageBytes error: %v", err)
	}
	if string(roundTrip) != string(png) {
		t.Error("ImageBytes did not round-trip the payload")
	}

	if _, err := NewImageTarget(nil, ""); err == nil {
		t.Error("empty image accepted, want validation error")
	}
	if _, err := NewImageTarget([]byte("plain text"), ""); err == nil {
		t.Error("non-image bytes accepted, want validation error")
	}
	if _, err := NewImageTarget(png, "application/pdf"); err == nil {
		t.Error("unsupported declared MIME accepted, want validation error")
	}
}

func TestURLTargetHasNoImage(t *testing.T) {
	target, err := NewURLTarget("example.com")
	if err != nil {
		t.Fatalf("NewURLTarget error: %v", err)
	}
	if _, err := target.ImageBytes(); err == nil {
		t.Error("ImageBytes on URL target succeeded, want error")
	}
	if !strings.HasPrefix(target.URL, "https://") {
		t.Errorf("URL = %q, want https scheme", target.URL)
	}
}

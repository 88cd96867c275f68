package domain

import (
	"encoding/json"
	"testing"
)

func TestIssueUnmarshalAcceptsBothForms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText string
		wantRec  string
	}{
		{
			name:     "bare string",
			input:    `"Text is too small"`,
			wantText: "Text is too small",
		},
		{
			name:     "object with text",
			input:    `{"text": "Low contrast header", "recommendation": "Darken the text", "priority": "high"}`,
			wantText: "Low contrast header",
			wantRec:  "Darken the text",
		},
		{
			name:     "object with legacy issue key",
			input:    `{"issue": "Missing CTA above the fold"}`,
			wantText: "Missing CTA above the fold",
		},
		{
			name:     "object with description key",
			input:    `{"description": "Crowded navigation"}`,
			wantText: "Crowded navigation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issue Issue
			if err := json.Unmarshal([]byte(tt.input), &issue); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if issue.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", issue.Text, tt.wantText)
			}
			if issue.Recommendation != tt.wantRec {
				t.Errorf("Recommendation = %q, want %q", issue.Recommendation, tt.wantRec)
			}
		})
	}
}

func TestSuggestionUnmarshalAcceptsBothForms(t *testing.T) {
	var s Suggestion
	if err := json.Unmarshal([]byte(`"Add a sticky header"`), &s); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if s.Text != "Add a sticky header" {
		t.Errorf("Text = %q", s.Text)
	}

	if err := json.Unmarshal([]byte(`{"suggestion": "Increase line height"}`), &s); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if s.Text != "Increase line height" {
		t.Errorf("Text = %q", s.Text)
	}
}

func TestIssueUnmarshalWithBBox(t *testing.T) {
	var issue Issue
	input := `{"text": "Button overlaps footer", "bbox": [10, 20, 110, 60]}`
	if err := json.Unmarshal([]byte(input), &issue); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if issue.BBox == nil {
		t.Fatal("BBox is nil")
	}
	if (*issue.BBox)[2] != 110 {
		t.Errorf("BBox x2 = %v, want 110", (*issue.BBox)[2])
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-10, 0}, {0, 0}, {55, 55}, {100, 100}, {150, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeEnforcesInvariants(t *testing.T) {
	a := NormalizedAnalysis{
		Issues:       []Issue{{Text: "real"}, {Text: "   "}, {Text: ""}},
		Suggestions:  nil,
		OverallScore: 250,
	}
	a.Normalize()

	if a.OverallScore != 100 {
		t.Errorf("OverallScore = %d, want 100", a.OverallScore)
	}
	if a.Issues == nil || a.Suggestions == nil {
		t.Fatal("slices must be non-nil after Normalize")
	}
	if len(a.Issues) != 1 {
		t.Errorf("len(Issues) = %d, want 1 (empty entries dropped)", len(a.Issues))
	}
}

func TestScoreCategories(t *testing.T) {
	m := PageMetrics{
		BaseFontSizePx: 16,
		SmallTextRatio: 0,
		ContrastRatio:  7.2,
		CTACount:       3,
		ViewportMeta:   true,
	}
	got := ScoreCategories(m)
	want := CategoryScores{Typography: 100, Contrast: 100, CTA: 100, Mobile: 100}
	if got != want {
		t.Errorf("clean page scores = %+v, want %+v", got, want)
	}

	bad := PageMetrics{
		BaseFontSizePx: 11,
		SmallTextRatio: 0.5,
		ContrastRatio:  2.1,
		CTACount:       0,
		ViewportMeta:   false,
	}
	got = ScoreCategories(bad)
	if got.Typography >= 100 || got.Contrast != 30 || got.CTA != 40 || got.Mobile != 40 {
		t.Errorf("bad page scores = %+v", got)
	}

	// Unmeasurable contrast is middling, not zero.
	if s := ScoreCategories(PageMetrics{ContrastRatio: 0, ViewportMeta: true, CTACount: 1, BaseFontSizePx: 16}); s.Contrast != 50 {
		t.Errorf("unmeasured contrast = %d, want 50", s.Contrast)
	}
}

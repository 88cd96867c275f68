package analysis

import (
	"strings"
	"testing"
)

func TestNormalizeWellFormedJSON(t *testing.T) {
	raw := `{
		"issues": [{"text": "Body text is below 12px on mobile"}],
		"suggestions": ["Increase the base font size"],
		"overallScore": 68,
		"visualDescription": "A dense news layout with a three column grid."
	}`

	result := Normalize(raw)

	if result.OverallScore != 68 {
		t.Errorf("OverallScore = %d, want 68", result.OverallScore)
	}
	if len(result.Issues) != 1 || result.Issues[0].Text != "Body text is below 12px on mobile" {
		t.Errorf("Issues = %+v", result.Issues)
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].Text != "Increase the base font size" {
		t.Errorf("Suggestions = %+v", result.Suggestions)
	}
	if result.VisualDescription != "A dense news layout with a three column grid." {
		t.Errorf("VisualDescription = %q", result.VisualDescription)
	}
}

func TestNormalizeSnakeCaseFields(t *testing.T) {
	raw := `{"overall_score": 91, "visual_description": "Minimal portfolio page.", "issues": [], "suggestions": []}`

	result := Normalize(raw)

	if result.OverallScore != 91 {
		t.Errorf("OverallScore = %d, want 91", result.OverallScore)
	}
	if result.VisualDescription != "Minimal portfolio page." {
		t.Errorf("VisualDescription = %q", result.VisualDescription)
	}
}

func TestNormalizeFencedJSON(t *testing.T) {
	raw := "Here is the audit result:\n```json\n{\"overallScore\": 55, \"visualDescription\": \"Cluttered storefront.\"}\n```\nLet me know if you need more."

	result := Normalize(raw)

	if result.OverallScore != 55 {
		t.Errorf("OverallScore = %d, want 55", result.OverallScore)
	}
	if result.VisualDescription != "Cluttered storefront." {
		t.Errorf("VisualDescription = %q", result.VisualDescription)
	}
}

func TestNormalizeJSONEmbeddedInProse(t *testing.T) {
	raw := `Sure! {"overallScore": 77, "visualDescription": "Landing page with a full width hero."} Hope this helps.`

	result := Normalize(raw)

	if result.OverallScore != 77 {
		t.Errorf("OverallScore = %d, want 77", result.OverallScore)
	}
	if result.VisualDescription != "Landing page with a full width hero." {
		t.Errorf("VisualDescription = %q", result.VisualDescription)
	}
}

func TestNormalizeTruncatedMidString(t *testing.T) {
	// A token limit cut the response off inside visualDescription.
	raw := `{"overallScore": 82, "issues": [{"text": "Carousel auto-advances too fast"}], "visualDescription": "A clean landing page with a dark hero section and a prominent signup form in the cen`

	result := Normalize(raw)

	if result.OverallScore != 82 {
		t.Errorf("salvaged score = %d, want 82", result.OverallScore)
	}
	if !strings.HasPrefix(result.VisualDescription, "A clean landing page with a dark hero section") {
		t.Errorf("VisualDescription = %q, want truncated prefix preserved", result.VisualDescription)
	}
	if len(result.Issues) != 1 || result.Issues[0].Text != "Carousel auto-advances too fast" {
		t.Errorf("Issues = %+v, want the complete array salvaged", result.Issues)
	}
	// Suggestions never arrived; a placeholder marks the gap.
	if len(result.Suggestions) != 1 || !strings.Contains(result.Suggestions[0].Text, "cut short") {
		t.Errorf("Suggestions = %+v, want truncation placeholder", result.Suggestions)
	}
}

func TestNormalizeTruncatedWithoutScore(t *testing.T) {
	raw := `{"visualDescription": "Two column blog index with oversized pull quotes and ver`

	result := Normalize(raw)

	if result.OverallScore != defaultScore {
		t.Errorf("score = %d, want default %d", result.OverallScore, defaultScore)
	}
	if !strings.HasPrefix(result.VisualDescription, "Two column blog index") {
		t.Errorf("VisualDescription = %q", result.VisualDescription)
	}
}

func TestNormalizeProseFallback(t *testing.T) {
	raw := "The page looks reasonable overall. Navigation is clear and the color palette is consistent."

	result := Normalize(raw)

	if result.OverallScore != defaultScore {
		t.Errorf("score = %d, want default %d", result.OverallScore, defaultScore)
	}
	if result.VisualDescription != raw {
		t.Errorf("VisualDescription = %q, want the prose verbatim", result.VisualDescription)
	}
	if len(result.Issues) == 0 || len(result.Suggestions) == 0 {
		t.Error("fallback must still produce placeholder issues and suggestions")
	}
}

func TestNormalizeEmptyObjectFallsThrough(t *testing.T) {
	result := Normalize("{}")

	if result.OverallScore != defaultScore {
		t.Errorf("score = %d, want default %d", result.OverallScore, defaultScore)
	}
	if len(result.Issues) == 0 || len(result.Suggestions) == 0 {
		t.Error("empty object must not yield an empty result")
	}
}

func TestNormalizeClampsScore(t *testing.T) {
	result := Normalize(`{"overallScore": 250, "visualDescription": "x"}`)
	if result.OverallScore != 100 {
		t.Errorf("score = %d, want clamped to 100", result.OverallScore)
	}

	result = Normalize(`{"overallScore": 0, "visualDescription": "x"}`)
	if result.OverallScore != 0 {
		t.Errorf("score = %d, want 0 preserved", result.OverallScore)
	}
}

func TestNormalizeBareStringIssues(t *testing.T) {
	raw := `{"issues": ["Low contrast footer links", "No visible search"], "suggestions": [{"text": "Add a search field to the header"}], "overallScore": 60, "visualDescription": "d"}`

	result := Normalize(raw)

	if len(result.Issues) != 2 || result.Issues[1].Text != "No visible search" {
		t.Errorf("Issues = %+v", result.Issues)
	}
	if len(result.Suggestions) != 1 || result.Suggestions[0].Text != "Add a search field to the header" {
		t.Errorf("Suggestions = %+v", result.Suggestions)
	}
}

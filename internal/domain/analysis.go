package domain

import (
	"encoding/json"
	"strings"
)

// NormalizedAnalysis is the canonical shape every provider response is
// reduced to. Downstream code (merger, report rendering, API) only ever
// sees this one form.
type NormalizedAnalysis struct {
	Issues            []Issue      `json:"issues"`
	Suggestions       []Suggestion `json:"suggestions"`
	OverallScore      int          `json:"overall_score"`
	VisualDescription string       `json:"visual_description"`
	FreeFormAnalysis  string       `json:"free_form_analysis,omitempty"`
}

// Issue is a single UX/UI finding. Providers historically returned either a
// bare string or a richer object; both unmarshal into this struct.
type Issue struct {
	Text           string       `json:"text"`
	BBox           *BoundingBox `json:"bbox,omitempty"`
	Priority       string       `json:"priority,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	Impact         string       `json:"impact,omitempty"`
	Section        string       `json:"section,omitempty"`
}

// Suggestion is a single improvement recommendation.
type Suggestion struct {
	Text    string `json:"text"`
	Section string `json:"section,omitempty"`
}

// BoundingBox locates a finding on the screenshot as [x1,y1,x2,y2].
type BoundingBox [4]float64

// UnmarshalJSON accepts both the legacy bare-string form and the object
// form, so salvage-parsed provider output normalizes at the boundary.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Issue{Text: s}
		return nil
	}

	type issueAlias Issue
	var obj struct {
		issueAlias
		// Some models emit "issue" or "description" instead of "text".
		AltIssue       string `json:"issue"`
		AltDescription string `json:"description"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*i = Issue(obj.issueAlias)
	if i.Text == "" {
		if obj.AltIssue != "" {
			i.Text = obj.AltIssue
		} else if obj.AltDescription != "" {
			i.Text = obj.AltDescription
		}
	}
	return nil
}

// UnmarshalJSON accepts both bare strings and objects for suggestions.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = Suggestion{Text: str}
		return nil
	}

	type suggestionAlias Suggestion
	var obj struct {
		suggestionAlias
		AltSuggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Suggestion(obj.suggestionAlias)
	if s.Text == "" && obj.AltSuggestion != "" {
		s.Text = obj.AltSuggestion
	}
	return nil
}

// ClampScore forces a score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Normalize enforces the struct invariants in place: clamped score, non-nil
// slices, no empty-text elements.
func (a *NormalizedAnalysis) Normalize() {
	a.OverallScore = ClampScore(a.OverallScore)

	issues := make([]Issue, 0, len(a.Issues))
	for _, issue := range a.Issues {
		if strings.TrimSpace(issue.Text) == "" {
			continue
		}
		issues = append(issues, issue)
	}
	a.Issues = issues

	suggestions := make([]Suggestion, 0, len(a.Suggestions))
	for _, sug := range a.Suggestions {
		if strings.TrimSpace(sug.Text) == "" {
			continue
		}
		suggestions = append(suggestions, sug)
	}
	a.Suggestions = suggestions
}

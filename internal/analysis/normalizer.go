// Package analysis turns raw vision-model output into the canonical audit
// result: orchestrating the provider fallback chain, salvage-parsing
// near-JSON text, and merging per-section results.
package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/sitelens/sitelens/internal/domain"
)

const defaultScore = 75

var (
	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

	// Progressively looser visualDescription patterns, tried in order.
	visualDescQuotedRe       = regexp.MustCompile(`"visualDescription"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	visualDescUnterminatedRe = regexp.MustCompile(`(?s)"visualDescription"\s*:\s*"(.+)$`)
	visualDescObjectRe       = regexp.MustCompile(`"visualDescription"\s*:\s*\{`)
	anyLongStringRe          = regexp.MustCompile(`"((?:[^"\\]|\\.){15,})"`)

	scoreRe = regexp.MustCompile(`"(?:overallScore|overall_score|score)"\s*:\s*(\d{1,3})`)
)

// Normalize extracts a structurally complete NormalizedAnalysis out of raw
// provider text. The text may be well-formed JSON (possibly fenced),
// JSON truncated mid-object by a token limit, or plain prose. Each parse
// strategy is tried in order and the first success wins; no branch ever
// propagates a parse error outward.
func Normalize(raw string) domain.NormalizedAnalysis {
	text := stripCodeFences(raw)

	if result, ok := parseDirect(text); ok {
		result.Normalize()
		return result
	}

	if span := extractJSONObject(text); span != "" {
		if result, ok := parseDirect(span); ok {
			result.Normalize()
			return result
		}
	}

	if result, ok := salvageFields(text); ok {
		result.Normalize()
		return result
	}

	// No JSON-like structure anywhere: the whole text is the description.
	result := domain.NormalizedAnalysis{
		Issues:            []domain.Issue{{Text: "Automated analysis returned unstructured output; see the description for details."}},
		Suggestions:       []domain.Suggestion{{Text: "Re-run the audit for a structured breakdown."}},
		OverallScore:      defaultScore,
		VisualDescription: strings.TrimSpace(raw),
	}
	result.Normalize()
	return result
}

// stripCodeFences unwraps a ```json fenced block when present.
func stripCodeFences(text string) string {
	if matches := codeFenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return strings.TrimSpace(text)
}

// rawAnalysis accepts both camelCase and snake_case field spellings.
type rawAnalysis struct {
	Issues            []domain.Issue      `json:"issues"`
	Suggestions       []domain.Suggestion `json:"suggestions"`
	OverallScore      *json.Number        `json:"overallScore"`
	OverallScoreSnake *json.Number        `json:"overall_score"`
	VisualDescription string              `json:"visualDescription"`
	VisualDescSnake   string              `json:"visual_description"`
	FreeFormAnalysis  string              `json:"freeFormAnalysis"`
	FreeFormSnake     string              `json:"free_form_analysis"`
	Analysis          string              `json:"analysis"`
}

func parseDirect(text string) (domain.NormalizedAnalysis, bool) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.NormalizedAnalysis{}, false
	}

	result := domain.NormalizedAnalysis{
		Issues:            raw.Issues,
		Suggestions:       raw.Suggestions,
		OverallScore:      defaultScore,
		VisualDescription: firstNonEmpty(raw.VisualDescription, raw.VisualDescSnake),
		FreeFormAnalysis:  firstNonEmpty(raw.FreeFormAnalysis, raw.FreeFormSnake, raw.Analysis),
	}

	score := raw.OverallScore
	if score == nil {
		score = raw.OverallScoreSnake
	}
	if score != nil {
		if f, err := score.Float64(); err == nil {
			result.OverallScore = int(f)
		}
	}

	// A bare "{}" or an object with none of our fields is not a result.
	if result.VisualDescription == "" && result.FreeFormAnalysis == "" &&
		len(result.Issues) == 0 && len(result.Suggestions) == 0 && raw.OverallScore == nil && raw.OverallScoreSnake == nil {
		return domain.NormalizedAnalysis{}, false
	}

	return result, true
}

// salvageFields recovers what it can, field by field, from truncated JSON.
func salvageFields(text string) (domain.NormalizedAnalysis, bool) {
	if !strings.Contains(text, "{") {
		return domain.NormalizedAnalysis{}, false
	}

	result := domain.NormalizedAnalysis{
		VisualDescription: salvageVisualDescription(text),
		OverallScore:      salvageScore(text),
	}

	result.Issues = salvageIssueArray(text, "issues")
	if len(result.Issues) == 0 {
		result.Issues = []domain.Issue{{Text: "The analysis was cut short before issues could be listed."}}
	}
	result.Suggestions = salvageSuggestionArray(text, "suggestions")
	if len(result.Suggestions) == 0 {
		result.Suggestions = []domain.Suggestion{{Text: "The analysis was cut short before suggestions could be listed."}}
	}

	if result.VisualDescription == "" {
		// Nothing recognizable: hand off to the prose fallback.
		return domain.NormalizedAnalysis{}, false
	}
	return result, true
}

// salvageVisualDescription tries four progressively looser patterns.
func salvageVisualDescription(text string) string {
	// 1. Exact quoted, terminated string.
	if m := visualDescQuotedRe.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
		return unescapeJSONString(m[1])
	}

	// 2. Quoted but unterminated (truncation hit mid-string).
	if m := visualDescUnterminatedRe.FindStringSubmatch(text); len(m) > 1 {
		val := m[1]
		// Cut at an unescaped quote if one shows up before the next field.
		if idx := indexUnescapedQuote(val); idx >= 0 {
			val = val[:idx]
		}
		return unescapeJSONString(strings.TrimSpace(val))
	}

	// 3. Nested object value, walked by brace depth.
	if loc := visualDescObjectRe.FindStringIndex(text); loc != nil {
		objStart := strings.Index(text[loc[0]:], "{") + loc[0]
		if span := extractJSONObject(text[objStart:]); span != "" {
			return flattenObjectStrings(span)
		}
	}

	// 4. Any reasonably long quoted string.
	if m := anyLongStringRe.FindStringSubmatch(text); len(m) > 1 {
		return unescapeJSONString(m[1])
	}
	return ""
}

func salvageScore(text string) int {
	if m := scoreRe.FindStringSubmatch(text); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return defaultScore
}

func salvageIssueArray(text, field string) []domain.Issue {
	span := extractArraySpan(text, field)
	if span == "" {
		return nil
	}
	var issues []domain.Issue
	if err := json.Unmarshal([]byte(span), &issues); err != nil {
		return nil
	}
	return issues
}

func salvageSuggestionArray(text, field string) []domain.Suggestion {
	span := extractArraySpan(text, field)
	if span == "" {
		return nil
	}
	var suggestions []domain.Suggestion
	if err := json.Unmarshal([]byte(span), &suggestions); err != nil {
		return nil
	}
	return suggestions
}

// extractArraySpan finds `"field": [...]` and returns the balanced bracket
// span, or "" when the array is absent or truncated.
func extractArraySpan(text, field string) string {
	re := regexp.MustCompile(`"` + field + `"\s*:\s*\[`)
	loc := re.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	start := strings.Index(text[loc[0]:], "[") + loc[0]
	return extractBalanced(text[start:], '[', ']')
}

// extractJSONObject returns the outermost balanced {...} span in text, or
// "" when none closes. String contents and escapes are honored.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	return extractBalanced(text[start:], '{', '}')
}

// extractBalanced walks text (which must begin with open) counting nesting
// depth, skipping string literals, and returns the balanced span.
func extractBalanced(text string, open, close byte) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == open {
			depth++
		} else if c == close {
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}

// flattenObjectStrings concatenates the string values of a JSON object span
// into one description, used when visualDescription arrived as an object.
func flattenObjectStrings(span string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return span
	}
	var parts []string
	for _, v := range obj {
		if s, ok := v.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return span
	}
	return strings.Join(parts, " ")
}

// indexUnescapedQuote returns the index of the first quote not preceded by
// a backslash, or -1.
func indexUnescapedQuote(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			return i
		}
	}
	return -1
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

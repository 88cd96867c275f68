package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sitelens/sitelens/internal/domain"
)

// SectionResult pairs a section with its independently normalized analysis.
type SectionResult struct {
	Section  domain.SectionName
	Analysis domain.NormalizedAnalysis
}

// subsection names of a freeFormAnalysis document.
const (
	subOverview        = "overview"
	subStrengths       = "strengths"
	subProblems        = "problems"
	subRecommendations = "recommendations"
	subFinalScore      = "final-score"
)

var subsectionOrder = []string{subOverview, subStrengths, subProblems, subRecommendations, subFinalScore}

// headingPatterns map a free-form heading line to a canonical subsection.
var headingPatterns = map[string]*regexp.Regexp{
	subOverview:        regexp.MustCompile(`(?i)^#*\s*\**\s*(overview|summary|обзор|общее впечатление)`),
	subStrengths:       regexp.MustCompile(`(?i)^#*\s*\**\s*(strengths?|what works|сильные стороны|что работает)`),
	subProblems:        regexp.MustCompile(`(?i)^#*\s*\**\s*(problems?|issues?|weaknesses?|проблемы|недостатки)`),
	subRecommendations: regexp.MustCompile(`(?i)^#*\s*\**\s*(recommendations?|improvements?|рекомендации|улучшения)`),
	subFinalScore:      regexp.MustCompile(`(?i)^#*\s*\**\s*(final score|overall score|verdict|итоговая оценка|вердикт)`),
}

// quickWinRe strips the "quick win" label (and its Russian equivalents)
// from all output text. Presentation normalization, applied post-merge.
var quickWinRe = regexp.MustCompile(`(?i)\(?\s*(quick[\s-]win[s]?|быстрая победа|быстрые победы)\s*[:!.]?\)?\s*`)

var multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)

// MergeSections combines independent per-section analyses into one result.
// The overall score is the arithmetic mean of the sections that produced a
// result (absent sections are excluded, not zero). Issues and suggestions
// are concatenated in fixed section order with a section tag on each
// element, so the merge does not depend on analysis completion order.
func MergeSections(results []SectionResult) domain.NormalizedAnalysis {
	if len(results) == 0 {
		return domain.NormalizedAnalysis{OverallScore: 0}
	}
	if len(results) == 1 {
		merged := tagSection(results[0])
		scrubQuickWins(&merged)
		merged.Normalize()
		return merged
	}

	bySection := make(map[domain.SectionName]SectionResult, len(results))
	for _, r := range results {
		bySection[r.Section] = r
	}

	var merged domain.NormalizedAnalysis
	var descriptions []string
	scoreSum, scoreCount := 0, 0

	for _, name := range domain.SectionOrder {
		r, ok := bySection[name]
		if !ok {
			continue
		}
		tagged := tagSection(r)
		merged.Issues = append(merged.Issues, tagged.Issues...)
		merged.Suggestions = append(merged.Suggestions, tagged.Suggestions...)
		scoreSum += r.Analysis.OverallScore
		scoreCount++
		if desc := strings.TrimSpace(r.Analysis.VisualDescription); desc != "" {
			descriptions = append(descriptions, fmt.Sprintf("[%s] %s", name, desc))
		}
	}

	if scoreCount > 0 {
		merged.OverallScore = scoreSum / scoreCount
	}
	merged.VisualDescription = strings.Join(descriptions, "\n\n")
	merged.FreeFormAnalysis = mergeFreeForm(bySection)

	scrubQuickWins(&merged)
	merged.Normalize()
	return merged
}

// scrubQuickWins strips the phrase from every text field of a result, so
// single-section and multi-section merges produce the same presentation.
func scrubQuickWins(a *domain.NormalizedAnalysis) {
	a.VisualDescription = stripQuickWins(a.VisualDescription)
	a.FreeFormAnalysis = stripQuickWins(a.FreeFormAnalysis)
	for i := range a.Issues {
		a.Issues[i].Text = stripQuickWins(a.Issues[i].Text)
		a.Issues[i].Recommendation = stripQuickWins(a.Issues[i].Recommendation)
	}
	for i := range a.Suggestions {
		a.Suggestions[i].Text = stripQuickWins(a.Suggestions[i].Text)
	}
}

func tagSection(r SectionResult) domain.NormalizedAnalysis {
	out := r.Analysis
	out.Issues = append([]domain.Issue(nil), r.Analysis.Issues...)
	out.Suggestions = append([]domain.Suggestion(nil), r.Analysis.Suggestions...)
	for i := range out.Issues {
		out.Issues[i].Section = string(r.Section)
	}
	for i := range out.Suggestions {
		out.Suggestions[i].Section = string(r.Section)
	}
	return out
}

// mergeFreeForm splits each section's free-form text into the five
// canonical subsections, then reassembles same-named subsections across
// sections: problems and recommendations deduplicated verbatim, overview
// and strengths grouped by label key keeping the longest variant.
func mergeFreeForm(bySection map[domain.SectionName]SectionResult) string {
	collected := make(map[string][]string)

	for _, name := range domain.SectionOrder {
		r, ok := bySection[name]
		if !ok || strings.TrimSpace(r.Analysis.FreeFormAnalysis) == "" {
			continue
		}
		parts := splitSubsections(r.Analysis.FreeFormAnalysis)
		for sub, body := range parts {
			if body != "" {
				collected[sub] = append(collected[sub], body)
			}
		}
	}

	if len(collected) == 0 {
		return ""
	}

	titles := map[string]string{
		subOverview:        "Overview",
		subStrengths:       "Strengths",
		subProblems:        "Problems",
		subRecommendations: "Recommendations",
		subFinalScore:      "Final score",
	}

	var out []string
	for _, sub := range subsectionOrder {
		bodies := collected[sub]
		if len(bodies) == 0 {
			continue
		}
		var body string
		switch sub {
		case subProblems, subRecommendations:
			body = dedupeLines(bodies)
		case subOverview, subStrengths:
			body = groupByLabel(bodies)
		default:
			body = strings.Join(bodies, "\n")
		}
		if body == "" {
			continue
		}
		out = append(out, "## "+titles[sub]+"\n"+body)
	}
	return strings.Join(out, "\n\n")
}

// splitSubsections cuts a markdown-ish document at heading lines that match
// a canonical subsection. Text before the first recognized heading counts
// as overview.
func splitSubsections(text string) map[string]string {
	parts := make(map[string][]string)
	current := subOverview

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		matched := ""
		for sub, re := range headingPatterns {
			if re.MatchString(trimmed) {
				matched = sub
				break
			}
		}
		if matched != "" {
			current = matched
			continue
		}
		if trimmed == "" {
			continue
		}
		parts[current] = append(parts[current], trimmed)
	}

	out := make(map[string]string, len(parts))
	for sub, lines := range parts {
		out[sub] = strings.Join(lines, "\n")
	}
	return out
}

// dedupeLines concatenates bodies keeping the first occurrence of each
// verbatim line.
func dedupeLines(bodies []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, body := range bodies {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// groupByLabel groups near-duplicate bullet lines under a shared key (the
// label token before the first colon) and keeps only the longest variant
// per key. Lines without a label pass through deduplicated.
func groupByLabel(bodies []string) string {
	type entry struct {
		order int
		line  string
	}
	byKey := make(map[string]entry)
	seen := make(map[string]bool)
	var keys []string
	var unlabeled []string
	order := 0

	for _, body := range bodies {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			label, rest, found := strings.Cut(line, ":")
			if !found || strings.TrimSpace(rest) == "" {
				if !seen[line] {
					seen[line] = true
					unlabeled = append(unlabeled, line)
				}
				continue
			}
			key := strings.ToLower(strings.TrimSpace(strings.TrimLeft(label, "-*• ")))
			existing, ok := byKey[key]
			if !ok {
				byKey[key] = entry{order: order, line: line}
				keys = append(keys, key)
				order++
			} else if len(line) > len(existing.line) {
				byKey[key] = entry{order: existing.order, line: line}
			}
		}
	}

	out := make([]string, 0, len(keys)+len(unlabeled))
	for _, key := range keys {
		out = append(out, byKey[key].line)
	}
	out = append(out, unlabeled...)
	return strings.Join(out, "\n")
}

// stripQuickWins removes the fixed phrase from output text and tidies the
// leftover whitespace.
func stripQuickWins(text string) string {
	if text == "" {
		return ""
	}
	cleaned := quickWinRe.ReplaceAllString(text, "")
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

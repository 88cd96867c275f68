package analysis

import (
	"strings"
	"testing"

	"github.com/sitelens/sitelens/internal/domain"
)

func sectionResult(section domain.SectionName, score int, issue string) SectionResult {
	return SectionResult{
		Section: section,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:      score,
			Issues:            []domain.Issue{{Text: issue}},
			Suggestions:       []domain.Suggestion{{Text: "Fix " + issue}},
			VisualDescription: "Description of " + string(section),
		},
	}
}

func TestMergeSectionsScoreIsMeanOfPresent(t *testing.T) {
	merged := MergeSections([]SectionResult{
		sectionResult(domain.SectionHeader, 80, "header issue"),
		sectionResult(domain.SectionFooter, 60, "footer issue"),
	})

	if merged.OverallScore != 70 {
		t.Errorf("OverallScore = %d, want 70 (mean of 80 and 60, main absent)", merged.OverallScore)
	}
}

func TestMergeSectionsOrderIndependent(t *testing.T) {
	forward := MergeSections([]SectionResult{
		sectionResult(domain.SectionHeader, 80, "header issue"),
		sectionResult(domain.SectionMain, 50, "main issue"),
		sectionResult(domain.SectionFooter, 60, "footer issue"),
	})
	reversed := MergeSections([]SectionResult{
		sectionResult(domain.SectionFooter, 60, "footer issue"),
		sectionResult(domain.SectionHeader, 80, "header issue"),
		sectionResult(domain.SectionMain, 50, "main issue"),
	})

	if forward.OverallScore != reversed.OverallScore {
		t.Errorf("scores differ by input order: %d vs %d", forward.OverallScore, reversed.OverallScore)
	}
	if len(forward.Issues) != 3 || len(reversed.Issues) != 3 {
		t.Fatalf("issue counts: %d and %d, want 3", len(forward.Issues), len(reversed.Issues))
	}
	for i := range forward.Issues {
		if forward.Issues[i] != reversed.Issues[i] {
			t.Errorf("issue %d differs by input order: %+v vs %+v", i, forward.Issues[i], reversed.Issues[i])
		}
	}
}

func TestMergeSectionsTagsElements(t *testing.T) {
	merged := MergeSections([]SectionResult{
		sectionResult(domain.SectionHeader, 80, "header issue"),
		sectionResult(domain.SectionMain, 70, "main issue"),
	})

	wantSections := []string{"header", "main"}
	for i, issue := range merged.Issues {
		if issue.Section != wantSections[i] {
			t.Errorf("issue %d section = %q, want %q", i, issue.Section, wantSections[i])
		}
	}
	for i, sug := range merged.Suggestions {
		if sug.Section != wantSections[i] {
			t.Errorf("suggestion %d section = %q, want %q", i, sug.Section, wantSections[i])
		}
	}
}

func TestMergeSectionsDoesNotMutateInput(t *testing.T) {
	input := sectionResult(domain.SectionHeader, 80, "header issue")
	MergeSections([]SectionResult{input, sectionResult(domain.SectionMain, 70, "main issue")})

	if input.Analysis.Issues[0].Section != "" {
		t.Errorf("input issue mutated: Section = %q", input.Analysis.Issues[0].Section)
	}
}

func TestMergeSectionsJoinsDescriptions(t *testing.T) {
	merged := MergeSections([]SectionResult{
		sectionResult(domain.SectionMain, 70, "main issue"),
		sectionResult(domain.SectionHeader, 80, "header issue"),
	})

	if !strings.Contains(merged.VisualDescription, "[header] Description of header") {
		t.Errorf("VisualDescription = %q, missing tagged header part", merged.VisualDescription)
	}
	headerIdx := strings.Index(merged.VisualDescription, "[header]")
	mainIdx := strings.Index(merged.VisualDescription, "[main]")
	if headerIdx < 0 || mainIdx < 0 || headerIdx > mainIdx {
		t.Errorf("descriptions out of section order: %q", merged.VisualDescription)
	}
}

func TestMergeSectionsSingleResult(t *testing.T) {
	merged := MergeSections([]SectionResult{sectionResult(domain.SectionMain, 65, "main issue")})

	if merged.OverallScore != 65 {
		t.Errorf("OverallScore = %d, want 65", merged.OverallScore)
	}
	if len(merged.Issues) != 1 || merged.Issues[0].Section != "main" {
		t.Errorf("Issues = %+v, want single tagged issue", merged.Issues)
	}
}

func TestMergeSectionsSingleResultStripsQuickWinsEverywhere(t *testing.T) {
	merged := MergeSections([]SectionResult{{
		Section: domain.SectionMain,
		Analysis: domain.NormalizedAnalysis{
			OverallScore: 70,
			Issues: []domain.Issue{{
				Text:           "Quick win: small tap targets",
				Recommendation: "Quick win! enlarge them",
			}},
			Suggestions:       []domain.Suggestion{{Text: "(quick win) bump the base font size"}},
			VisualDescription: "A cramped page. Quick win: add spacing.",
		},
	}})

	for _, text := range []string{
		merged.Issues[0].Text,
		merged.Issues[0].Recommendation,
		merged.Suggestions[0].Text,
		merged.VisualDescription,
	} {
		if strings.Contains(strings.ToLower(text), "quick win") {
			t.Errorf("quick-win label survived a single-section merge: %q", text)
		}
	}
}

func TestMergeSectionsEmpty(t *testing.T) {
	merged := MergeSections(nil)
	if merged.OverallScore != 0 {
		t.Errorf("OverallScore = %d, want 0", merged.OverallScore)
	}
}

func TestMergeFreeFormDeduplicatesProblems(t *testing.T) {
	header := SectionResult{
		Section: domain.SectionHeader,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:     80,
			FreeFormAnalysis: "## Problems\n- Navigation labels are vague\n- Logo links nowhere",
		},
	}
	footer := SectionResult{
		Section: domain.SectionFooter,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:     70,
			FreeFormAnalysis: "## Problems\n- Navigation labels are vague\n- Social icons missing alt text",
		},
	}

	merged := MergeSections([]SectionResult{header, footer})

	if got := strings.Count(merged.FreeFormAnalysis, "Navigation labels are vague"); got != 1 {
		t.Errorf("duplicate problem line appears %d times, want 1\n%s", got, merged.FreeFormAnalysis)
	}
	if !strings.Contains(merged.FreeFormAnalysis, "Social icons missing alt text") {
		t.Errorf("distinct problem lost:\n%s", merged.FreeFormAnalysis)
	}
}

func TestMergeFreeFormGroupsStrengthsByLabel(t *testing.T) {
	header := SectionResult{
		Section: domain.SectionHeader,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:     80,
			FreeFormAnalysis: "## Strengths\n- Typography: consistent scale",
		},
	}
	main := SectionResult{
		Section: domain.SectionMain,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:     75,
			FreeFormAnalysis: "## Strengths\n- Typography: consistent scale with generous line height throughout",
		},
	}

	merged := MergeSections([]SectionResult{header, main})

	if got := strings.Count(merged.FreeFormAnalysis, "Typography:"); got != 1 {
		t.Errorf("label appears %d times, want the variants collapsed to 1\n%s", got, merged.FreeFormAnalysis)
	}
	if !strings.Contains(merged.FreeFormAnalysis, "generous line height") {
		t.Errorf("longest variant not kept:\n%s", merged.FreeFormAnalysis)
	}
}

func TestMergeFreeFormSubsectionOrder(t *testing.T) {
	main := SectionResult{
		Section: domain.SectionMain,
		Analysis: domain.NormalizedAnalysis{
			OverallScore:     75,
			FreeFormAnalysis: "## Recommendations\n- Tighten spacing\n\n## Overview\nA broad content page.\n\n## Problems\n- Dense paragraphs",
		},
	}

	merged := MergeSections([]SectionResult{main, sectionResult(domain.SectionHeader, 80, "header issue")})

	overviewIdx := strings.Index(merged.FreeFormAnalysis, "## Overview")
	problemsIdx := strings.Index(merged.FreeFormAnalysis, "## Problems")
	recsIdx := strings.Index(merged.FreeFormAnalysis, "## Recommendations")
	if overviewIdx < 0 || problemsIdx < 0 || recsIdx < 0 {
		t.Fatalf("missing subsection headings:\n%s", merged.FreeFormAnalysis)
	}
	if !(overviewIdx < problemsIdx && problemsIdx < recsIdx) {
		t.Errorf("subsections out of canonical order:\n%s", merged.FreeFormAnalysis)
	}
}

func TestStripQuickWins(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Quick win: move the CTA above the fold", "move the CTA above the fold"},
		{"(Quick-win) add alt text to hero images", "add alt text to hero images"},
		{"Быстрая победа: увеличить контраст кнопок", "увеличить контраст кнопок"},
		{"No label here at all", "No label here at all"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := stripQuickWins(tt.in); got != tt.want {
			t.Errorf("stripQuickWins(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMergeSectionsStripsQuickWinsFromSuggestions(t *testing.T) {
	header := SectionResult{
		Section: domain.SectionHeader,
		Analysis: domain.NormalizedAnalysis{
			OverallScore: 80,
			Suggestions:  []domain.Suggestion{{Text: "Quick win: enlarge the tap targets"}},
		},
	}

	merged := MergeSections([]SectionResult{header, sectionResult(domain.SectionMain, 70, "main issue")})

	for _, sug := range merged.Suggestions {
		if strings.Contains(strings.ToLower(sug.Text), "quick win") {
			t.Errorf("quick-win label survived the merge: %q", sug.Text)
		}
	}
}

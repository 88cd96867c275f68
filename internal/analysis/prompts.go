package analysis

import (
	"fmt"

	"github.com/sitelens/sitelens/internal/domain"
)

// AuditPrompt returns the vision prompt for a full-page screenshot.
func AuditPrompt() string {
	return `You are a senior UX/UI auditor reviewing a screenshot of a web page.

Assess the page against established usability heuristics:
- Visual hierarchy and layout clarity
- Typography (readability, sizing, consistency)
- Color and contrast (WCAG AA)
- Calls to action (visibility, wording, placement)
- Trust signals and content density
- Mobile-friendliness cues visible in the layout

Respond with ONLY a JSON object in this exact shape:
{
  "visualDescription": "2-3 sentences describing what the page shows",
  "issues": [
    {"text": "...", "priority": "high|medium|low", "recommendation": "...", "impact": "..."}
  ],
  "suggestions": ["..."],
  "overallScore": 0-100,
  "freeFormAnalysis": "markdown with sections: Overview, Strengths, Problems, Recommendations, Final score"
}

Be specific: name the elements you mean. Do not include markdown fences.`
}

// SectionPrompt returns the vision prompt for a single page section.
func SectionPrompt(section domain.SectionName) string {
	focus := map[domain.SectionName]string{
		domain.SectionHeader: "the navigation, logo, primary call to action and anything above the fold",
		domain.SectionMain:   "the main content area: hierarchy, readability, imagery and conversion elements",
		domain.SectionFooter: "the footer: link organization, contact details, legal and trust elements",
	}[section]

	return fmt.Sprintf(`You are a senior UX/UI auditor. This screenshot shows only the %s section of a web page. Focus on %s.

Respond with ONLY a JSON object:
{
  "visualDescription": "what this section shows",
  "issues": [{"text": "...", "priority": "high|medium|low", "recommendation": "..."}],
  "suggestions": ["..."],
  "overallScore": 0-100,
  "freeFormAnalysis": "markdown with sections: Overview, Strengths, Problems, Recommendations, Final score"
}

Do not include markdown fences.`, section, focus)
}

package analysis

import (
	"strings"

	"github.com/sitelens/sitelens/internal/domain"
)

// captchaPhrases are matched as full phrases only. Single keywords like
// "robot" or "verify" show up in legitimate page copy and must not trip
// the detector.
var captchaPhrases = []string{
	"verify you are human",
	"verify that you are human",
	"confirm that you are not a robot",
	"i am not a robot",
	"i'm not a robot",
	"complete the captcha",
	"solve the captcha",
	"cloudflare ray id",
	"checking your browser before accessing",
	"attention required! | cloudflare",
	"ddos protection by",
	"подтвердите, что вы не робот",
	"проверка браузера",
}

// DetectCaptcha reports whether provider output describes a bot-challenge
// page instead of the actual site.
func DetectCaptcha(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range captchaPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// CaptchaResult is the fixed zero-score result returned when the screenshot
// shows a bot challenge rather than the page under audit. It bypasses
// normal normalization.
func CaptchaResult() domain.NormalizedAnalysis {
	return domain.NormalizedAnalysis{
		Issues: []domain.Issue{
			{Text: "The page presented a bot challenge (CAPTCHA) instead of its content, so the interface could not be analyzed."},
		},
		Suggestions: []domain.Suggestion{
			{Text: "Allowlist the auditor's egress IPs in your bot-protection settings."},
			{Text: "Temporarily lower the challenge sensitivity and re-run the audit."},
			{Text: "Alternatively, upload a screenshot of the page directly."},
		},
		OverallScore:      0,
		VisualDescription: "A CAPTCHA or browser-verification challenge was shown in place of the page.",
	}
}

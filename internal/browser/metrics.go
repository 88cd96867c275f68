package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/sitelens/sitelens/internal/domain"
)

// metricsScript measures the rendered page in one round trip. Contrast is
// approximated from the body foreground/background pair; per-element
// contrast auditing is the vision model's job, not ours.
const metricsScript = `
(() => {
	const style = getComputedStyle(document.body);

	const parseRGB = (s) => {
		const m = s.match(/rgba?\((\d+),\s*(\d+),\s*(\d+)/);
		return m ? [+m[1], +m[2], +m[3]] : null;
	};
	const luminance = (rgb) => {
		const [r, g, b] = rgb.map(v => {
			v /= 255;
			return v <= 0.03928 ? v / 12.92 : Math.pow((v + 0.055) / 1.055, 2.4);
		});
		return 0.2126 * r + 0.7152 * g + 0.0722 * b;
	};
	let contrast = 0;
	const fg = parseRGB(style.color);
	let bgEl = document.body;
	let bg = parseRGB(getComputedStyle(bgEl).backgroundColor);
	while (bgEl && (!bg || getComputedStyle(bgEl).backgroundColor === 'rgba(0, 0, 0, 0)')) {
		bgEl = bgEl.parentElement;
		if (bgEl) bg = parseRGB(getComputedStyle(bgEl).backgroundColor);
	}
	if (!bg) bg = [255, 255, 255];
	if (fg && bg) {
		const l1 = luminance(fg), l2 = luminance(bg);
		contrast = (Math.max(l1, l2) + 0.05) / (Math.min(l1, l2) + 0.05);
	}

	const textEls = Array.from(document.querySelectorAll('p, span, li, td, a, div'))
		.filter(el => el.childElementCount === 0 && el.textContent.trim().length > 0)
		.slice(0, 500);
	let small = 0;
	for (const el of textEls) {
		if (parseFloat(getComputedStyle(el).fontSize) < 12) small++;
	}

	const ctaSelectors = 'button, input[type="submit"], a[class*="btn"], a[class*="button"], a[class*="cta"]';

	const footer = document.querySelector('footer');
	const footerRect = footer ? footer.getBoundingClientRect() : null;
	const scrollY = window.scrollY || 0;

	return {
		title: document.title || '',
		viewportMeta: !!document.querySelector('meta[name="viewport"]'),
		baseFontSizePx: parseFloat(style.fontSize) || 16,
		smallTextRatio: textEls.length ? small / textEls.length : 0,
		contrastRatio: contrast,
		ctaCount: document.querySelectorAll(ctaSelectors).length,
		linkCount: document.querySelectorAll('a[href]').length,
		imageCount: document.querySelectorAll('img').length,
		wordCount: (document.body.innerText || '').trim().split(/\s+/).filter(Boolean).length,
		documentHeight: document.documentElement.scrollHeight,
		hasFooterTag: !!footer,
		footerTop: footerRect ? footerRect.top + scrollY : 0,
		footerHeight: footerRect ? footerRect.height : 0
	};
})()
`

// ExtractMetrics measures the loaded page.
func ExtractMetrics(page playwright.Page) (domain.PageMetrics, error) {
	result, err := page.Evaluate(metricsScript)
	if err != nil {
		return domain.PageMetrics{}, fmt.Errorf("evaluating page metrics: %w", err)
	}

	raw, ok := result.(map[string]interface{})
	if !ok {
		return domain.PageMetrics{}, fmt.Errorf("unexpected metrics result type %T", result)
	}

	return domain.PageMetrics{
		Title:          getString(raw, "title"),
		ViewportMeta:   getBool(raw, "viewportMeta"),
		BaseFontSizePx: getFloat(raw, "baseFontSizePx"),
		SmallTextRatio: getFloat(raw, "smallTextRatio"),
		ContrastRatio:  getFloat(raw, "contrastRatio"),
		CTACount:       int(getFloat(raw, "ctaCount")),
		LinkCount:      int(getFloat(raw, "linkCount")),
		ImageCount:     int(getFloat(raw, "imageCount")),
		WordCount:      int(getFloat(raw, "wordCount")),
		DocumentHeight: getFloat(raw, "documentHeight"),
		HasFooterTag:   getBool(raw, "hasFooterTag"),
		FooterTop:      getFloat(raw, "footerTop"),
		FooterHeight:   getFloat(raw, "footerHeight"),
	}, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

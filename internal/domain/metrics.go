package domain

// PageMetrics is the deterministic measurement of a loaded page, produced
// by a metrics collaborator from the live DOM. The pipeline treats it as an
// opaque value; only category scoring reads individual fields.
type PageMetrics struct {
	Title          string  `json:"title"`
	ViewportMeta   bool    `json:"viewport_meta"`
	BaseFontSizePx float64 `json:"base_font_size_px"`
	SmallTextRatio float64 `json:"small_text_ratio"`
	ContrastRatio  float64 `json:"contrast_ratio"`
	CTACount       int     `json:"cta_count"`
	LinkCount      int     `json:"link_count"`
	ImageCount     int     `json:"image_count"`
	WordCount      int     `json:"word_count"`
	DocumentHeight float64 `json:"document_height"`
	HasFooterTag   bool    `json:"has_footer_tag"`
	FooterTop      float64 `json:"footer_top,omitempty"`
	FooterHeight   float64 `json:"footer_height,omitempty"`
}

// CategoryScores are the metric-derived per-category scores. They are
// computed once from PageMetrics and reported alongside the AI overall
// score; AI-reported issues never re-penalize a category.
type CategoryScores struct {
	Typography int `json:"typography"`
	Contrast   int `json:"contrast"`
	CTA        int `json:"cta"`
	Mobile     int `json:"mobile"`
}

// ScoreCategories derives category scores from raw metrics.
func ScoreCategories(m PageMetrics) CategoryScores {
	typography := 100
	if m.BaseFontSizePx > 0 && m.BaseFontSizePx < 14 {
		typography -= 30
	}
	typography -= int(m.SmallTextRatio * 50)

	contrast := 100
	switch {
	case m.ContrastRatio <= 0:
		contrast = 50 // unmeasurable, assume middling
	case m.ContrastRatio < 3:
		contrast = 30
	case m.ContrastRatio < 4.5:
		contrast = 60
	}

	cta := 100
	if m.CTACount == 0 {
		cta = 40
	} else if m.CTACount > 8 {
		cta = 70
	}

	mobile := 100
	if !m.ViewportMeta {
		mobile = 40
	}

	return CategoryScores{
		Typography: ClampScore(typography),
		Contrast:   ClampScore(contrast),
		CTA:        ClampScore(cta),
		Mobile:     ClampScore(mobile),
	}
}

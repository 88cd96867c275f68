package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
)

const (
	screenshotQuality = 80
	footerFallbackPx  = 600.0
)

// Capturer takes the screenshots of one audit run from an already loaded
// page. All captures are JPEG; PNG full-page shots of long pages routinely
// blow past provider payload limits.
type Capturer struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

func NewCapturer(cfg config.BrowserConfig, logger *zap.Logger) *Capturer {
	return &Capturer{cfg: cfg, logger: logger}
}

// CaptureFull takes a full-page screenshot at the desktop viewport.
func (c *Capturer) CaptureFull(page playwright.Page) ([]byte, error) {
	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(screenshotQuality),
	})
	if err != nil {
		return nil, domain.CaptureFailureError(err)
	}
	return data, nil
}

// CaptureMobile switches to the mobile viewport, takes a full-page shot and
// restores the desktop viewport. The restore runs on error paths too so a
// failed mobile capture never poisons later desktop captures on this page.
func (c *Capturer) CaptureMobile(page playwright.Page) ([]byte, error) {
	if err := page.SetViewportSize(c.cfg.MobileWidth, c.cfg.MobileHeight); err != nil {
		return nil, domain.CaptureFailureError(fmt.Errorf("switching to mobile viewport: %w", err))
	}
	defer func() {
		if err := page.SetViewportSize(c.cfg.DesktopWidth, c.cfg.DesktopHeight); err != nil {
			c.logger.Warn("restoring desktop viewport failed", zap.Error(err))
		}
	}()

	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(screenshotQuality),
	})
	if err != nil {
		return nil, domain.CaptureFailureError(err)
	}
	return data, nil
}

// CaptureSections clips header, main and footer regions from the full-page
// render. Region boundaries come from the semantic tags when present; the
// footer falls back to the last 600 document pixels, the header to the first
// viewport height, main to whatever lies between. A page too short to split
// yields a single "main" capture of the whole document.
func (c *Capturer) CaptureSections(page playwright.Page, metrics domain.PageMetrics) (map[domain.SectionName][]byte, error) {
	docHeight := metrics.DocumentHeight
	if docHeight <= 0 {
		docHeight = float64(c.cfg.DesktopHeight)
	}
	width := float64(c.cfg.DesktopWidth)

	headerHeight := float64(c.cfg.DesktopHeight)
	if headerHeight > docHeight {
		headerHeight = docHeight
	}

	footerTop := docHeight - footerFallbackPx
	if metrics.HasFooterTag && metrics.FooterHeight > 0 {
		footerTop = metrics.FooterTop
	}
	if footerTop < 0 {
		footerTop = 0
	}

	// Short page: not enough room for three distinct bands.
	if docHeight <= headerHeight+footerFallbackPx {
		data, err := c.clip(page, 0, 0, width, docHeight)
		if err != nil {
			return nil, err
		}
		return map[domain.SectionName][]byte{domain.SectionMain: data}, nil
	}

	out := make(map[domain.SectionName][]byte, 3)
	regions := []struct {
		name   domain.SectionName
		top    float64
		height float64
	}{
		{domain.SectionHeader, 0, headerHeight},
		{domain.SectionMain, headerHeight, footerTop - headerHeight},
		{domain.SectionFooter, footerTop, docHeight - footerTop},
	}
	for _, r := range regions {
		if r.height <= 0 {
			continue
		}
		data, err := c.clip(page, 0, r.top, width, r.height)
		if err != nil {
			return nil, err
		}
		out[r.name] = data
	}
	return out, nil
}

func (c *Capturer) clip(page playwright.Page, x, y, width, height float64) ([]byte, error) {
	// Clip coordinates are in page space, so this reaches below the fold
	// without the full-page flag.
	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(screenshotQuality),
		Clip: &playwright.Rect{
			X:      x,
			Y:      y,
			Width:  width,
			Height: height,
		},
	})
	if err != nil {
		return nil, domain.CaptureFailureError(err)
	}
	return data, nil
}

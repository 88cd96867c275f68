package browser

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
)

// Acquisition is everything one page visit produces: measurements plus the
// raw (uncompressed) captures.
type Acquisition struct {
	Metrics  domain.PageMetrics
	Full     []byte
	Mobile   []byte
	Sections map[domain.SectionName][]byte
}

// PageAcquirer composes the loader, metrics extractor and capturer into a
// single page visit. One browser context serves the whole acquisition.
type PageAcquirer struct {
	loader   *Loader
	capturer *Capturer
	logger   *zap.Logger
}

func NewPageAcquirer(session *Session, cfg config.BrowserConfig, logger *zap.Logger) *PageAcquirer {
	return &PageAcquirer{
		loader:   NewLoader(session, cfg, logger),
		capturer: NewCapturer(cfg, logger),
		logger:   logger,
	}
}

// Acquire loads the URL, measures it and captures screenshots. Section
// captures are best-effort: a page that renders but refuses a clipped
// screenshot still yields a usable full capture. Mobile capture is likewise
// best-effort. Only the full capture is mandatory.
func (a *PageAcquirer) Acquire(ctx context.Context, url string, withSections bool) (*Acquisition, error) {
	metrics := observability.GetMetrics()

	page, cleanup, err := a.loader.Load(ctx, url, false)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pageMetrics, err := ExtractMetrics(page)
	if err != nil {
		// A loaded page we cannot measure still gets audited visually.
		a.logger.Warn("metrics extraction failed", zap.String("url", url), zap.Error(err))
		pageMetrics = domain.PageMetrics{}
	}

	full, err := a.capturer.CaptureFull(page)
	if err != nil {
		metrics.RecordCapture("full", "error", 0)
		return nil, err
	}
	metrics.RecordCapture("full", "success", len(full))

	acq := &Acquisition{Metrics: pageMetrics, Full: full}

	if mobile, err := a.capturer.CaptureMobile(page); err != nil {
		metrics.RecordCapture("mobile", "error", 0)
		a.logger.Warn("mobile capture failed", zap.String("url", url), zap.Error(err))
	} else {
		metrics.RecordCapture("mobile", "success", len(mobile))
		acq.Mobile = mobile
	}

	if withSections {
		sections, err := a.capturer.CaptureSections(page, pageMetrics)
		if err != nil {
			metrics.RecordCapture("sections", "error", 0)
			a.logger.Warn("section capture failed", zap.String("url", url), zap.Error(err))
		} else {
			metrics.RecordCapture("sections", "success", 0)
			acq.Sections = sections
		}
	}

	return acq, nil
}

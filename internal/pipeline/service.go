package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/analysis"
	"github.com/sitelens/sitelens/internal/browser"
	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/imaging"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/provider"
)

// Acquirer produces the page artifacts of a URL audit.
type Acquirer interface {
	Acquire(ctx context.Context, url string, withSections bool) (*browser.Acquisition, error)
}

// Analyzer runs the vision provider chain over one image.
type Analyzer interface {
	Analyze(ctx context.Context, img provider.Image, prompt string) (domain.NormalizedAnalysis, error)
}

// Archiver is the durable screenshot store. Optional; when absent the
// inline base64 copies in the report are all there is.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// ScreenshotKey is the archive object key for one capture of one audit.
func ScreenshotKey(id uuid.UUID, kind string) string {
	return fmt.Sprintf("audits/%s/%s.jpg", id, kind)
}

// Service runs the audit pipeline. The synchronous phase produces a stored
// report with metrics and screenshots; the analysis phase runs detached and
// mutates the same report until its status is terminal.
type Service struct {
	cfg        config.PipelineConfig
	store      domain.ReportStore
	acquirer   Acquirer
	analyzer   Analyzer
	archiver   Archiver
	compressor *imaging.Compressor
	tracker    *Tracker
	logger     *zap.Logger
}

func NewService(
	cfg config.PipelineConfig,
	store domain.ReportStore,
	acquirer Acquirer,
	analyzer Analyzer,
	archiver Archiver,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		acquirer:   acquirer,
		analyzer:   analyzer,
		archiver:   archiver,
		compressor: imaging.NewCompressor(logger),
		tracker:    NewTracker(store, logger),
		logger:     logger,
	}
}

// StartURLAudit runs the synchronous acquisition phase for a URL target and
// detaches the analysis phase. On success the returned report already holds
// metrics and screenshots and is polled by id until completed. A failure
// before any screenshot exists is returned to the caller directly.
func (s *Service) StartURLAudit(ctx context.Context, rawURL string) (*domain.AuditReport, error) {
	target, err := domain.NewURLTarget(rawURL)
	if err != nil {
		return nil, err
	}

	report := domain.NewAuditReport(target)
	if err := s.store.Put(ctx, report); err != nil {
		return nil, &domain.DomainError{Code: domain.ErrCodeStorage, Message: "storing initial report", Err: err}
	}

	logger := s.logger.With(zap.String("report_id", report.ID.String()), zap.String("url", target.URL))
	logger.Info("audit accepted")

	acq, err := s.acquirer.Acquire(ctx, target.URL, s.cfg.SectionAnalysis)
	if err != nil {
		observability.GetMetrics().RecordAudit("url", "acquisition_failed")
		logger.Warn("acquisition failed", zap.Error(err))
		return nil, err
	}

	budget := s.cfg.ScreenshotBudget * 1024 * 1024
	report.Metrics = &acq.Metrics
	report.Screenshots.Full = s.encode(acq.Full, budget, imaging.GentleLadder)
	if len(acq.Mobile) > 0 {
		report.Screenshots.Mobile = s.encode(acq.Mobile, budget, imaging.GentleLadder)
	}
	if len(acq.Sections) > 0 {
		report.Screenshots.Sections = make(map[domain.SectionName]string, len(acq.Sections))
		for name, data := range acq.Sections {
			report.Screenshots.Sections[name] = s.encode(data, budget, imaging.GentleLadder)
		}
	}
	report.Status = domain.Status{Stage: domain.StageMetrics, Message: "Page metrics collected", Progress: progressMetrics}
	report.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, report); err != nil {
		return nil, &domain.DomainError{Code: domain.ErrCodeStorage, Message: "storing acquired report", Err: err}
	}

	go s.runAnalysis(report.ID, "url")

	return report, nil
}

// StartImageAudit audits an uploaded image. There is no page to load, so
// the pipeline starts at the compression step: the upload must fit the
// provider budget or the audit is rejected outright.
func (s *Service) StartImageAudit(ctx context.Context, data []byte) (*domain.AuditReport, error) {
	mime := domain.DetectImageMIME(data)
	if !domain.IsSupportedImageMIME(mime) {
		return nil, domain.ValidationError("image", fmt.Sprintf("unsupported image type %q", mime))
	}

	budget := s.cfg.UploadBudget * 1024 * 1024
	compressed := s.compressor.Fit(data, budget, imaging.SteepLadder)
	if len(compressed) > budget {
		observability.GetMetrics().RecordAudit("image", "oversized")
		return nil, domain.OversizedImageError(len(compressed), budget)
	}
	if len(compressed) != len(data) {
		// Re-encoding always yields JPEG.
		mime = "image/jpeg"
	}

	target, err := domain.NewImageTarget(compressed, mime)
	if err != nil {
		return nil, err
	}

	report := domain.NewAuditReport(target)
	report.Screenshots.Full = base64.StdEncoding.EncodeToString(compressed)
	report.Status = domain.Status{Stage: domain.StageMetrics, Message: "Image accepted", Progress: progressMetrics}
	report.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, report); err != nil {
		return nil, &domain.DomainError{Code: domain.ErrCodeStorage, Message: "storing initial report", Err: err}
	}

	s.logger.Info("image audit accepted",
		zap.String("report_id", report.ID.String()),
		zap.String("mime", mime),
		zap.Int("bytes", len(compressed)))

	go s.runAnalysis(report.ID, "image")

	return report, nil
}

// GetReport returns the stored report by id.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*domain.AuditReport, error) {
	return s.store.Get(ctx, id)
}

// Screenshot returns the raw bytes of one capture. The archive copy is
// preferred when the capture was uploaded there; an unreachable archive
// degrades to the inline base64 copy rather than failing the request.
func (s *Service) Screenshot(ctx context.Context, id uuid.UUID, kind string) ([]byte, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	encoded, uri, err := pickScreenshot(report, kind)
	if err != nil {
		return nil, err
	}

	if uri != "" && s.archiver != nil {
		data, err := s.archiver.Fetch(ctx, ScreenshotKey(id, kind))
		if err == nil {
			return data, nil
		}
		s.logger.Warn("archive fetch failed, serving inline copy",
			zap.String("report_id", id.String()),
			zap.String("kind", kind),
			zap.Error(err))
	}

	if encoded == "" {
		return nil, domain.NotFoundError("screenshot", id)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// ScreenshotURL returns a time-limited download URL for an archived capture.
// Captures that never reached the archive have no URL to give out.
func (s *Service) ScreenshotURL(ctx context.Context, id uuid.UUID, kind string) (string, error) {
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	_, uri, err := pickScreenshot(report, kind)
	if err != nil {
		return "", err
	}
	if uri == "" || s.archiver == nil {
		return "", domain.NotFoundError("archived screenshot", id)
	}
	return s.archiver.PresignedURL(ctx, ScreenshotKey(id, kind))
}

func pickScreenshot(report *domain.AuditReport, kind string) (encoded, uri string, err error) {
	switch kind {
	case "full":
		return report.Screenshots.Full, report.Screenshots.FullURI, nil
	case "mobile":
		return report.Screenshots.Mobile, report.Screenshots.MobileURI, nil
	default:
		return "", "", domain.ValidationError("kind", "screenshot kind must be full or mobile")
	}
}

func (s *Service) encode(data []byte, budget int, ladder []imaging.Rung) string {
	return base64.StdEncoding.EncodeToString(s.compressor.Fit(data, budget, ladder))
}

// runAnalysis is the detached phase. It owns its own context: the HTTP
// request that started the audit has long since returned. Whatever happens
// here, including a panic, the report is driven to completed at 100 because
// a screenshot already exists and a partial report beats a hung poller.
func (s *Service) runAnalysis(id uuid.UUID, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AnalysisTimeout)
	defer cancel()

	observability.GetMetrics().AuditsActive.Inc()
	defer observability.GetMetrics().AuditsActive.Dec()

	logger := s.logger.With(zap.String("report_id", id.String()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis phase panicked", zap.Any("panic", r))
		}
		s.finalize(ctx, id, kind, logger)
	}()

	report, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Error("analysis phase: report read failed", zap.Error(err))
		return
	}

	if report.Metrics != nil {
		s.tracker.Advance(ctx, id, domain.StageTypography, "Scoring typography", progressTypography)
		s.tracker.Advance(ctx, id, domain.StageContrast, "Scoring contrast", progressContrast)
		s.tracker.Advance(ctx, id, domain.StageCTA, "Scoring calls to action", progressCTA)

		cats := domain.ScoreCategories(*report.Metrics)
		report, err = s.store.Get(ctx, id)
		if err != nil {
			logger.Error("analysis phase: report re-read failed", zap.Error(err))
			return
		}
		report.Categories = &cats
		report.UpdatedAt = time.Now().UTC()
		if err := s.store.Put(ctx, report); err != nil {
			logger.Warn("storing category scores failed", zap.Error(err))
		}
	}

	s.archiveScreenshots(ctx, report, logger)

	s.tracker.Advance(ctx, id, domain.StageAIAnalysis, "Running AI visual analysis", progressAIAnalysis)

	start := time.Now()
	result, err := s.analyze(ctx, report, logger)
	observability.GetMetrics().RecordStage(string(domain.StageAIAnalysis), time.Since(start))
	if err != nil {
		// ANALYSIS_UNAVAILABLE or context expiry. The report stays partial;
		// finalize still completes it.
		logger.Warn("AI analysis unavailable", zap.Error(err))
		return
	}

	s.tracker.Advance(ctx, id, domain.StageFinalizing, "Finalizing report", progressFinalizing)

	report, err = s.store.Get(ctx, id)
	if err != nil {
		logger.Error("analysis phase: report re-read failed", zap.Error(err))
		return
	}
	report.Analysis = &result
	report.UpdatedAt = time.Now().UTC()
	if err := s.store.Put(ctx, report); err != nil {
		logger.Error("storing analysis failed", zap.Error(err))
	}
}

// analyze runs either per-section analysis with a merge, or a single
// full-screenshot analysis. Section analysis degrades to the full capture
// when every section fails; only total exhaustion is an error.
func (s *Service) analyze(ctx context.Context, report *domain.AuditReport, logger *zap.Logger) (domain.NormalizedAnalysis, error) {
	if s.cfg.SectionAnalysis && len(report.Screenshots.Sections) > 0 {
		var results []analysis.SectionResult
		var lastErr error
		for _, name := range domain.SectionOrder {
			encoded, ok := report.Screenshots.Sections[name]
			if !ok {
				continue
			}
			img, err := decodeImage(encoded)
			if err != nil {
				logger.Warn("section screenshot undecodable", zap.String("section", string(name)), zap.Error(err))
				continue
			}
			sectionResult, err := s.analyzer.Analyze(ctx, img, analysis.SectionPrompt(name))
			if err != nil {
				logger.Warn("section analysis failed", zap.String("section", string(name)), zap.Error(err))
				lastErr = err
				continue
			}
			results = append(results, analysis.SectionResult{Section: name, Analysis: sectionResult})
		}
		if len(results) > 0 {
			return analysis.MergeSections(results), nil
		}
		if lastErr != nil {
			logger.Warn("all sections failed, falling back to full capture")
		}
	}

	img, err := decodeImage(report.Screenshots.Full)
	if err != nil {
		return domain.NormalizedAnalysis{}, fmt.Errorf("decoding full screenshot: %w", err)
	}
	return s.analyzer.Analyze(ctx, img, analysis.AuditPrompt())
}

// finalize is the terminal catch-all. By the time it runs a screenshot
// exists, so the report is always driven to completed at 100; the message
// says whether the AI analysis made it in.
func (s *Service) finalize(ctx context.Context, id uuid.UUID, kind string, logger *zap.Logger) {
	// The analysis context may already be dead; finalization gets its own.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	report, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Error("finalize: report read failed", zap.Error(err))
		return
	}

	message := "Audit complete"
	outcome := "completed"
	if report.Analysis == nil {
		message = "Audit complete (partial result: AI analysis unavailable)"
		outcome = "partial"
	}

	report.Status = domain.Status{Stage: domain.StageCompleted, Message: message, Progress: progressCompleted}
	report.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, report); err != nil {
		logger.Error("finalize: report write failed", zap.Error(err))
		return
	}

	observability.GetMetrics().RecordAudit(kind, outcome)
	logger.Info("audit finished", zap.String("outcome", outcome))
}

func (s *Service) archiveScreenshots(ctx context.Context, report *domain.AuditReport, logger *zap.Logger) {
	if s.archiver == nil {
		return
	}

	upload := func(suffix, encoded string) string {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return ""
		}
		key := ScreenshotKey(report.ID, suffix)
		uri, err := s.archiver.Archive(ctx, key, data)
		if err != nil {
			logger.Warn("screenshot archive failed", zap.String("key", key), zap.Error(err))
			return ""
		}
		return uri
	}

	changed := false
	if report.Screenshots.Full != "" {
		if uri := upload("full", report.Screenshots.Full); uri != "" {
			report.Screenshots.FullURI = uri
			changed = true
		}
	}
	if report.Screenshots.Mobile != "" {
		if uri := upload("mobile", report.Screenshots.Mobile); uri != "" {
			report.Screenshots.MobileURI = uri
			changed = true
		}
	}
	if changed {
		report.UpdatedAt = time.Now().UTC()
		if err := s.store.Put(ctx, report); err != nil {
			logger.Warn("storing archive URIs failed", zap.Error(err))
		}
	}
}

func decodeImage(encoded string) (provider.Image, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return provider.Image{}, err
	}
	mime := domain.DetectImageMIME(data)
	if !domain.IsSupportedImageMIME(mime) {
		mime = "image/jpeg"
	}
	return provider.Image{Data: data, MIMEType: mime}, nil
}

package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/domain"
)

// Fixed progress value of each checkpoint stage. Clients poll these; the
// values only ever move forward during a normal run and the terminal write
// is always completed at 100.
const (
	progressLoading    = 10
	progressMetrics    = 25
	progressTypography = 40
	progressContrast   = 55
	progressCTA        = 70
	progressAIAnalysis = 85
	progressFinalizing = 95
	progressCompleted  = 100
)

// Tracker advances the persisted audit status. Each advance is a
// read-modify-write of the stored report; concurrent writers are not
// coordinated, last writer wins. Failures are logged, never propagated: a
// missed checkpoint must not abort the pipeline that is making progress.
type Tracker struct {
	store  domain.ReportStore
	logger *zap.Logger
}

func NewTracker(store domain.ReportStore, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// Advance moves the report to a new stage checkpoint.
func (t *Tracker) Advance(ctx context.Context, id uuid.UUID, stage domain.Stage, message string, progress int) {
	report, err := t.store.Get(ctx, id)
	if err != nil {
		t.logger.Warn("status advance: report read failed",
			zap.String("report_id", id.String()),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return
	}

	report.Status = domain.Status{Stage: stage, Message: message, Progress: progress}
	report.UpdatedAt = time.Now().UTC()

	if err := t.store.Put(ctx, report); err != nil {
		t.logger.Warn("status advance: report write failed",
			zap.String("report_id", id.String()),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}
}

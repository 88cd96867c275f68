package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/repository/memory"
)

func TestTrackerAdvance(t *testing.T) {
	store := memory.New()
	target, _ := domain.NewURLTarget("https://example.com")
	report := domain.NewAuditReport(target)
	if err := store.Put(context.Background(), report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	tracker := NewTracker(store, zap.NewNop())
	tracker.Advance(context.Background(), report.ID, domain.StageTypography, "Scoring typography", progressTypography)

	got, err := store.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status.Stage != domain.StageTypography {
		t.Errorf("stage = %q, want typography", got.Status.Stage)
	}
	if got.Status.Progress != progressTypography {
		t.Errorf("progress = %d, want %d", got.Status.Progress, progressTypography)
	}
	if got.Status.Message != "Scoring typography" {
		t.Errorf("message = %q", got.Status.Message)
	}
	if !got.UpdatedAt.After(report.UpdatedAt) {
		t.Error("UpdatedAt not advanced")
	}
}

func TestTrackerAdvancePreservesReportBody(t *testing.T) {
	store := memory.New()
	target, _ := domain.NewURLTarget("https://example.com")
	report := domain.NewAuditReport(target)
	report.Metrics = &domain.PageMetrics{Title: "Example", CTACount: 2}
	if err := store.Put(context.Background(), report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	tracker := NewTracker(store, zap.NewNop())
	tracker.Advance(context.Background(), report.ID, domain.StageContrast, "Scoring contrast", progressContrast)

	got, err := store.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Metrics == nil || got.Metrics.Title != "Example" {
		t.Errorf("Metrics = %+v, want preserved through the advance", got.Metrics)
	}
}

func TestTrackerAdvanceMissingReportIsNoop(t *testing.T) {
	tracker := NewTracker(memory.New(), zap.NewNop())
	// Must log and return, not panic or error.
	tracker.Advance(context.Background(), uuid.New(), domain.StageCTA, "x", progressCTA)
}

func TestProgressCheckpointsAreMonotonic(t *testing.T) {
	checkpoints := []int{
		progressLoading,
		progressMetrics,
		progressTypography,
		progressContrast,
		progressCTA,
		progressAIAnalysis,
		progressFinalizing,
		progressCompleted,
	}
	for i := 1; i < len(checkpoints); i++ {
		if checkpoints[i] <= checkpoints[i-1] {
			t.Errorf("checkpoint %d (%d) not past %d", i, checkpoints[i], checkpoints[i-1])
		}
	}
	if progressCompleted != 100 {
		t.Errorf("terminal progress = %d, want 100", progressCompleted)
	}
}

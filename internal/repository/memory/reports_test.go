package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sitelens/sitelens/internal/domain"
)

func TestPutGetRoundtrip(t *testing.T) {
	store := New()
	target, _ := domain.NewURLTarget("https://example.com")
	report := domain.NewAuditReport(target)
	report.Metrics = &domain.PageMetrics{Title: "Example", CTACount: 4}

	if err := store.Put(context.Background(), report); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != report.ID {
		t.Errorf("ID = %s, want %s", got.ID, report.ID)
	}
	if got.Metrics == nil || got.Metrics.Title != "Example" {
		t.Errorf("Metrics = %+v", got.Metrics)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), uuid.New())
	if !domain.IsCode(err, domain.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	store := New()
	target, _ := domain.NewURLTarget("https://example.com")
	report := domain.NewAuditReport(target)
	if err := store.Put(context.Background(), report); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, _ := store.Get(context.Background(), report.ID)
	first.Status.Stage = domain.StageCompleted

	second, _ := store.Get(context.Background(), report.ID)
	if second.Status.Stage == domain.StageCompleted {
		t.Error("mutating a returned report leaked into the store")
	}
}

func TestPutOverwrites(t *testing.T) {
	store := New()
	target, _ := domain.NewURLTarget("https://example.com")
	report := domain.NewAuditReport(target)
	store.Put(context.Background(), report)

	report.Status = domain.Status{Stage: domain.StageCompleted, Message: "done", Progress: 100}
	store.Put(context.Background(), report)

	got, err := store.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Status.IsTerminal() {
		t.Errorf("status = %+v, want the overwrite visible", got.Status)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 after overwrite", store.Len())
	}
}

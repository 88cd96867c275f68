package domain

import "testing"

func TestNewAuditReportInitialState(t *testing.T) {
	target, err := NewURLTarget("example.com")
	if err != nil {
		t.Fatalf("NewURLTarget error: %v", err)
	}

	report := NewAuditReport(target)

	if report.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("report has zero ID")
	}
	if report.Status.Stage != StageLoading {
		t.Errorf("initial stage = %q, want loading", report.Status.Stage)
	}
	if report.Status.Progress != 10 {
		t.Errorf("initial progress = %d, want 10", report.Status.Progress)
	}
	if report.Status.IsTerminal() {
		t.Error("initial status must not be terminal")
	}
	if report.CreatedAt.IsZero() || report.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, stage := range []Stage{StageLoading, StageMetrics, StageTypography, StageContrast, StageCTA, StageAIAnalysis, StageFinalizing} {
		if (Status{Stage: stage}).IsTerminal() {
			t.Errorf("stage %q reported terminal", stage)
		}
	}
	if !(Status{Stage: StageCompleted, Progress: 100}).IsTerminal() {
		t.Error("completed not reported terminal")
	}
}

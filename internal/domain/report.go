package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stage is a pipeline checkpoint a polling client can observe.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageMetrics    Stage = "metrics"
	StageTypography Stage = "typography"
	StageContrast   Stage = "contrast"
	StageCTA        Stage = "cta"
	StageAIAnalysis Stage = "ai_analysis"
	StageFinalizing Stage = "finalizing"
	StageCompleted  Stage = "completed"
)

// Status is the persisted progress state machine. Progress is monotonic in
// practice (checkpoints fire in order) but not structurally enforced; the
// terminal value is always completed at progress 100.
type Status struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// IsTerminal reports whether the pipeline has finished with this report.
func (s Status) IsTerminal() bool {
	return s.Stage == StageCompleted
}

// SectionName identifies a vertical slice of the page analyzed on its own.
type SectionName string

const (
	SectionHeader SectionName = "header"
	SectionMain   SectionName = "main"
	SectionFooter SectionName = "footer"
)

// SectionOrder is the fixed capture and analysis order.
var SectionOrder = []SectionName{SectionHeader, SectionMain, SectionFooter}

// ScreenshotSet holds the captures of one audit run. Full is always present
// for URL targets; section captures only when section analysis was requested.
// Bytes are kept base64-encoded so the set serializes into the report store
// without special handling.
type ScreenshotSet struct {
	Full     string                 `json:"full,omitempty"`
	Mobile   string                 `json:"mobile,omitempty"`
	Sections map[SectionName]string `json:"sections,omitempty"`

	// Archive URIs when object storage is configured (s3://bucket/key).
	FullURI   string `json:"full_uri,omitempty"`
	MobileURI string `json:"mobile_uri,omitempty"`
}

// AuditReport is the long-lived aggregate of one audit. Created synchronously
// when the target is accepted and mutated in place by background work until
// the status reaches its terminal stage. ID is the only external handle.
type AuditReport struct {
	ID          uuid.UUID           `json:"id"`
	Target      Target              `json:"target"`
	Metrics     *PageMetrics        `json:"metrics,omitempty"`
	Categories  *CategoryScores     `json:"categories,omitempty"`
	Screenshots ScreenshotSet       `json:"screenshots"`
	Analysis    *NormalizedAnalysis `json:"analysis,omitempty"`
	Status      Status              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewAuditReport creates a report in its initial state so a poller has
// something to read before any pipeline work has happened.
func NewAuditReport(target Target) *AuditReport {
	now := time.Now().UTC()
	return &AuditReport{
		ID:     uuid.New(),
		Target: target,
		Status: Status{
			Stage:    StageLoading,
			Message:  "Loading page",
			Progress: 10,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReportStore is the persistence surface the pipeline needs: a keyed
// get/put of the serialized report. Identity and storage format are opaque
// to the pipeline.
type ReportStore interface {
	Put(ctx context.Context, report *AuditReport) error
	Get(ctx context.Context, id uuid.UUID) (*AuditReport, error)
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
)

// Store implements domain.ReportStore on PostgreSQL. The report body lives
// in a JSONB column; stage and progress are lifted into their own columns
// so operators can query pipeline state with plain SQL.
type Store struct {
	db *DB
}

// NewStore creates a Postgres-backed report store and ensures its schema.
func NewStore(db *DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_reports (
			id         UUID PRIMARY KEY,
			stage      TEXT NOT NULL,
			progress   INT NOT NULL,
			body       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_reports_stage ON audit_reports (stage);
		CREATE INDEX IF NOT EXISTS idx_audit_reports_created_at ON audit_reports (created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type reportRow struct {
	ID        uuid.UUID `db:"id"`
	Stage     string    `db:"stage"`
	Progress  int       `db:"progress"`
	Body      []byte    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Put upserts the report; the pipeline rewrites the whole report on every
// checkpoint, so last-writer-wins on the full row is the intended behavior.
func (s *Store) Put(ctx context.Context, report *domain.AuditReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO audit_reports (id, stage, progress, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			progress = EXCLUDED.progress,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		report.ID,
		string(report.Status.Stage),
		report.Status.Progress,
		body,
		report.CreatedAt,
		report.UpdatedAt,
	)
	observability.GetMetrics().RecordStoreOp("postgres", "put", opStatus(err))
	return err
}

// Get retrieves a report by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.AuditReport, error) {
	var row reportRow
	err := s.db.GetContext(ctx, &row, `SELECT id, stage, progress, body, created_at, updated_at FROM audit_reports WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			observability.GetMetrics().RecordStoreOp("postgres", "get", "miss")
			return nil, domain.NotFoundError("report", id)
		}
		observability.GetMetrics().RecordStoreOp("postgres", "get", "error")
		return nil, err
	}
	observability.GetMetrics().RecordStoreOp("postgres", "get", "ok")

	var report domain.AuditReport
	if err := json.Unmarshal(row.Body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// DeleteExpired removes reports older than the retention window and returns
// their ids so the caller can drop the matching archive objects. Redis gets
// expiry for free from TTLs; Postgres needs a sweep.
func (s *Store) DeleteExpired(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids,
		`DELETE FROM audit_reports WHERE created_at < $1 RETURNING id`,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

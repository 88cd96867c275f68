// Package memory is the in-process report store used in tests and when no
// backing service is configured. Reports vanish on restart.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/sitelens/sitelens/internal/domain"
)

// Store implements domain.ReportStore with a mutex-guarded map. Reports are
// stored as serialized snapshots so concurrent readers never observe a
// report the pipeline is still mutating.
type Store struct {
	mu      sync.RWMutex
	reports map[uuid.UUID][]byte
}

func New() *Store {
	return &Store{reports: make(map[uuid.UUID][]byte)}
}

func (s *Store) Put(ctx context.Context, report *domain.AuditReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reports[report.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.AuditReport, error) {
	s.mu.RLock()
	data, ok := s.reports[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.NotFoundError("report", id)
	}

	var report domain.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Len reports how many reports are held. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Package redis is the default report store: reports are small JSON blobs
// polled frequently for a bounded lifetime, which is exactly the KV-with-TTL
// shape.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
)

const keyPrefix = "report:"

// Store implements domain.ReportStore on Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis-backed report store and verifies connectivity.
func New(cfg config.RedisConfig, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

// Put stores the report, refreshing its TTL on every write so an active
// audit cannot expire mid-run.
func (s *Store) Put(ctx context.Context, report *domain.AuditReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	err = s.client.Set(ctx, keyPrefix+report.ID.String(), data, s.ttl).Err()
	observability.GetMetrics().RecordStoreOp("redis", "put", opStatus(err))
	return err
}

// Get retrieves a report by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.AuditReport, error) {
	data, err := s.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			observability.GetMetrics().RecordStoreOp("redis", "get", "miss")
			return nil, domain.NotFoundError("report", id)
		}
		observability.GetMetrics().RecordStoreOp("redis", "get", "error")
		return nil, err
	}
	observability.GetMetrics().RecordStoreOp("redis", "get", "ok")

	var report domain.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Health checks Redis connectivity.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

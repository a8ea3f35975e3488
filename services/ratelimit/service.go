package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service enforces per-scope request rates with a sliding window backed by
// PostgreSQL. The limit and window come from the scope's governance config;
// this service only counts and compares.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService creates a new rate limit service
func NewService(db *sql.DB, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// Check reports whether another request fits in the scope's window.
// retryAt is when the oldest counted event leaves the window.
func (s *Service) Check(ctx context.Context, scopeKey string, limit int, window time.Duration) (bool, time.Time, error) {
	if limit <= 0 || window <= 0 {
		return true, time.Time{}, nil
	}

	now := time.Now()
	windowStart := now.Add(-window)

	query := `
		SELECT COUNT(*), COALESCE(MIN(timestamp), $2)
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND timestamp >= $2
	`

	var count int
	var oldest time.Time
	if err := s.db.QueryRowContext(ctx, query, scopeKey, windowStart).Scan(&count, &oldest); err != nil {
		return false, time.Time{}, fmt.Errorf("failed to query rate limit window: %w", err)
	}

	if count >= limit {
		return false, oldest.Add(window), nil
	}

	return true, time.Time{}, nil
}

// Record counts one request against the scope's window
func (s *Service) Record(ctx context.Context, scopeKey string, at time.Time) error {
	query := `
		INSERT INTO rate_limit_events (scope_key, timestamp)
		VALUES ($1, $2)
	`

	if _, err := s.db.ExecContext(ctx, query, scopeKey, at); err != nil {
		return fmt.Errorf("failed to insert rate limit event: %w", err)
	}

	return nil
}

// Usage returns the number of requests a scope has made in the window
func (s *Service) Usage(ctx context.Context, scopeKey string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND timestamp >= $2
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, scopeKey, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query rate limit usage: %w", err)
	}

	return count, nil
}

// Cleanup removes events past the retention horizon to keep the table small
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limit events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("rate limit events removed",
			zap.Int64("count", removed),
			zap.Time("cutoff", cutoff))
	}

	return removed, nil
}

// StartCleanupWorker removes stale events on a ticker until the context is
// cancelled
func (s *Service) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Cleanup(ctx, retention); err != nil {
				s.logger.Error("rate limit cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

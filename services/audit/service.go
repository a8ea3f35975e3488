package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
)

// Event wraps an audit entry queued for persistence
type Event struct {
	Entry    *models.AuditEntry
	Attempts int
}

// Config holds configuration for the audit pipeline
type Config struct {
	BufferSize  int           // Size of the event buffer channel
	WorkerCount int           // Number of concurrent workers
	MaxRetries  int           // Persistence attempts per event
	RetryDelay  time.Duration // Base delay between attempts, doubled each retry
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
	}
}

// Service persists audit entries asynchronously so the decision path never
// blocks on the audit store. Failed writes are retried with backoff and
// logged when retries run out; entries are never dropped silently.
type Service struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *Event
	workerCount int
	bufferSize  int
	maxRetries  int
	retryDelay  time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex

	dropped uint64
}

// NewService creates a new audit pipeline
func NewService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *Event, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		maxRetries:  config.MaxRetries,
		retryDelay:  config.RetryDelay,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit pipeline already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit pipeline",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the pipeline, waiting for queued entries to drain
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit pipeline not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit pipeline", zap.Int("pending_events", len(s.eventChan)))

	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit pipeline stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit pipeline stop timeout after %v", timeout)
	}
}

// Record queues an entry for persistence without blocking. A full buffer
// is reported loudly: the entry itself is logged so it survives in the
// application log even when the store is behind.
func (s *Service) Record(entry *models.AuditEntry) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("audit pipeline not started")
	}

	select {
	case s.eventChan <- &Event{Entry: entry}:
		return nil
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.logger.Error("audit buffer full, entry not queued",
			zap.String("entry_id", entry.ID.String()),
			zap.String("actor_id", entry.ActorID.String()),
			zap.String("action", entry.Action),
			zap.String("outcome", string(entry.Outcome)),
			zap.String("reason", entry.Reason))
		return fmt.Errorf("audit event buffer full")
	}
}

// RecordBlocking queues an entry, waiting until there is room or the
// context ends
func (s *Service) RecordBlocking(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("audit pipeline not started")
	}

	select {
	case s.eventChan <- &Event{Entry: entry}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit pipeline stopped")
	}
}

// worker drains events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		s.processEvent(id, event)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent persists one entry, retrying with doubling backoff
func (s *Service) processEvent(workerID int, event *Event) {
	delay := s.retryDelay

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.auditRepo.Create(ctx, event.Entry)
		cancel()

		if err == nil {
			return
		}

		event.Attempts = attempt
		if attempt == s.maxRetries {
			s.logger.Error("audit entry lost after retries",
				zap.Int("worker_id", workerID),
				zap.Int("attempts", attempt),
				zap.String("entry_id", event.Entry.ID.String()),
				zap.String("actor_id", event.Entry.ActorID.String()),
				zap.String("action", event.Entry.Action),
				zap.String("outcome", string(event.Entry.Outcome)),
				zap.Error(err))
			return
		}

		s.logger.Warn("audit persist failed, retrying",
			zap.Int("worker_id", workerID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
		delay *= 2
	}
}

// Stats represents audit pipeline statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Dropped       uint64
}

// GetStats returns statistics about the pipeline
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
		Dropped:       s.dropped,
	}
}

// StartRetentionWorker deletes entries past the retention horizon on a
// daily cadence until the context is cancelled
func (s *Service) StartRetentionWorker(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			removed, err := s.auditRepo.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				s.logger.Error("audit retention sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("audit retention sweep",
					zap.Int64("removed", removed),
					zap.Time("cutoff", cutoff))
			}
		case <-ctx.Done():
			return
		}
	}
}

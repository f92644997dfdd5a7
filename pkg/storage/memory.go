package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements an in-memory store for training reports.
// It is safe for concurrent use by multiple goroutines.
//
// MemoryStore keeps the latest report per dataset in a map. If TTL is
// configured, a background goroutine removes stale reports. Deployments
// that need persistence or multiple trainer instances should use
// RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	reports       map[string]Report
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates a new in-memory report store with no TTL.
// Reports are kept indefinitely until replaced or deleted.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]Report),
	}
}

// NewMemoryStoreWithTTL creates a new in-memory report store with automatic
// TTL-based cleanup. A background goroutine removes reports older than the
// given TTL.
//
// The cleanup goroutine must be stopped by calling Stop() when the store is
// no longer needed to prevent goroutine leaks.
//
// cleanupInterval determines how often the cleanup runs (typically 1 minute).
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		reports:       make(map[string]Report),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop gracefully shuts down the background cleanup goroutine. It blocks
// until cleanup is complete.
//
// Calling Stop multiple times or on a store without TTL is safe and does
// nothing.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return // No cleanup goroutine running
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return // Already stopped
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

// runCleanup is the background goroutine that periodically removes stale reports.
func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes reports older than the TTL.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return // No TTL configured
	}

	now := time.Now()
	for dataset, report := range s.reports {
		if now.Sub(report.GeneratedAt) > s.ttl {
			delete(s.reports, dataset)
		}
	}
}

// Put stores a report for a dataset, replacing any existing report.
//
// Returns an error if the report's Dataset field is empty or if the context
// is canceled. This operation is safe for concurrent use.
func (s *MemoryStore) Put(ctx context.Context, report Report) error {
	if report.Dataset == "" {
		return fmt.Errorf("report dataset cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports[report.Dataset] = report
	return nil
}

// GetLatest retrieves the most recent report for a dataset.
//
// Returns:
//   - report: The stored report (zero value if not found)
//   - found: true if a report exists for this dataset, false otherwise
//   - error: Context error if context is canceled, nil otherwise
//
// This operation is safe for concurrent use.
func (s *MemoryStore) GetLatest(ctx context.Context, dataset string) (Report, bool, error) {
	select {
	case <-ctx.Done():
		return Report{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	report, found := s.reports[dataset]
	return report, found, nil
}

// Len returns the number of reports currently stored.
// This method is primarily useful for testing and metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Delete removes the report for a dataset.
// Returns true if a report was deleted, false if none existed.
func (s *MemoryStore) Delete(dataset string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.reports[dataset]
	delete(s.reports, dataset)
	return existed
}

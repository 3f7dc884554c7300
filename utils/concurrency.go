package utils

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines and spaces job
// starts by at least rateLimit.
type WorkerPool struct {
	semaphore chan struct{}
	rateLimit time.Duration
	wg        sync.WaitGroup

	mu        sync.Mutex
	lastStart time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate
// limit in milliseconds.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		rateLimit: time.Duration(rateLimitMs) * time.Millisecond,
	}
}

// Submit schedules job. It blocks while all workers are busy and returns
// ctx.Err() without running the job if ctx ends first.
func (wp *WorkerPool) Submit(ctx context.Context, job func(ctx context.Context)) error {
	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if err := wp.waitTurn(ctx); err != nil {
			return
		}
		job(ctx)
	}()
	return nil
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) waitTurn(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wait := wp.rateLimit - time.Since(wp.lastStart); wait > 0 && !wp.lastStart.IsZero() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	wp.lastStart = time.Now()
	return nil
}

// KeySet is a thread-safe set of strings, used to skip listing pages and
// rows already seen.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key has been added.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lychee-technology/norma"
)

// CircuitBreaker is a lightweight in-memory circuit breaker. After the
// failure threshold is reached within the rolling window the breaker opens
// for a cooldown period and calls fail fast instead of hitting the backend.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  []time.Time
	threshold int
	window    time.Duration
	openUntil time.Time
	cooldown  time.Duration
	nowFunc   func() time.Time
}

// NewCircuitBreaker creates a configured circuit breaker.
func NewCircuitBreaker(threshold int, window, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		failures:  make([]time.Time, 0, threshold),
		nowFunc:   time.Now,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.nowFunc().After(cb.openUntil)
}

// RecordFailure records a failure occurrence and opens the breaker if the
// threshold is exceeded within the window.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.nowFunc()
	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = append(kept, now)
	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.cooldown)
		cb.failures = cb.failures[:0]
	}
}

// RecordSuccess clears the failure history and closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// BreakerStorage wraps a storage adapter with a circuit breaker so a backend
// that keeps failing stops being hammered by every settings operation. While
// the breaker is open, Load and Save fail fast with a storage error.
type BreakerStorage struct {
	inner   norma.StorageAdapter
	breaker *CircuitBreaker
	name    string
}

// NewBreakerStorage wraps the given adapter. The name only labels errors and
// telemetry.
func NewBreakerStorage(name string, inner norma.StorageAdapter, breaker *CircuitBreaker) *BreakerStorage {
	return &BreakerStorage{inner: inner, breaker: breaker, name: name}
}

func (s *BreakerStorage) Load(ctx context.Context, key string) (norma.NormalizedRepresentation, error) {
	if !s.breaker.Allow() {
		EmitBreakerOpen(ctx, s.name)
		return nil, norma.NewStorageError(
			fmt.Sprintf("storage adapter '%s' is temporarily unavailable", s.name), nil)
	}
	data, err := s.inner.Load(ctx, key)
	if err != nil {
		s.breaker.RecordFailure()
		EmitStorageFailure(ctx, s.name, "load")
		return nil, err
	}
	s.breaker.RecordSuccess()
	return data, nil
}

func (s *BreakerStorage) Save(ctx context.Context, key string, data norma.NormalizedRepresentation) error {
	if !s.breaker.Allow() {
		EmitBreakerOpen(ctx, s.name)
		return norma.NewStorageError(
			fmt.Sprintf("storage adapter '%s' is temporarily unavailable", s.name), nil)
	}
	if err := s.inner.Save(ctx, key, data); err != nil {
		s.breaker.RecordFailure()
		EmitStorageFailure(ctx, s.name, "save")
		return err
	}
	s.breaker.RecordSuccess()
	return nil
}

// Keys passes through when the wrapped adapter can enumerate keys.
func (s *BreakerStorage) Keys(ctx context.Context) ([]string, error) {
	lister, ok := s.inner.(norma.KeyLister)
	if !ok {
		return nil, norma.NewStorageError(
			fmt.Sprintf("storage adapter '%s' cannot list keys", s.name), nil)
	}
	return lister.Keys(ctx)
}

// Delete passes through when the wrapped adapter can delete keys.
func (s *BreakerStorage) Delete(ctx context.Context, key string) error {
	deleter, ok := s.inner.(norma.KeyDeleter)
	if !ok {
		return norma.NewStorageError(
			fmt.Sprintf("storage adapter '%s' cannot delete keys", s.name), nil)
	}
	return deleter.Delete(ctx, key)
}

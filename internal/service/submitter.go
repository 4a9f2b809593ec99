package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/pkg/logger"

	"go.uber.org/zap"
)

const DefaultCooldown = 5 * time.Second

type VentureSubmitter interface {
	Submit(ctx context.Context, sc *SyncContext) (*domain.Result, error)
}

// CooldownStore keeps the last completion time across processes, so a
// fresh CLI invocation still honours the cooldown.
type CooldownStore interface {
	LastSubmission() (time.Time, error)
	SetLastSubmission(t time.Time) error
}

type SubmitterOption func(*Submitter)

func WithCooldownStore(store CooldownStore) SubmitterOption {
	return func(s *Submitter) { s.store = store }
}

// Submitter is the single entry point for persisting the active venture.
// It owns the SyncContext. A call made while another is in flight, or
// within the cooldown after the last completed submission, is rejected
// without touching the network.
type Submitter struct {
	client   VentureSubmitter
	tracker  *ChangeTracker
	sc       *SyncContext
	inFlight atomic.Bool
	cooldown time.Duration
	store    CooldownStore
	now      func() time.Time
	logger   *zap.Logger

	mu            sync.Mutex
	lastCompleted time.Time
}

func NewSubmitter(client VentureSubmitter, tracker *ChangeTracker, sc *SyncContext, cooldown time.Duration, log *zap.Logger, now func() time.Time, opts ...SubmitterOption) *Submitter {
	if sc == nil {
		sc = NewSyncContext()
	}
	if now == nil {
		now = time.Now
	}
	s := &Submitter{
		client:   client,
		tracker:  tracker,
		sc:       sc,
		cooldown: cooldown,
		now:      now,
		logger:   logger.OrNop(log).Named("submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store != nil {
		last, err := s.store.LastSubmission()
		if err != nil {
			s.logger.Warn("failed to load last submission time", zap.Error(err))
		}
		s.lastCompleted = last
	}
	return s
}

func (s *Submitter) Context() *SyncContext {
	return s.sc
}

func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Submitter) Status() domain.Status {
	return s.tracker.Status(s.sc.Venture)
}

func (s *Submitter) Submit(ctx context.Context) (result *domain.Result, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, &RateLimitedError{Reason: reasonInFlight}
	}
	defer s.inFlight.Store(false)

	if wait := s.cooldownRemaining(); wait > 0 {
		return nil, &RateLimitedError{Reason: reasonCooldown, RetryAfter: wait}
	}

	if err := ValidateVenture(s.sc); err != nil {
		return nil, err
	}

	// Only a delivered submission (or a crashed one) starts the cooldown.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("submission panicked", zap.Any("panic", r))
			result, err = nil, fmt.Errorf("submission aborted: %v", r)
			s.markCompleted()
			return
		}
		if result != nil {
			s.markCompleted()
		}
	}()

	return s.client.Submit(ctx, s.sc)
}

func (s *Submitter) cooldownRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCompleted.IsZero() {
		return 0
	}
	return s.cooldown - s.now().Sub(s.lastCompleted)
}

func (s *Submitter) markCompleted() {
	now := s.now()
	s.mu.Lock()
	s.lastCompleted = now
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.SetLastSubmission(now); err != nil {
		s.logger.Warn("failed to persist last submission time", zap.Error(err))
	}
}

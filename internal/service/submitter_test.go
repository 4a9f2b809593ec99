package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"readiness-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitter_RejectsWhileInFlight(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.primary.respond = func(int, *domain.Request) (*domain.Response, error) {
		close(entered)
		<-release
		return &domain.Response{Success: true, RowID: "42"}, nil
	}
	h.acme(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = h.submitter.Submit(context.Background())
	}()

	<-entered
	assert.True(t, h.submitter.InFlight())

	_, err := h.submitter.Submit(context.Background())
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, reasonInFlight, rl.Reason)
	assert.Equal(t, 1, h.primary.calls())

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, h.submitter.InFlight())
	assert.Equal(t, 1, h.primary.calls())
}

func TestSubmitter_Cooldown(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.respond = ackRow("42")
	h.acme(t)

	_, err := h.submitter.Submit(context.Background())
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	_, err = h.submitter.Submit(context.Background())
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, reasonCooldown, rl.Reason)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
	assert.Equal(t, 1, h.primary.calls())

	h.clock.Advance(3 * time.Second)
	result, err := h.submitter.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUpdate, result.Action)
	assert.Equal(t, 2, h.primary.calls())
}

func TestSubmitter_ValidationFailureDoesNotStartCooldown(t *testing.T) {
	h := newHarness(t, nil)
	v := h.acme(t)
	v.Advisor = ""

	_, err := h.submitter.Submit(context.Background())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	h.store.SetAdvisor(h.sc, "Jane")
	_, err = h.submitter.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.primary.calls())
}

type panickingClient struct{}

func (panickingClient) Submit(context.Context, *SyncContext) (*domain.Result, error) {
	panic("boom")
}

func TestSubmitter_ReleasesAfterPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.acme(t)
	s := NewSubmitter(panickingClient{}, h.tracker, h.sc, time.Second, nil, h.clock.Now)

	result, err := s.Submit(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, s.InFlight())

	h.clock.Advance(time.Second)
	_, err = s.Submit(context.Background())
	var rl *RateLimitedError
	assert.False(t, errors.As(err, &rl), "slot should have been released, got %v", err)
}

func TestSubmitter_StatusTransitions(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.respond = ackRow("42")
	h.acme(t)

	assert.Equal(t, domain.Status{}, h.submitter.Status())
	assert.Equal(t, "unsubmitted", h.submitter.Status().Label())

	_, err := h.submitter.Submit(context.Background())
	require.NoError(t, err)
	status := h.submitter.Status()
	assert.True(t, status.Submitted)
	assert.False(t, status.HasChanges)
	require.NotNil(t, status.LastSubmittedAt)
	assert.True(t, status.LastSubmittedAt.Equal(h.clock.Now()))

	require.NoError(t, h.store.SetScore(h.sc, domain.CategoryTeam, 6))
	status = h.submitter.Status()
	assert.True(t, status.Submitted)
	assert.True(t, status.HasChanges)
	assert.Equal(t, "modified", status.Label())

	h.clock.Advance(DefaultCooldown)
	_, err = h.submitter.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, h.submitter.Status().HasChanges)
	assert.Equal(t, "submitted", h.submitter.Status().Label())
}

func TestSubmitter_CooldownSurvivesRestart(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.respond = ackRow("42")
	h.acme(t)

	first := NewSubmitter(h.client, h.tracker, h.sc, DefaultCooldown, nil, h.clock.Now, WithCooldownStore(h.prefs))
	_, err := first.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, h.prefs.lastSub.Equal(h.clock.Now()))

	h.clock.Advance(time.Second)
	second := NewSubmitter(h.client, h.tracker, h.sc, DefaultCooldown, nil, h.clock.Now, WithCooldownStore(h.prefs))
	_, err = second.Submit(context.Background())
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, reasonCooldown, rl.Reason)
	assert.Equal(t, 4*time.Second, rl.RetryAfter)
	assert.Equal(t, 1, h.primary.calls())
}

type cancelledClient struct{}

func (cancelledClient) Submit(ctx context.Context, _ *SyncContext) (*domain.Result, error) {
	return nil, context.Canceled
}

func TestSubmitter_CancelledSubmissionDoesNotStartCooldown(t *testing.T) {
	h := newHarness(t, nil)
	h.acme(t)
	s := NewSubmitter(cancelledClient{}, h.tracker, h.sc, time.Minute, nil, h.clock.Now, WithCooldownStore(h.prefs))

	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, h.prefs.lastSub.IsZero())

	_, err = s.Submit(context.Background())
	var rl *RateLimitedError
	assert.False(t, errors.As(err, &rl), "cooldown should not have started, got %v", err)
}

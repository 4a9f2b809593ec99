package service

import (
	"testing"
	"time"

	"readiness-sync/internal/domain"

	"go.uber.org/zap"
)

type harness struct {
	ventures  *mockVentureRepo
	prefs     *mockPreferenceRepo
	history   *mockHistoryRepo
	store     *VentureStore
	tracker   *ChangeTracker
	primary   *fakeTransport
	fallback  *fakeTransport
	cache     *countingInvalidator
	clock     *fakeClock
	sleeper   *recordingSleeper
	client    *SyncClient
	submitter *Submitter
	sc        *SyncContext
}

func newHarness(t *testing.T, log *zap.Logger) *harness {
	t.Helper()

	h := &harness{
		ventures: newMockVentureRepo(),
		prefs:    &mockPreferenceRepo{},
		history:  newMockHistoryRepo(),
		primary:  &fakeTransport{},
		fallback: &fakeTransport{},
		cache:    &countingInvalidator{},
		clock:    newFakeClock(),
		sleeper:  &recordingSleeper{},
	}
	h.store = NewVentureStore(h.ventures, h.prefs, h.history, log, h.clock.Now)
	h.tracker = NewChangeTracker(h.clock.Now)
	h.client = NewSyncClient(h.primary, h.fallback, h.store, h.tracker, h.cache, SyncOptions{
		MaxRetries:     2,
		BaseDelay:      time.Second,
		AttemptTimeout: time.Minute,
	}, log, WithSleeper(h.sleeper.Sleep), WithClock(h.clock.Now))
	h.sc = NewSyncContext()
	h.submitter = NewSubmitter(h.client, h.tracker, h.sc, DefaultCooldown, log, h.clock.Now)
	return h
}

// acme creates the active venture used throughout the scenarios.
func (h *harness) acme(t *testing.T) *domain.Venture {
	t.Helper()
	h.store.SetAdvisor(h.sc, "Jane")
	h.store.Create(h.sc, "Acme")
	if err := h.store.SetScore(h.sc, domain.CategoryIP, 3); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return h.sc.Venture
}

func ackRow(rowID string) func(int, *domain.Request) (*domain.Response, error) {
	return func(_ int, req *domain.Request) (*domain.Response, error) {
		if req.Action == domain.ActionCreate {
			return &domain.Response{Success: true, RowID: domain.LooseString(rowID)}, nil
		}
		return &domain.Response{Success: true, RowID: domain.LooseString(req.RowID)}, nil
	}
}

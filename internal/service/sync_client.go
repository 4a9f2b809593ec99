package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/transport"
	"readiness-sync/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxNameLength      = 255
	maxAdvisorLength   = 255
	maxPortfolioLength = 100
)

type SyncOptions struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		MaxRetries:     2,
		BaseDelay:      time.Second,
		AttemptTimeout: 5 * time.Second,
	}
}

// Backoff is the wait after failed primary attempt n (zero based).
func (o SyncOptions) Backoff(n int) time.Duration {
	return o.BaseDelay * time.Duration(1<<uint(n))
}

type CacheInvalidator interface {
	InvalidateAll()
}

type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type SyncClientOption func(*SyncClient)

func WithSleeper(s Sleeper) SyncClientOption {
	return func(c *SyncClient) { c.sleep = s }
}

func WithClock(now func() time.Time) SyncClientOption {
	return func(c *SyncClient) { c.now = now }
}

// SyncClient delivers one venture to the proxy per call to Submit.
type SyncClient struct {
	primary  transport.Transport
	fallback transport.Transport
	store    *VentureStore
	tracker  *ChangeTracker
	cache    CacheInvalidator
	validate *validator.Validate
	opts     SyncOptions
	sleep    Sleeper
	now      func() time.Time
	logger   *zap.Logger
}

func NewSyncClient(
	primary, fallback transport.Transport,
	store *VentureStore,
	tracker *ChangeTracker,
	cache CacheInvalidator,
	opts SyncOptions,
	log *zap.Logger,
	options ...SyncClientOption,
) *SyncClient {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	c := &SyncClient{
		primary:  primary,
		fallback: fallback,
		store:    store,
		tracker:  tracker,
		cache:    cache,
		validate: validator.New(),
		opts:     opts,
		sleep:    sleepContext,
		now:      time.Now,
		logger:   logger.OrNop(log).Named("sync"),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Submit validates the active venture, then tries the primary transport up
// to MaxRetries+1 times before handing the payload to the fallback. A
// fallback delivery is reported as optimistic success. The only errors
// returned are validation failures and context cancellation.
func (c *SyncClient) Submit(ctx context.Context, sc *SyncContext) (*domain.Result, error) {
	if err := ValidateVenture(sc); err != nil {
		return nil, err
	}
	v := sc.Venture

	req := BuildRequest(v, c.now())
	if err := c.validatePayload(req); err != nil {
		return nil, err
	}

	result := &domain.Result{Action: req.Action}
	log := c.logger.With(
		zap.String("venture_id", v.ID),
		zap.String("action", string(req.Action)),
	)

	for n := 0; n <= c.opts.MaxRetries; n++ {
		record := domain.SubmissionRecord{
			Payload:   req,
			Attempt:   n + 1,
			Transport: domain.TransportPrimary,
			StartedAt: c.now(),
		}

		ack, err := c.attempt(ctx, req, n+1)
		if err == nil {
			result.Records = append(result.Records, record)
			result.Outcome = domain.OutcomeConfirmed
			result.Ack = ack
			result.RowID = ack.RowID.String()
			c.complete(sc, result)
			log.Info("submission confirmed", zap.Int("attempts", n+1), zap.String("row_id", result.RowID))
			return result, nil
		}

		record.Err = err.Error()
		result.Records = append(result.Records, record)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("primary attempt failed", zap.Int("attempt", n+1), zap.Error(err))

		if n < c.opts.MaxRetries {
			if err := c.sleep(ctx, c.opts.Backoff(n)); err != nil {
				return nil, err
			}
		}
	}

	record := domain.SubmissionRecord{
		Payload:   req,
		Attempt:   c.opts.MaxRetries + 2,
		Transport: domain.TransportFallback,
		StartedAt: c.now(),
	}
	if _, err := c.fallback.Send(ctx, req); err != nil {
		record.Err = err.Error()
		log.Warn("fallback send failed", zap.Error(err))
	}
	result.Records = append(result.Records, record)
	result.Outcome = domain.OutcomeOptimistic
	c.complete(sc, result)
	log.Info("submission handed to fallback", zap.Int("attempts", c.opts.MaxRetries+1))
	return result, nil
}

func (c *SyncClient) attempt(ctx context.Context, req *domain.Request, attempt int) (*domain.Response, error) {
	ack, err := transport.Call(ctx, c.primary, req, c.opts.AttemptTimeout)
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return nil, &TimeoutError{Attempt: attempt, After: c.opts.AttemptTimeout}
	case err != nil:
		return nil, &TransportError{Attempt: attempt, Err: err}
	case ack == nil:
		return nil, &TransportError{Attempt: attempt, Err: errors.New("empty response")}
	case !ack.Success:
		msg := ack.Error
		if msg == "" {
			msg = "proxy reported failure"
		}
		return nil, &TransportError{Attempt: attempt, Err: errors.New(msg)}
	}
	return ack, nil
}

// complete runs the success side effects. A new row id is bound before
// anything else so the next submission of this venture is an update.
func (c *SyncClient) complete(sc *SyncContext, result *domain.Result) {
	v := sc.Venture
	if result.Confirmed() && result.Action == domain.ActionCreate {
		if result.RowID != "" {
			v.Bind(result.RowID)
		} else {
			c.logger.Warn("create acknowledged without row id", zap.String("venture_id", v.ID))
		}
	}

	result.CompletedAt = c.now()
	c.tracker.RecordSuccess(v)
	c.store.Save(sc)
	if c.cache != nil {
		c.cache.InvalidateAll()
	}

	transportKind := domain.TransportPrimary
	if !result.Confirmed() {
		transportKind = domain.TransportFallback
	}
	c.store.AppendHistory(&domain.HistoryEntry{
		VentureID:        v.ID,
		At:               result.CompletedAt,
		Action:           result.Action,
		Outcome:          result.Outcome,
		Transport:        transportKind,
		Attempts:         result.Attempts(),
		RowID:            v.RemoteRowID,
		AssessmentNumber: v.AssessmentNumber,
		Fingerprint:      v.LastSubmittedHash,
	})
}

func (c *SyncClient) validatePayload(req *domain.Request) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed %q rule", fe.Tag())}
	}
	return &ValidationError{Field: "payload", Message: err.Error()}
}

// ValidateVenture checks the preconditions for any network activity.
func ValidateVenture(sc *SyncContext) error {
	if !sc.Active() {
		return &ValidationError{Field: "venture", Message: "no active venture"}
	}
	v := sc.Venture
	if strings.TrimSpace(v.Name) == "" {
		return &ValidationError{Field: "ventureName", Message: "venture name is required"}
	}
	if strings.TrimSpace(v.Advisor) == "" {
		return &ValidationError{Field: "advisorName", Message: "advisor name is required"}
	}
	for _, cat := range domain.Categories(v.IsHealthTrack) {
		if v.Scores[cat] > 0 {
			return nil
		}
	}
	return &ValidationError{Field: "scores", Message: "score at least one category"}
}

// BuildRequest produces the write envelope: an update when the venture is
// bound to a remote row, a create otherwise.
func BuildRequest(v *domain.Venture, now time.Time) *domain.Request {
	req := &domain.Request{Action: domain.ActionCreate}
	if v.Bound() {
		req.Action = domain.ActionUpdate
		req.RowID = v.RemoteRowID
	}

	assessed := now
	if v.AssessedAt != nil {
		assessed = *v.AssessedAt
	}
	number := v.AssessmentNumber
	if number < domain.DefaultAssessmentNo {
		number = domain.DefaultAssessmentNo
	}

	a := &domain.Assessment{
		VentureID:           v.RemoteVentureID,
		VentureName:         sanitize(v.Name, maxNameLength),
		AdvisorName:         sanitize(v.Advisor, maxAdvisorLength),
		Portfolio:           sanitize(v.Portfolio, maxPortfolioLength),
		AssessmentNumber:    number,
		AssessmentDate:      assessed.UTC().Format(time.RFC3339),
		IsHealthTrack:       v.IsHealthTrack,
		SubmissionTimestamp: now.UTC().Format(time.RFC3339),
	}
	for _, cat := range domain.Categories(v.IsHealthTrack) {
		a.SetScore(cat, v.Scores[cat])
	}
	req.Assessment = a
	return req
}

func sanitize(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

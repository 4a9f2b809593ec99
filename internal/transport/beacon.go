package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/pkg/logger"

	"go.uber.org/zap"
)

// BeaconTransport is the fallback channel. It fires the request and reports
// success once the response arrives or the settle delay passes, whichever
// comes first. The response body is never read for meaning.
type BeaconTransport struct {
	opts    Options
	client  *http.Client
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger
	pending sync.WaitGroup
}

func NewBeaconTransport(opts Options, delay, timeout time.Duration, log *zap.Logger) *BeaconTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BeaconTransport{
		opts:    opts,
		client:  opts.httpClient(),
		delay:   delay,
		timeout: timeout,
		logger:  logger.OrNop(log).Named("beacon"),
	}
}

func (t *BeaconTransport) Send(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	target, err := requestURL(t.opts, req, "")
	if err != nil {
		return nil, err
	}

	delivered := make(chan struct{})
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		defer close(delivered)
		t.fire(context.WithoutCancel(ctx), target)
	}()

	settle := time.NewTimer(t.delay)
	defer settle.Stop()

	select {
	case <-delivered:
	case <-settle.C:
	case <-ctx.Done():
	}
	return &domain.Response{Success: true}, nil
}

func (t *BeaconTransport) fire(ctx context.Context, target string) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		t.logger.Debug("beacon not sent", zap.Error(err))
		return
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Debug("beacon delivery failed", zap.Error(err))
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	t.logger.Debug("beacon delivered", zap.Int("status", resp.StatusCode))
}

// Flush waits for beacons still on the wire. Short-lived processes call it
// before exiting.
func (t *BeaconTransport) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

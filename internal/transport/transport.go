// Package transport delivers requests to the proxy endpoint. The primary
// channel addresses the response to a named callback; the fallback is a
// one-way beacon whose response is never inspected.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/pkg/jwt"
)

var ErrTimeout = errors.New("transport: no response before deadline")

type Transport interface {
	Send(ctx context.Context, req *domain.Request) (*domain.Response, error)
}

// Call races a single Send against timeout. Whichever finishes first decides
// the result; a later completion from the other side is discarded.
func Call(ctx context.Context, t Transport, req *domain.Request, timeout time.Duration) (*domain.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		resp *domain.Response
		err  error
	}
	done := make(chan outcome, 1)
	var once sync.Once
	finish := func(o outcome) {
		once.Do(func() { done <- o })
	}

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { finish(outcome{err: ErrTimeout}) })
		defer timer.Stop()
	}

	go func() {
		resp, err := t.Send(ctx, req)
		finish(outcome{resp: resp, err: err})
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Options struct {
	Endpoint      string
	SigningSecret string
	TokenTTL      time.Duration
	Client        *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{}
}

// requestURL encodes req as the data parameter of a GET to the endpoint.
// An empty callback produces a beacon URL.
func requestURL(opts Options, req *domain.Request, callback string) (string, error) {
	if req == nil {
		return "", errors.New("transport: nil request")
	}

	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("transport: invalid endpoint: %w", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("transport: encode request: %w", err)
	}

	q := u.Query()
	q.Set("data", string(data))
	if callback != "" {
		q.Set("callback", callback)
	}
	if opts.SigningSecret != "" {
		advisor := ""
		if req.Assessment != nil {
			advisor = req.AdvisorName
		}
		ttl := opts.TokenTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		token, err := jwt.GenerateToken(advisor, ttl, opts.SigningSecret)
		if err != nil {
			return "", fmt.Errorf("transport: sign request: %w", err)
		}
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"readiness-sync/internal/domain"

	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

var ErrMalformedResponse = errors.New("transport: malformed callback response")

// CallbackTransport is the primary channel. Each request carries a unique
// callback name and the proxy answers with name({...}); anything not
// addressed to that name is rejected.
type CallbackTransport struct {
	opts   Options
	client *http.Client
	seq    atomic.Uint64
}

func NewCallbackTransport(opts Options) *CallbackTransport {
	return &CallbackTransport{
		opts:   opts,
		client: opts.httpClient(),
	}
}

func (t *CallbackTransport) callbackName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("rlSync_%d_%s", t.seq.Add(1), suffix)
}

func (t *CallbackTransport) Send(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	name := t.callbackName()
	target, err := requestURL(t.opts, req, name)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("transport: proxy returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, maxResponseBytes)
	}

	payload, err := unwrapCallback(body, name)
	if err != nil {
		return nil, err
	}

	var out domain.Response
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// unwrapCallback strips "/**/name(" ... ");" and returns the argument.
func unwrapCallback(body []byte, name string) ([]byte, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte("/**/"))
	body = bytes.TrimSpace(body)

	prefix := []byte(name + "(")
	if !bytes.HasPrefix(body, prefix) {
		return nil, fmt.Errorf("%w: not addressed to %s", ErrMalformedResponse, name)
	}
	body = bytes.TrimPrefix(body, prefix)
	body = bytes.TrimSuffix(body, []byte(";"))
	body = bytes.TrimSpace(body)
	if !bytes.HasSuffix(body, []byte(")")) {
		return nil, fmt.Errorf("%w: unterminated call", ErrMalformedResponse)
	}
	return bytes.TrimSuffix(body, []byte(")")), nil
}

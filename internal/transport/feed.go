package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"readiness-sync/internal/websocket"
	"readiness-sync/pkg/jwt"
	"readiness-sync/pkg/logger"

	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Feed subscribes to the proxy's change feed.
type Feed struct {
	url      string
	secret   string
	advisor  string
	tokenTTL time.Duration
	dialer   *ws.Dialer
	logger   *zap.Logger
}

func NewFeed(url, secret, advisor string, tokenTTL time.Duration, log *zap.Logger) *Feed {
	return &Feed{
		url:      url,
		secret:   secret,
		advisor:  advisor,
		tokenTTL: tokenTTL,
		dialer:   ws.DefaultDialer,
		logger:   logger.OrNop(log).Named("feed"),
	}
}

// Run delivers row change messages to handle until ctx is cancelled or the
// connection drops. Cancellation is not an error.
func (f *Feed) Run(ctx context.Context, handle func(*websocket.Message)) error {
	header := http.Header{}
	if f.secret != "" {
		token, err := jwt.GenerateToken(f.advisor, f.tokenTTL, f.secret)
		if err != nil {
			return fmt.Errorf("feed: sign: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.url, err)
	}
	defer conn.Close()
	f.logger.Info("subscribed", zap.String("url", f.url))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || ws.IsCloseError(err, ws.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("feed: %w", err)
		}

		msgs, err := websocket.ParseFrame(frame)
		if err != nil {
			f.logger.Debug("skipping malformed frame", zap.Error(err))
		}
		for _, msg := range msgs {
			switch msg.Type {
			case websocket.TypeRowCreated, websocket.TypeRowUpdated:
				handle(msg)
			case websocket.TypePing, websocket.TypePong:
			default:
				f.logger.Debug("ignoring message", zap.String("type", string(msg.Type)))
			}
		}
	}
}

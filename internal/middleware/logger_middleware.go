package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// requestCaller is filled in by inner middleware so the logger, which wraps
// them, can report who made the request.
type requestCaller struct {
	advisor string
}

const callerKey contextKey = "caller"

func setCaller(r *http.Request, advisor string) {
	if c, ok := r.Context().Value(callerKey).(*requestCaller); ok {
		c.advisor = advisor
	}
}

func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			caller := &requestCaller{}
			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))

			advisor := caller.advisor
			if advisor == "" {
				advisor = "anonymous"
			}

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("advisor", advisor),
			)
		})
	}
}

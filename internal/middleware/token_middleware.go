package middleware

import (
	"context"
	"net/http"
	"strings"

	"readiness-sync/pkg/jwt"
	"readiness-sync/pkg/response"
)

type contextKey string

const AdvisorKey contextKey = "advisor"

// TokenMiddleware verifies the signed request token when a secret is
// configured. The token travels in the query string because callback and
// beacon requests cannot carry headers; a Bearer header is accepted too.
func TokenMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.URL.Query().Get("token")
			if token == "" {
				parts := strings.Split(r.Header.Get("Authorization"), " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}
			if token == "" {
				response.Unauthorized(w, "Missing request token")
				return
			}

			claims, err := jwt.ValidateToken(token, secret)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			setCaller(r, claims.Advisor)
			ctx := context.WithValue(r.Context(), AdvisorKey, claims.Advisor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAdvisor(r *http.Request) string {
	advisor, ok := r.Context().Value(AdvisorKey).(string)
	if !ok {
		return ""
	}
	return advisor
}

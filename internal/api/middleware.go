package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"care-ats/internal/logger"
)

type ctxKey string

// CtxAdmin holds the subject of the admin token that authorised the request.
const CtxAdmin ctxKey = "admin"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request with its status and latency.
func LoggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := logger.RequestID(r)
			r.Header.Set("X-Request-ID", reqID)
			w.Header().Set("X-Request-ID", reqID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := log.WithRequest(r).
				WithField("status", rec.status).
				WithField("duration_ms", time.Since(start).Milliseconds())
			if rec.status >= 500 {
				entry.Warn("request failed")
				return
			}
			entry.Info("request")
		})
	}
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a panic in a handler into a 500.
func RecoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithRequest(r).
						WithField("panic", err).
						WithField("stack", string(debug.Stack())).
						Error("handler panic")
					writeJSON(w, map[string]string{"status": "error", "message": "internal server error"}, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// JWTAuthMiddleware accepts HS256 bearer tokens signed with secret. The
// token's subject is stored under CtxAdmin.
func JWTAuthMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				writeError(w, "invalid Authorization header", http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			subject := claims.Subject
			if subject == "" {
				subject = "admin"
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxAdmin, subject)))
		})
	}
}

func adminFrom(ctx context.Context) string {
	if s, ok := ctx.Value(CtxAdmin).(string); ok && s != "" {
		return s
	}
	return "admin"
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	identitydomain "github.com/velvetcut/booking/internal/identity/domain"
	"github.com/velvetcut/booking/pkg/observability"
)

type principalKey struct{}

// PrincipalFromContext returns the request's principal, anonymous when the
// request carried no valid credentials.
func PrincipalFromContext(ctx context.Context) identitydomain.Principal {
	if p, ok := ctx.Value(principalKey{}).(identitydomain.Principal); ok {
		return p
	}
	return identitydomain.Anonymous()
}

type authClaims struct {
	Role     string `json:"role"`
	WorkerID string `json:"worker_id,omitempty"`
	jwt.RegisteredClaims
}

// authenticate decodes an optional Bearer token into a principal. Requests
// without credentials proceed as anonymous; route guards decide whether
// that is enough.
func authenticate(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
					Code: "unauthenticated", Message: "malformed authorization header"}})
				return
			}

			claims := &authClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				logger.Debug("rejected bearer token", "error", err)
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
					Code: "unauthenticated", Message: "invalid credentials"}})
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
					Code: "unauthenticated", Message: "invalid credentials"}})
				return
			}
			principal := identitydomain.Principal{
				UserID: userID,
				Role:   identitydomain.ParseRole(claims.Role),
			}
			if claims.WorkerID != "" {
				if workerID, err := uuid.Parse(claims.WorkerID); err == nil {
					principal.WorkerID = &workerID
				}
			}

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAuthenticated rejects anonymous requests with 401.
func requireAuthenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()).Role == identitydomain.RolePublic {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code: "unauthenticated", Message: "authentication required"}})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// accessLog logs every request with its status and duration and feeds the
// request counter.
func accessLog(logger *slog.Logger, metrics observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed))
			metrics.Timing("http.request", elapsed,
				observability.T("method", r.Method))
		})
	}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hongminglow/task-manager-be/internal/credentials"
	"github.com/hongminglow/task-manager-be/internal/http/respond"
)

// SessionResolver turns a bearer token into a live session.
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (credentials.Session, error)
}

// SessionHandlerFunc is a handler for identity-scoped routes. The resolved
// session is passed explicitly rather than read back from the request.
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session credentials.Session)

// Authenticator gates identity-scoped routes behind a bearer token.
type Authenticator struct {
	sessions SessionResolver
	log      *slog.Logger
	metrics  *Metrics
}

// NewAuthenticator builds the gate. metrics may be nil.
func NewAuthenticator(sessions SessionResolver, log *slog.Logger, metrics *Metrics) *Authenticator {
	return &Authenticator{sessions: sessions, log: log, metrics: metrics}
}

// Require rejects requests without a live bearer token with 401 and calls h otherwise.
func (a *Authenticator) Require(h SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := BearerToken(r)
		session, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			reason := credentials.FailureReason(err)
			a.metrics.AuthFailure(reason)
			if !credentials.IsAuthentication(err) {
				a.log.ErrorContext(r.Context(), "authenticate request", "err", err)
				respond.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			a.log.DebugContext(r.Context(), "request rejected", "reason", reason)
			respond.Error(w, http.StatusUnauthorized, "please authenticate")
			return
		}
		h(w, r, session)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

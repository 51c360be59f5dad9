// Package middleware contains the HTTP middleware of the dispensary service.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

type contextKey string

const (
	userIDKey     contextKey = "userID"
	businessIDKey contextKey = "businessID"
	sessionIDKey  contextKey = "sessionID"
)

// SessionStore resolves a bearer credential to an active session.
type SessionStore interface {
	GetActiveSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// AuthMiddleware authenticates requests by the session id presented as a
// bearer token. Expired sessions are indistinguishable from unknown ones.
type AuthMiddleware struct {
	sessions SessionStore
}

// NewAuthMiddleware creates an AuthMiddleware backed by the given session store.
func NewAuthMiddleware(sessions SessionStore) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Middleware verifies the Authorization header and adds the session's user
// and business ids to the request context.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := bearerToken(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		session, err := a.sessions.GetActiveSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, session.UserID)
		ctx = context.WithValue(ctx, businessIDKey, session.BusinessID)
		ctx = context.WithValue(ctx, sessionIDKey, session.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", false
	}
	return token, true
}

// GetUserIDFromContext extracts the authenticated user id from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// GetBusinessIDFromContext extracts the session's business id from the request context.
func GetBusinessIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(businessIDKey).(int64)
	return id, ok
}

// GetSessionIDFromContext extracts the session id from the request context.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

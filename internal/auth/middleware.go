package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

// UsernameKey is the context key for the username of a valid session token
const UsernameKey contextKey = "username"

// Middleware provides session-token middleware for HTTP handlers
type Middleware struct {
	service *Service
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// RequireAuth rejects requests without a valid session token.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeAuthError(w, &AuthError{Code: "unauthorized", Message: "authorization required"})
			return
		}

		username, err := m.service.ValidateToken(token)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UsernameKey, username)))
	})
}

// OptionalAuth attaches the username when a valid token is present.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractToken(r); token != "" {
			if username, err := m.service.ValidateToken(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UsernameKey, username))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUsername extracts the username from the request context
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, err error) {
	ae, ok := err.(*AuthError)
	if !ok {
		ae = &AuthError{Code: "invalid_token", Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ae)
}

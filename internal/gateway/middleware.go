// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/cardroom/cardroom/internal/auth"
)

type contextKey string

// userKey carries the authenticated user through the request context.
const userKey contextKey = "user"

// requireSession resolves the bearer token on every request and rejects the
// request when no user holds it. Successful resolution puts the user on the
// request context for handlers to pick up.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing session token", Code: "SESSION_INVALID"})
			return
		}

		user, err := s.authSvc.ResolveSession(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionUser returns the user placed on the context by requireSession.
func sessionUser(r *http.Request) *auth.User {
	user, _ := r.Context().Value(userKey).(*auth.User)
	return user
}

// extractToken pulls the session token from the Authorization header
// ("Bearer <token>") or, failing that, the X-Session-Token header.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return r.Header.Get("X-Session-Token")
}

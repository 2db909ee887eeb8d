package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/unimind/platform/internal/auth"
)

// context key type for storing auth claims in request contexts
type authContextKey struct{}

// claimsFromContext extracts auth claims from the context, if present.
func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// requireAuth enforces a Bearer JWT on every wrapped route and attaches the
// verified claims to the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loginKey keys the login rate limiter by the attempted account id so a
// brute force against one account is throttled even across addresses. The
// body is restored for the real handler.
func loginKey(r *http.Request) string {
	var body struct {
		ID string `json:"id"`
	}
	raw, err := readBodyAndRestore(r)
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.ID == "" {
		return ""
	}
	return "acct:" + body.ID
}

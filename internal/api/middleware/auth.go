package middleware

import (
	"context"
	"errors"
	"net/http"

	"taskmaster/internal/common"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const principalCtxKey contextKey = "principal"

// SessionResolver turns verified token claims into the caller, rejecting
// tokens whose session has been revoked.
type SessionResolver interface {
	Authenticate(ctx context.Context, claims *security.Claims) (model.Principal, error)
}

// Authenticator requires a verified bearer token (see jwtauth.Verifier) that
// still maps to a live session, and stores the caller in the context.
func Authenticator(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, raw, err := jwtauth.FromContext(r.Context())
			if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
				common.RespondWithError(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, err := security.ClaimsFromMap(raw)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			principal, err := resolver.Authenticate(r.Context(), claims)
			if err != nil {
				common.RespondWithServiceError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin() {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(model.Principal)
	return p, ok
}


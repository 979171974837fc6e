package middleware

import (
	"context"
	"errors"
	"net/http"

	"highbid/internal/domain"
	"highbid/internal/i18n"
)

type principalKey struct{}

// Resolver identifies the caller of a request.
type Resolver interface {
	Resolve(r *http.Request) (domain.Principal, error)
	ResolveSession(r *http.Request) (domain.Principal, error)
}

// Authenticate admits API tokens and sessions.
func Authenticate(gate Resolver) func(http.Handler) http.Handler {
	return authenticate(gate.Resolve)
}

// Identify attaches the caller when one resolves and lets anonymous requests
// through. Handlers behind it reject a missing principal themselves.
func Identify(gate Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := gate.Resolve(r)
			switch {
			case err == nil:
				r = r.WithContext(WithPrincipal(r.Context(), p))
			case !errors.Is(err, domain.ErrUnauthenticated):
				writeError(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession admits sessions only; API tokens are rejected.
func RequireSession(gate Resolver) func(http.Handler) http.Handler {
	return authenticate(gate.ResolveSession)
}

func authenticate(resolve func(*http.Request) (domain.Principal, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolve(r)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					writeError(w, r, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
					return
				}
				writeError(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
			return
		}
		if !p.Admin {
			writeError(w, r, http.StatusForbidden, "forbidden", i18n.MsgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

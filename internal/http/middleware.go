package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fluxia/internal/service"
)

const (
	SessionCookie    = "fluxia_session"
	AdminTokenHeader = "X-Admin-Token"
)

type principalKey struct{}

// Resolver maps session tokens to principals.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*service.Principal, error)
}

func withPrincipal(ctx context.Context, p *service.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *service.Principal {
	p, _ := ctx.Value(principalKey{}).(*service.Principal)
	return p
}

// Auth guards routes that need a signed-in user.
type Auth struct {
	resolver   Resolver
	adminToken string
	logger     *zap.Logger
}

func NewAuth(resolver Resolver, adminToken string, logger *zap.Logger) *Auth {
	return &Auth{resolver: resolver, adminToken: adminToken, logger: logger}
}

// Required rejects requests without a valid session with 401/60401.
func (a *Auth) Required(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, Expired("not signed in"))
			return
		}
		p, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				writeJSON(w, http.StatusUnauthorized, Expired("session expired"))
				return
			}
			writeError(w, r, a.logger, err)
			return
		}
		next(w, r.WithContext(withPrincipal(r.Context(), p)))
	}
}

// Optional attaches the principal when the session resolves and otherwise
// passes the request through unauthenticated.
func (a *Auth) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			p, err := a.resolver.Resolve(r.Context(), token)
			if err == nil {
				r = r.WithContext(withPrincipal(r.Context(), p))
			} else if !errors.Is(err, service.ErrUnauthorized) {
				a.logger.Warn("Session resolve failed", zap.Error(err))
			}
		}
		next(w, r)
	}
}

// Doctor requires a session linked to a doctor row.
func (a *Auth) Doctor(next http.HandlerFunc) http.HandlerFunc {
	return a.Required(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()).Doctor == nil {
			writeJSON(w, http.StatusForbidden, Fail("doctor account required"))
			return
		}
		next(w, r)
	})
}

// Patient requires a session that resolves to a patient profile.
func (a *Auth) Patient(next http.HandlerFunc) http.HandlerFunc {
	return a.Required(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()).Patient == nil {
			writeJSON(w, http.StatusForbidden, Fail("patient profile required"))
			return
		}
		next(w, r)
	})
}

// Admin checks X-Admin-Token. With no token configured admin routes are closed.
func (a *Auth) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if a.adminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.adminToken)) != 1 {
			a.logger.Warn("Admin request rejected", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusForbidden, Fail("admin token required"))
			return
		}
		next(w, r)
	}
}

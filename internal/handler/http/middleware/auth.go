package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"banking/internal/domain"
	"banking/internal/handler/http/httputil"
	"banking/internal/token"
)

type TokenVerifier interface {
	Verify(raw, audience string) (token.Claims, error)
}

type AccountLookup interface {
	LookupAccount(ctx context.Context, email string) (*domain.Account, error)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	AccountID string
	Email     string
	Roles     domain.Role
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator resolves a Bearer access token into an Identity. Requests
// without a usable token continue anonymously; RequireRole decides later
// whether that is acceptable.
func Authenticator(verifier TokenVerifier, accounts AccountLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(raw, token.AudienceAccess)
			if err != nil {
				logger.Debug("Ignoring invalid access token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			account, err := accounts.LookupAccount(r.Context(), claims.Subject)
			if err != nil {
				logger.Debug("Ignoring token for unresolvable account", zap.String("email", claims.Subject), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			id := Identity{AccountID: account.ID, Email: account.Email, Roles: account.Roles}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects anonymous callers with 401 and callers lacking role
// with 403.
func RequireRole(role domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="banking"`)
				httputil.WriteError(w, logger, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.Roles.Has(role) {
				logger.Info("Access denied",
					zap.String("email", id.Email),
					zap.Strings("granted_roles", id.Roles.Names()),
					zap.Strings("required_roles", role.Names()))
				httputil.WriteError(w, logger, http.StatusForbidden, "insufficient authority")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

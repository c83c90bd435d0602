package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/lumi/internal/apperror"
)

// contextKey is unexported so only this package can read or write the identity.
type contextKey string

const identityKey contextKey = "identity"

// HeaderToken is the header existing clients send the token in.
const HeaderToken = "X-Auth-Token"

// Verifier checks a raw token. *TokenService implements it.
type Verifier interface {
	Verify(tokenStr string) (*Claims, error)
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// caller's Identity in the context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identify(r, tokens)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the Identity when a valid token is present but never
// blocks the request. GET /api/posts uses it.
func OptionalAuth(tokens Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := identify(r, tokens); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// TokenFromRequest reads X-Auth-Token, falling back to "Authorization: Bearer".
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(HeaderToken)); tok != "" {
		return tok
	}
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}

func identify(r *http.Request, tokens Verifier) (*Identity, error) {
	tok := TokenFromRequest(r)
	if tok == "" {
		return nil, apperror.Unauthorized()
	}
	claims, err := tokens.Verify(tok)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

// writeUnauthorized mirrors the handler package's error body. An expired token
// keeps its own kind so clients know to log in again.
func writeUnauthorized(w http.ResponseWriter, err error) {
	kind := "unauthorized"
	switch {
	case errors.Is(err, apperror.ErrTokenExpired):
		kind = "token_expired"
	case errors.Is(err, apperror.ErrTokenInvalid):
		kind = "token_invalid"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": err.Error(),
	})
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// Identity is the caller resolved from a verified session token.
type Identity struct {
	UserID   string
	FullName string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// TokenVerifier decodes a session token.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Gate authenticates requests by their session cookie.
type Gate struct {
	verifier TokenVerifier

	// ErrorHandler writes the rejection response. The error always matches
	// ErrTokenInvalid.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// NewGate returns a gate that verifies cookies with v.
func NewGate(v TokenVerifier) *Gate {
	return &Gate{verifier: v, ErrorHandler: DefaultErrorHandler}
}

// Middleware rejects requests without a valid session and passes the rest on
// with the caller's Identity in the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			g.reject(w, r, ErrTokenInvalid)
			return
		}

		claims, err := g.verifier.Verify(cookie.Value)
		if err != nil {
			g.reject(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, FullName: claims.FullName})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	h := g.ErrorHandler
	if h == nil {
		h = DefaultErrorHandler
	}
	h(w, r, err)
}

// DefaultErrorHandler answers 401 with the standard JSON envelope.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "User not authenticated.",
		"success": false,
	})
}

// SessionCookie builds the cookie set on login.
func SessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredSessionCookie builds the replacement cookie set on logout. MaxAge -1
// is sent as "Max-Age=0".
func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

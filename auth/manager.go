package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/webitel/rocrate-exporter/internal/errors"
)

const (
	AuthorizationHeader = "Authorization"
	AccessTokenCookie   = "access_token"
	bearerPrefix        = "bearer "
)

type sessionKey struct{}

// Session carries the caller's credential. The token is forwarded to the
// content service as-is; it is never inspected here.
type Session struct {
	Token string
}

type Manager interface {
	AuthorizeFromRequest(r *http.Request) (*Session, error)
}

// TokenManager reads a bearer token from the Authorization header and falls
// back to the access token cookie.
type TokenManager struct {
	Cookie string
}

func NewTokenManager() *TokenManager {
	return &TokenManager{Cookie: AccessTokenCookie}
}

func (m *TokenManager) AuthorizeFromRequest(r *http.Request) (*Session, error) {
	if h := strings.TrimSpace(r.Header.Get(AuthorizationHeader)); h != "" {
		if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			if token := strings.TrimSpace(h[len(bearerPrefix):]); token != "" {
				return &Session{Token: token}, nil
			}
		}
		return nil, errors.New("malformed authorization header",
			errors.WithID("auth.manager.authorize.malformed_header"),
			errors.WithCode(http.StatusUnauthorized),
		)
	}
	if c, err := r.Cookie(m.Cookie); err == nil && c.Value != "" {
		return &Session{Token: c.Value}, nil
	}
	return nil, errors.New("Authentication required",
		errors.WithID("auth.manager.authorize.no_token"),
		errors.WithCode(http.StatusUnauthorized),
	)
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns nil when the request was not authorized.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Token returns the session token or "".
func Token(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.Token
	}
	return ""
}

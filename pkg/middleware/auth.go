package middleware

import (
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/httputil"
)

type principalCacheEntry struct {
	principal *auth.Principal
	expiresAt time.Time
}

// AuthMiddleware authenticates bearer tokens and attaches the principal
// to the request context.
//
// Token lookups are cached in a small LRU keyed by token hash. The cache
// holds identity only, never permissions; authorization is recomputed on
// every request regardless.
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	cache    *lru.Cache[string, principalCacheEntry]
	cacheTTL time.Duration
}

// NewAuthMiddleware creates an authentication middleware. cacheTTL of
// zero disables the identity cache.
func NewAuthMiddleware(tokens *auth.TokenManager, cacheSize int, cacheTTL time.Duration) (*AuthMiddleware, error) {
	m := &AuthMiddleware{tokens: tokens, cacheTTL: cacheTTL}
	if cacheTTL > 0 {
		cache, err := lru.New[string, principalCacheEntry](cacheSize)
		if err != nil {
			return nil, err
		}
		m.cache = cache
	}
	return m, nil
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}
		token := parts[1]

		principal, err := m.resolvePrincipal(r, token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resolvePrincipal(r *http.Request, token string) (*auth.Principal, error) {
	hash := auth.HashToken(token)

	if m.cache != nil {
		if entry, ok := m.cache.Get(hash); ok && entry.expiresAt.After(time.Now()) {
			return entry.principal, nil
		}
	}

	principal, err := m.tokens.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.Add(hash, principalCacheEntry{
			principal: principal,
			expiresAt: time.Now().Add(m.cacheTTL),
		})
	}
	return principal, nil
}

// GetPrincipal extracts the authenticated principal from a request.
func GetPrincipal(r *http.Request) *auth.Principal {
	v := r.Context().Value(contextkeys.PrincipalKey)
	if v == nil {
		return nil
	}
	principal, ok := v.(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}

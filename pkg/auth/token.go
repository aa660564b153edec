package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenPrefix identifies bearer tokens issued by this service.
	TokenPrefix = "thv_"
	// TokenLength is the number of random bytes per token.
	TokenLength = 32
)

var (
	// ErrInvalidToken covers malformed, unknown, revoked, and expired
	// tokens. One error so callers cannot distinguish the cases.
	ErrInvalidToken = fmt.Errorf("invalid or expired token")
)

// HashToken computes the SHA256 hex digest stored in place of the token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks prefix and encoding without touching storage.
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}

// TokenManager issues and validates opaque bearer tokens backed by the
// api_tokens table.
type TokenManager struct {
	db  *sql.DB
	ttl time.Duration
}

// NewTokenManager creates a token manager. ttl of zero means tokens do
// not expire.
func NewTokenManager(db *sql.DB, ttl time.Duration) *TokenManager {
	return &TokenManager{db: db, ttl: ttl}
}

// CreateToken mints a token for a user and stores its hash. The plaintext
// is returned exactly once and never persisted.
func (tm *TokenManager) CreateToken(ctx context.Context, userID, name string) (*APIToken, string, error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	plaintext := TokenPrefix + encoded

	token := &APIToken{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   HashToken(plaintext),
		TokenPrefix: TokenPrefix + encoded[:8],
		Name:        name,
		CreatedAt:   time.Now().UTC(),
	}
	if tm.ttl > 0 {
		expires := token.CreatedAt.Add(tm.ttl)
		token.ExpiresAt = &expires
	}

	query := `
		INSERT INTO api_tokens (id, user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tm.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.TokenPrefix,
		token.Name,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, plaintext, nil
}

// ValidateToken resolves a bearer token to the principal that owns it.
// Revoked and expired tokens fail with ErrInvalidToken.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	query := `
		SELECT t.id, u.id, u.email
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND (t.expires_at IS NULL OR t.expires_at > $2)
		  AND u.is_active = true
	`

	var tokenID string
	var principal Principal
	err := tm.db.QueryRowContext(ctx, query, HashToken(token), time.Now().UTC()).
		Scan(&tokenID, &principal.ID, &principal.Email)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	// Best effort; validation does not fail on a bookkeeping error.
	_, _ = tm.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`,
		time.Now().UTC(), tokenID)

	return &principal, nil
}

// RevokeToken marks a token revoked.
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID string) error {
	query := `UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	if _, err := tm.db.ExecContext(ctx, query, time.Now().UTC(), tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// PurgeExpiredTokens deletes tokens that expired before the cutoff.
// Returns the number removed.
func (tm *TokenManager) PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`
	res, err := tm.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged tokens: %w", err)
	}
	return n, nil
}

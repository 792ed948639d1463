package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fragmentui/fragmentui/internal/auth/storage"
)

// PutMagicLinkToken stores a freshly issued magic link token hash.
func (s *Store) PutMagicLinkToken(ctx context.Context, token storage.MagicLinkToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token.TokenHash) == "" {
		return fmt.Errorf("token hash is required")
	}
	if strings.TrimSpace(token.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO magic_link_tokens (token_hash, user_id, created_at, expires_at, used_at)
VALUES (?, ?, ?, ?, NULL)
`,
		token.TokenHash,
		token.UserID,
		toMillis(token.CreatedAt),
		toMillis(token.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("put magic link token: %w", err)
	}
	return nil
}

// GetMagicLinkToken fetches the newest token for a user matching the hash.
func (s *Store) GetMagicLinkToken(ctx context.Context, userID string, tokenHash string) (storage.MagicLinkToken, error) {
	if err := ctx.Err(); err != nil {
		return storage.MagicLinkToken{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MagicLinkToken{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.MagicLinkToken{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(tokenHash) == "" {
		return storage.MagicLinkToken{}, fmt.Errorf("token hash is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token_hash, user_id, created_at, expires_at, used_at
FROM magic_link_tokens
WHERE user_id = ? AND token_hash = ?
ORDER BY created_at DESC
LIMIT 1
`, userID, tokenHash)

	var token storage.MagicLinkToken
	var createdAt int64
	var expiresAt int64
	var usedAt sql.NullInt64
	if err := row.Scan(&token.TokenHash, &token.UserID, &createdAt, &expiresAt, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MagicLinkToken{}, storage.ErrNotFound
		}
		return storage.MagicLinkToken{}, fmt.Errorf("get magic link token: %w", err)
	}
	token.CreatedAt = fromMillis(createdAt)
	token.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		value := fromMillis(usedAt.Int64)
		token.UsedAt = &value
	}
	return token, nil
}

// ConsumeMagicLinkToken marks a token redeemed.
//
// The used_at guard makes the Created to Used transition atomic: of two racing
// redemptions, exactly one observes a row to update.
func (s *Store) ConsumeMagicLinkToken(ctx context.Context, tokenHash string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tokenHash) == "" {
		return fmt.Errorf("token hash is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE magic_link_tokens
SET used_at = ?
WHERE token_hash = ? AND used_at IS NULL
`, toMillis(usedAt), tokenHash)
	if err != nil {
		return fmt.Errorf("consume magic link token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume magic link token: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.MagicLinkStore = (*Store)(nil)

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

// InsertPasskeyCredential stores a newly registered WebAuthn credential.
//
// The descriptor id is the primary key across all users, so a credential that
// was ever claimed cannot be claimed again.
func (s *Store) InsertPasskeyCredential(ctx context.Context, credential storage.PasskeyCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.DescriptorID) == "" {
		return fmt.Errorf("descriptor id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	lastUsed := sql.NullInt64{}
	if credential.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*credential.LastUsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_credentials (
    descriptor_id,
    user_id,
    public_key,
    credential_type,
    signature_counter,
    aaguid,
    user_handle,
    display_name,
    created_at,
    last_used_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		credential.DescriptorID,
		credential.UserID,
		credential.PublicKey,
		credential.CredentialType,
		int64(credential.SignatureCounter),
		credential.AAGUID,
		credential.UserHandle,
		credential.DisplayName,
		toMillis(credential.CreatedAt),
		lastUsed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert passkey credential: %w", err)
	}
	return nil
}

// GetPasskeyCredential fetches a stored WebAuthn credential by descriptor id.
func (s *Store) GetPasskeyCredential(ctx context.Context, descriptorID string) (storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PasskeyCredential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(descriptorID) == "" {
		return storage.PasskeyCredential{}, fmt.Errorf("descriptor id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT descriptor_id, user_id, public_key, credential_type, signature_counter,
       aaguid, user_handle, display_name, created_at, last_used_at
FROM passkey_credentials
WHERE descriptor_id = ?
`, descriptorID)

	credential, err := scanPasskeyCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeyCredential{}, storage.ErrNotFound
		}
		return storage.PasskeyCredential{}, fmt.Errorf("get passkey credential: %w", err)
	}
	return credential, nil
}

// ListPasskeyCredentials returns the credentials registered by a user.
func (s *Store) ListPasskeyCredentials(ctx context.Context, userID string) ([]storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT descriptor_id, user_id, public_key, credential_type, signature_counter,
       aaguid, user_handle, display_name, created_at, last_used_at
FROM passkey_credentials
WHERE user_id = ?
ORDER BY created_at ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]storage.PasskeyCredential, 0)
	for rows.Next() {
		credential, err := scanPasskeyCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan passkey credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	return credentials, nil
}

// UpdatePasskeyCounter advances the signature counter after a verified assertion.
//
// The WHERE clause re-checks the previously observed counter so a racing
// assertion cannot overwrite a newer value.
func (s *Store) UpdatePasskeyCounter(ctx context.Context, descriptorID string, previous uint64, next uint64, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(descriptorID) == "" {
		return fmt.Errorf("descriptor id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE passkey_credentials
SET signature_counter = ?, last_used_at = ?
WHERE descriptor_id = ? AND signature_counter = ?
`,
		int64(next),
		toMillis(usedAt),
		descriptorID,
		int64(previous),
	)
	if err != nil {
		return fmt.Errorf("update passkey counter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update passkey counter: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPasskeyCredential(scan func(dest ...any) error) (storage.PasskeyCredential, error) {
	var credential storage.PasskeyCredential
	var counter int64
	var createdAt int64
	var lastUsed sql.NullInt64
	if err := scan(
		&credential.DescriptorID,
		&credential.UserID,
		&credential.PublicKey,
		&credential.CredentialType,
		&counter,
		&credential.AAGUID,
		&credential.UserHandle,
		&credential.DisplayName,
		&createdAt,
		&lastUsed,
	); err != nil {
		return storage.PasskeyCredential{}, err
	}
	credential.SignatureCounter = uint64(counter)
	credential.CreatedAt = fromMillis(createdAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}

var _ storage.PasskeyStore = (*Store)(nil)

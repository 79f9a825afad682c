package pg

import (
	"context"
	"time"

	"animcentre.org/internal/auth"
)

var _ auth.RevocationStore = (*Store)(nil)

// Revoke records a token identifier in the ledger. The insert is
// conflict-free so revoking twice is a no-op, and entries whose underlying
// token would have expired anyway are pruned eagerly on every write.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	now := s.now()
	if !expiresAt.After(now) {
		// The token has already expired naturally; nothing to record.
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from revoked_tokens where expires_at <= $1
	`, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into revoked_tokens (token_id, expires_at)
		values ($1, $2)
		on conflict (token_id) do nothing
	`, tokenID, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// IsRevoked reports whether the token identifier has an unexpired ledger
// entry.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from revoked_tokens
			where token_id = $1 and expires_at > $2
		)
	`, tokenID, s.now()).Scan(&revoked)
	if err != nil {
		return false, err
	}
	return revoked, nil
}

package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth core requires from
// the credential database. Implementations must serialize concurrent writes
// to the failed-login counter (RecordFailedLogin is a single atomic
// statement in the SQL implementation).
type Store interface {
	// CreateUser inserts a user and assigns the given roles. Fills u.ID.
	CreateUser(ctx context.Context, u *User, roleIDs []int64) error
	// FindUserByIdentifier looks a user up by username or email.
	FindUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error)

	// RecordFailedLogin increments the consecutive-failure counter and, when
	// the counter reaches threshold, sets the lockout deadline to now+window.
	// Returns whether the account is now locked.
	RecordFailedLogin(ctx context.Context, userID int64, threshold int, window time.Duration) (bool, error)
	// ResetFailedLogins clears the counter and any lockout deadline.
	ResetFailedLogins(ctx context.Context, userID int64) error

	CreateRole(ctx context.Context, role *Role) error
	ListRoles(ctx context.Context) ([]Role, error)
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SetRolePermissions(ctx context.Context, roleID int64, permissionNames []string) error

	// EnsurePermissions inserts any catalog entries that do not exist yet.
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	// UserPermissions returns the union of permission names across the
	// user's roles. An unknown user yields an empty set, not an error.
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
}

// RevocationStore is the durable ledger of revoked token identifiers.
// Entries never need to outlive the token's natural expiry; implementations
// may prune eagerly on write or lazily via key TTL, as long as a non-expired
// revoked token is never reported valid.
type RevocationStore interface {
	// Revoke marks a token identifier as unusable until expiresAt.
	// Revoking an already-revoked or already-expired token is a no-op.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

package auth

import "time"

// User is an identity record. Accounts are never hard-deleted; deactivation
// clears the Active flag and immediately invalidates outstanding tokens.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Active         bool       `json:"active"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PublicUser is the projection of User returned over the wire. It carries
// no password hash and no login bookkeeping.
type PublicUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the wire projection of a user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// Role is a named permission bundle. A user may hold multiple roles;
// permissions accumulate across them.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a named capability, grouped by category for display.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      PublicUser `json:"user"`
}

// NewUser describes a user to be created through the admin API.
type NewUser struct {
	Username string
	Email    string
	Password string
	RoleIDs  []int64
}

// UserUpdate describes a partial user update. Password, if set, is the
// plaintext; the service hashes it before it reaches the store.
type UserUpdate struct {
	Password *string
	Active   *bool
	RoleIDs  *[]int64
}

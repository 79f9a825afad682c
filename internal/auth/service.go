package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"animcentre.org/internal/token"
)

const (
	defaultTokenTTL         = 24 * time.Hour
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 15 * time.Minute
)

// Service orchestrates login, logout, token verification and permission
// checks. Each call is independent and stateless beyond the injected stores;
// authentication state lives in the signed token plus the revocation ledger.
type Service struct {
	store   Store
	revoked RevocationStore
	codec   *token.Codec
	now     func() time.Time

	tokenTTL         time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithTokenTTL configures issued-token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
		return nil
	}
}

// WithLockoutPolicy configures the consecutive-failure threshold and the
// lockout window applied once it is reached.
func WithLockoutPolicy(threshold int, window time.Duration) ServiceOption {
	return func(s *Service) error {
		if threshold <= 0 || window <= 0 {
			return errors.New("auth: lockout threshold and window must be positive")
		}
		s.lockoutThreshold = threshold
		s.lockoutWindow = window
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service with explicit dependencies.
func NewService(store Store, revoked RevocationStore, codec *token.Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if revoked == nil {
		return nil, errors.New("auth: revocation store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:            store,
		revoked:          revoked,
		codec:            codec,
		now:              time.Now,
		tokenTTL:         defaultTokenTTL,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutWindow:    defaultLockoutWindow,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// EnsureBuiltins makes sure the built-in permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Login authenticates a username-or-email identifier and a password. On
// success it issues a token embedding the user's current role snapshot.
// Credential failures are indistinguishable to the caller: unknown
// identifier, wrong password and deactivated account all surface as
// ErrInvalidCredentials. A locked account fails with ErrAccountLocked even
// when the password is correct.
func (s *Service) Login(ctx context.Context, identifier, password string) (Session, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || password == "" {
		return Session{}, fmt.Errorf("%w: identifier and password are required", ErrValidation)
	}

	user, err := s.store.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return Session{}, ErrAccountLocked
	}
	if !user.Active {
		return Session{}, ErrInvalidCredentials
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if _, recErr := s.store.RecordFailedLogin(ctx, user.ID, s.lockoutThreshold, s.lockoutWindow); recErr != nil {
			return Session{}, recErr
		}
		return Session{}, ErrInvalidCredentials
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.store.ResetFailedLogins(ctx, user.ID); err != nil {
			return Session{}, err
		}
	}

	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}

	signed, claims, err := s.codec.Issue(user.ID, user.Username, names, s.tokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user.Public(),
	}, nil
}

// Logout revokes the presented token until its natural expiry. The token
// must be well-formed and correctly signed but may already be expired; an
// expired token's logout is a harmless no-op. Logout is idempotent.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.codec.Verify(raw)
	if err != nil && !errors.Is(err, token.ErrExpired) {
		return ErrInvalidToken
	}
	if claims == nil {
		return ErrInvalidToken
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// VerifyToken validates a bearer token and returns the principal it
// represents: signature and expiry via the codec, then the revocation
// ledger, then a fresh user load so that deactivation (or deletion) takes
// effect before natural expiry.
func (s *Service) VerifyToken(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrInvalidToken
	}

	perms, err := s.store.UserPermissions(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(user.Public(), claims.Roles, perms), nil
}

// EffectivePermissions resolves the union of permissions across all of the
// user's roles. An unknown user id yields an empty set.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (map[string]struct{}, error) {
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set, nil
}

// CheckPermission reports whether the user holds the named permission.
func (s *Service) CheckPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	return s.CheckAnyPermission(ctx, userID, permission)
}

// CheckAnyPermission reports whether the user holds at least one of the
// required permissions.
func (s *Service) CheckAnyPermission(ctx context.Context, userID int64, required ...string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range required {
		if _, ok := set[name]; ok {
			return true, nil
		}
	}
	return false, nil
}

// CheckAllPermissions reports whether the user holds every required
// permission.
func (s *Service) CheckAllPermissions(ctx context.Context, userID int64, required ...string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range required {
		if _, ok := set[name]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// CreateUser validates and creates a user with an initial role set.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (PublicUser, error) {
	nu.Username = strings.TrimSpace(strings.ToLower(nu.Username))
	if nu.Username == "" {
		return PublicUser{}, fmt.Errorf("%w: username is required", ErrValidation)
	}
	nu.Email = strings.TrimSpace(strings.ToLower(nu.Email))
	if nu.Email == "" || !strings.Contains(nu.Email, "@") {
		return PublicUser{}, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(nu.Password) < 8 {
		return PublicUser{}, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return PublicUser{}, err
	}
	user := &User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.store.CreateUser(ctx, user, nu.RoleIDs); err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

// UpdateUser applies a partial update. A plaintext password in the update
// is hashed here; the store only ever sees the hash.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (PublicUser, error) {
	if id <= 0 {
		return PublicUser{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if upd.Password != nil {
		if len(*upd.Password) < 8 {
			return PublicUser{}, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return PublicUser{}, err
		}
		upd.Password = &hash
	}
	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

// CreateRole validates and creates a role.
func (s *Service) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrValidation)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = name
	}
	role := &Role{Name: name, DisplayName: displayName, Description: strings.TrimSpace(description)}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return Role{}, err
	}
	return *role, nil
}

// ListRoles lists all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// SetRolePermissions replaces a role's permission set.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	if roleID <= 0 {
		return fmt.Errorf("%w: role id is required", ErrValidation)
	}
	return s.store.SetRolePermissions(ctx, roleID, dedupeStrings(permissions))
}

// AssignRole grants a role to a user. Role changes do not touch already
// issued tokens; they take effect at the next login or token reissue.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: user id and role id are required", ErrValidation)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: user id and role id are required", ErrValidation)
	}
	return s.store.RemoveRole(ctx, userID, roleID)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

package httpapi

import (
	"context"
	"sync"
	"time"

	"animcentre.org/internal/auth"
)

// memStore is an in-memory auth.Store used to drive the HTTP layer with a
// real auth.Service in tests.
type memStore struct {
	mu         sync.Mutex
	nextUserID int64
	nextRoleID int64
	users      map[int64]*auth.User
	roles      map[int64]*auth.Role
	userRoles  map[int64]map[int64]struct{}
	rolePerms  map[int64]map[string]struct{}
	catalog    []auth.Permission
	now        func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		nextUserID: 1,
		nextRoleID: 1,
		users:      make(map[int64]*auth.User),
		roles:      make(map[int64]*auth.Role),
		userRoles:  make(map[int64]map[int64]struct{}),
		rolePerms:  make(map[int64]map[string]struct{}),
		now:        time.Now,
	}
}

func (m *memStore) CreateUser(ctx context.Context, u *auth.User, roleIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	for _, id := range roleIDs {
		if _, ok := m.roles[id]; !ok {
			return auth.ErrNotFound
		}
	}
	u.ID = m.nextUserID
	m.nextUserID++
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	clone := *u
	m.users[u.ID] = &clone
	set := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
	m.userRoles[u.ID] = set
	return nil
}

func (m *memStore) FindUserByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memStore) UpdateUser(ctx context.Context, id int64, upd auth.UserUpdate) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	if upd.RoleIDs != nil {
		set := make(map[int64]struct{}, len(*upd.RoleIDs))
		for _, rid := range *upd.RoleIDs {
			if _, ok := m.roles[rid]; !ok {
				return nil, auth.ErrNotFound
			}
			set[rid] = struct{}{}
		}
		m.userRoles[id] = set
	}
	u.UpdatedAt = m.now()
	clone := *u
	return &clone, nil
}

func (m *memStore) RecordFailedLogin(ctx context.Context, userID int64, threshold int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, auth.ErrNotFound
	}
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		until := m.now().Add(window)
		u.LockedUntil = &until
		return true, nil
	}
	return false, nil
}

func (m *memStore) ResetFailedLogins(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (m *memStore) CreateRole(ctx context.Context, role *auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return auth.ErrConflict
		}
	}
	role.ID = m.nextRoleID
	m.nextRoleID++
	clone := *role
	m.roles[role.ID] = &clone
	return nil
}

func (m *memStore) ListRoles(ctx context.Context) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) RolesForUser(ctx context.Context, userID int64) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.Role
	for rid := range m.userRoles[userID] {
		if r, ok := m.roles[rid]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[int64]struct{})
	}
	m.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (m *memStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *memStore) SetRolePermissions(ctx context.Context, roleID int64, permissionNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	set := make(map[string]struct{}, len(permissionNames))
	for _, name := range permissionNames {
		set[name] = struct{}{}
	}
	m.rolePerms[roleID] = set
	return nil
}

func (m *memStore) EnsurePermissions(ctx context.Context, perms []auth.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range perms {
		exists := false
		for _, have := range m.catalog {
			if have.Name == p.Name {
				exists = true
				break
			}
		}
		if !exists {
			m.catalog = append(m.catalog, p)
		}
	}
	return nil
}

func (m *memStore) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Permission, len(m.catalog))
	copy(out, m.catalog)
	return out, nil
}

func (m *memStore) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for rid := range m.userRoles[userID] {
		for name := range m.rolePerms[rid] {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, nil
}

// memLedger is an in-memory auth.RevocationStore.
type memLedger struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{revoked: make(map[string]time.Time), now: time.Now}
}

func (l *memLedger) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !expiresAt.After(l.now()) {
		return nil
	}
	l.revoked[tokenID] = expiresAt
	return nil
}

func (l *memLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return expiry.After(l.now()), nil
}

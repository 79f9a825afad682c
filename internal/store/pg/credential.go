package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"animcentre.org/internal/auth"
)

var _ auth.Store = (*Store)(nil)

const userColumns = `id, username, email, password_hash, active, failed_attempts, locked_until, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var (
		u      auth.User
		locked sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active,
		&u.FailedAttempts, &locked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if locked.Valid {
		t := locked.Time
		u.LockedUntil = &t
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User, roleIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (username, email, password_hash, active)
		values ($1, $2, $3, $4)
		returning id, created_at, updated_at
	`, u.Username, u.Email, u.PasswordHash, u.Active)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			on conflict do nothing
		`, u.ID, roleID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where username = $1 or email = $1
	`, identifier)
	return scanUser(row)
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, upd auth.UserUpdate) (*auth.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.Password != nil {
		if _, err := tx.ExecContext(ctx, `
			update users set password_hash = $2, updated_at = now() where id = $1
		`, id, *upd.Password); err != nil {
			return nil, err
		}
	}
	if upd.Active != nil {
		if _, err := tx.ExecContext(ctx, `
			update users set active = $2, updated_at = now() where id = $1
		`, id, *upd.Active); err != nil {
			return nil, err
		}
	}
	if upd.RoleIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, id); err != nil {
			return nil, err
		}
		for _, roleID := range *upd.RoleIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into user_roles (user_id, role_id)
				values ($1, $2)
				on conflict do nothing
			`, id, roleID); err != nil {
				if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
					return nil, auth.ErrNotFound
				}
				return nil, err
			}
		}
	}

	user, err := scanUser(tx.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

// RecordFailedLogin is a single atomic statement so that two concurrent
// failed attempts cannot race past the lockout threshold.
func (s *Store) RecordFailedLogin(ctx context.Context, userID int64, threshold int, window time.Duration) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		update users
		set failed_attempts = failed_attempts + 1,
		    locked_until = case
		        when failed_attempts + 1 >= $2 then $3::timestamptz
		        else locked_until
		    end,
		    updated_at = now()
		where id = $1
		returning failed_attempts, locked_until
	`, userID, threshold, s.now().Add(window))

	var (
		attempts int
		locked   sql.NullTime
	)
	if err := row.Scan(&attempts, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, auth.ErrNotFound
		}
		return false, err
	}
	return locked.Valid && s.now().Before(locked.Time), nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		update users
		set failed_attempts = 0, locked_until = null, updated_at = now()
		where id = $1
	`, userID)
	return err
}

func (s *Store) CreateRole(ctx context.Context, role *auth.Role) error {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (name, display_name, description)
		values ($1, $2, $3)
		returning id, created_at, updated_at
	`, role.Name, role.DisplayName, role.Description)
	if err := row.Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, display_name, description, created_at, updated_at
		from roles
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) RolesForUser(ctx context.Context, userID int64) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.display_name, r.description, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict do nothing
	`, userID, roleID)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return auth.ErrNotFound
	}
	return err
}

func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
	return err
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, permissionNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range permissionNames {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
		`, roleID, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (name, category, description)
			values ($1, $2, $3)
			on conflict (name) do nothing
		`, p.Name, p.Category, p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, category, description, created_at
		from permissions
		order by category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.name
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

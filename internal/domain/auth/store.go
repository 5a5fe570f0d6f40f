package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	User
	PasswordHash string
}

func (s *Store) UserByID(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, first_name, last_name, organization_id, role_id, supervisor_id, status, created_at
    FROM users
    WHERE id = $1
  `, userID).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.OrganizationID, &u.RoleID, &u.SupervisorID, &u.Status, &u.CreatedAt)
	return u, err
}

func (s *Store) AuthUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var u AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, first_name, last_name, organization_id, role_id, supervisor_id, status, created_at, password_hash
    FROM users
    WHERE email = $1
  `, email).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.OrganizationID, &u.RoleID, &u.SupervisorID, &u.Status, &u.CreatedAt, &u.PasswordHash)
	return u, err
}

func (s *Store) RoleByID(ctx context.Context, roleID string) (Role, error) {
	var r Role
	var perms []string
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, is_leadership, scope_override, permissions
    FROM roles
    WHERE id = $1
  `, roleID).Scan(&r.ID, &r.Name, &r.IsLeadership, &r.ScopeOverride, &perms)
	if err != nil {
		return Role{}, err
	}
	r.Permissions = make([]Permission, 0, len(perms))
	for _, p := range perms {
		if IsKnownPermission(Permission(p)) {
			r.Permissions = append(r.Permissions, Permission(p))
		}
	}
	return r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, is_leadership, scope_override, permissions
    FROM roles
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		var perms []string
		if err := rows.Scan(&r.ID, &r.Name, &r.IsLeadership, &r.ScopeOverride, &perms); err != nil {
			return nil, err
		}
		for _, p := range perms {
			if IsKnownPermission(Permission(p)) {
				r.Permissions = append(r.Permissions, Permission(p))
			}
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) SetUserRole(ctx context.Context, userID, roleID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET role_id = $1, updated_at = now() WHERE id = $2", roleID, userID)
	return err
}

func (s *Store) SetUserStatus(ctx context.Context, userID, status string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET status = $1, updated_at = now() WHERE id = $2", status, userID)
	return err
}

func (s *Store) UpdateRolePermissions(ctx context.Context, roleID string, permissions []Permission) error {
	perms := make([]string, len(permissions))
	for i, p := range permissions {
		perms[i] = string(p)
	}
	_, err := s.DB.Exec(ctx, "UPDATE roles SET permissions = $1, updated_at = now() WHERE id = $2", perms, roleID)
	return err
}

func (s *Store) SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE supervisor_id = $1", supervisorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

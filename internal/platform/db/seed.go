package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"pms/internal/domain/auth"
	"pms/internal/domain/org"
	"pms/internal/platform/config"
)

type seedRole struct {
	isLeadership  bool
	scopeOverride string
}

var seedRoles = map[string]seedRole{
	auth.RoleStaff:           {isLeadership: false, scopeOverride: auth.ScopeOverrideNone},
	auth.RoleSupervisor:      {isLeadership: false, scopeOverride: auth.ScopeOverrideNone},
	auth.RoleDepartmentHead:  {isLeadership: true, scopeOverride: auth.ScopeOverrideNone},
	auth.RoleDirectorateHead: {isLeadership: true, scopeOverride: auth.ScopeOverrideCrossDirectorate},
	auth.RoleExecutive:       {isLeadership: true, scopeOverride: auth.ScopeOverrideGlobal},
	auth.RoleSystemAdminName: {isLeadership: true, scopeOverride: auth.ScopeOverrideGlobal},
}

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	rootOrgID, err := ensureRootOrganization(ctx, pool, cfg.SeedRootOrgName)
	if err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}

	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		slog.Info("seed admin credentials not configured, skipping admin user")
		return nil
	}
	return ensureAdminUser(ctx, pool, rootOrgID, roleIDs[auth.RoleSystemAdminName], cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureRootOrganization(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM organizations WHERE level = $1 AND parent_id IS NULL", org.LevelGlobal).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO organizations (name, level, parent_id)
    VALUES ($1, $2, NULL)
    RETURNING id
  `, name, org.LevelGlobal).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName, perms := range auth.DefaultRolePermissions {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", roleName).Scan(&id)
		if err == nil {
			roleIDs[roleName] = id
			continue
		}

		attrs := seedRoles[roleName]
		permKeys := make([]string, 0, len(perms))
		for _, p := range perms {
			permKeys = append(permKeys, string(p))
		}
		err = pool.QueryRow(ctx, `
      INSERT INTO roles (name, is_leadership, scope_override, permissions)
      VALUES ($1, $2, $3, $4)
      RETURNING id
    `, roleName, attrs.isLeadership, attrs.scopeOverride, permKeys).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, orgID, roleID, email, password string) error {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO users (email, first_name, last_name, password_hash, organization_id, role_id, status)
    VALUES ($1, 'System', 'Administrator', $2, $3, $4, $5)
  `, email, string(hash), orgID, roleID, auth.UserStatusActive)
	return err
}

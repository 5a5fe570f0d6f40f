package auth

import "context"

type StoreAPI interface {
	UserByID(ctx context.Context, userID string) (User, error)
	AuthUserByEmail(ctx context.Context, email string) (AuthUser, error)
	RoleByID(ctx context.Context, roleID string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	SetUserRole(ctx context.Context, userID, roleID string) error
	SetUserStatus(ctx context.Context, userID, status string) error
	UpdateRolePermissions(ctx context.Context, roleID string, permissions []Permission) error
	SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error)
}

package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"pms/internal/domain/org"
	"pms/internal/platform/cache"
	"pms/internal/platform/clock"
)

// Hierarchy is the slice of the organization resolver the permission
// engine needs.
type Hierarchy interface {
	Get(ctx context.Context, orgID string) (org.Organization, error)
	Descendants(ctx context.Context, orgID string) (map[string]bool, error)
	DirectorateOf(ctx context.Context, orgID string) (string, error)
	AllOrganizationIDs(ctx context.Context) ([]string, error)
}

type Service struct {
	store StoreAPI
	orgs  Hierarchy
	cache *cache.Permissions[Effective]
	clock clock.Clock
}

func NewService(store StoreAPI, orgs Hierarchy, permCache *cache.Permissions[Effective], clk clock.Clock) *Service {
	return &Service{store: store, orgs: orgs, cache: permCache, clock: clk}
}

func (s *Service) UserByID(ctx context.Context, userID string) (User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// Login verifies credentials and returns the user for token issuance.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	authUser, err := s.store.AuthUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(authUser.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if authUser.User.Status != UserStatusActive {
		return User{}, ErrUserNotActive
	}
	return authUser.User, nil
}

// EffectivePermissions computes the permission set, resolved scope and
// leadership flag for a user. Results are cached per user; mutation
// call sites invalidate explicitly.
func (s *Service) EffectivePermissions(ctx context.Context, user User) (Effective, error) {
	now := s.clock.Now()
	if s.cache != nil {
		if eff, ok := s.cache.Get(user.ID, now); ok {
			return eff, nil
		}
	}

	role, err := s.store.RoleByID(ctx, user.RoleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Effective{}, ErrNotFound
	}
	if err != nil {
		return Effective{}, err
	}

	eff := Effective{
		Permissions:  make(map[Permission]bool, len(role.Permissions)),
		IsLeadership: role.IsLeadership,
	}
	for _, p := range role.Permissions {
		eff.Permissions[p] = true
	}

	switch role.ScopeOverride {
	case ScopeOverrideGlobal:
		eff.Scope = ScopeGlobal
	case ScopeOverrideCrossDirectorate:
		eff.Scope = ScopeCrossDirectorate
	default:
		if role.IsLeadership {
			eff.Scope = ScopeOrg
		} else {
			eff.Scope = ScopeOwn
		}
	}

	if s.cache != nil {
		s.cache.Set(user.ID, user.RoleID, eff, now)
	}
	return eff, nil
}

func (s *Service) HasPermission(ctx context.Context, user User, permission Permission) (bool, error) {
	if !IsKnownPermission(permission) {
		return false, ErrUnknownPermission
	}
	eff, err := s.EffectivePermissions(ctx, user)
	if err != nil {
		return false, err
	}
	return eff.Has(permission), nil
}

// HasPermissionByID is the form used by HTTP middleware, where only the
// acting user id is at hand.
func (s *Service) HasPermissionByID(ctx context.Context, userID string, permission Permission) (bool, error) {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.HasPermission(ctx, user, permission)
}

// CanAccessOrganization reports whether user may see or act on records
// scoped to targetOrgID. A missing target organization is a
// data-integrity error surfaced to the caller, never silent denial.
func (s *Service) CanAccessOrganization(ctx context.Context, user User, targetOrgID string) (bool, error) {
	target, err := s.orgs.Get(ctx, targetOrgID)
	if err != nil {
		return false, err
	}

	eff, err := s.EffectivePermissions(ctx, user)
	if err != nil {
		return false, err
	}

	switch eff.Scope {
	case ScopeGlobal:
		return true, nil
	case ScopeCrossDirectorate:
		userDir, err := s.orgs.DirectorateOf(ctx, user.OrganizationID)
		if err != nil {
			return false, err
		}
		targetDir, err := s.orgs.DirectorateOf(ctx, target.ID)
		if err != nil {
			return false, err
		}
		return userDir != "" && userDir == targetDir, nil
	default:
		descendants, err := s.orgs.Descendants(ctx, user.OrganizationID)
		if err != nil {
			return false, err
		}
		return descendants[target.ID], nil
	}
}

// AccessibleOrganizations returns every organization id within the
// user's effective scope.
func (s *Service) AccessibleOrganizations(ctx context.Context, user User) (map[string]bool, error) {
	eff, err := s.EffectivePermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	switch eff.Scope {
	case ScopeGlobal:
		ids, err := s.orgs.AllOrganizationIDs(ctx)
		if err != nil {
			return nil, err
		}
		result := make(map[string]bool, len(ids))
		for _, id := range ids {
			result[id] = true
		}
		return result, nil
	case ScopeCrossDirectorate:
		dir, err := s.orgs.DirectorateOf(ctx, user.OrganizationID)
		if err != nil {
			return nil, err
		}
		if dir == "" {
			// No directorate ancestor: fall back to the user's own subtree.
			return s.orgs.Descendants(ctx, user.OrganizationID)
		}
		return s.orgs.Descendants(ctx, dir)
	default:
		return s.orgs.Descendants(ctx, user.OrganizationID)
	}
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error) {
	return s.store.SuperviseeIDs(ctx, supervisorID)
}

// SetUserRole mutates a user's role and invalidates the cached
// permission set.
func (s *Service) SetUserRole(ctx context.Context, userID, roleID string) error {
	if _, err := s.store.RoleByID(ctx, roleID); errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if err := s.store.SetUserRole(ctx, userID, roleID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateUser(userID)
	}
	return nil
}

func (s *Service) SetUserStatus(ctx context.Context, userID, status string) error {
	if err := s.store.SetUserStatus(ctx, userID, status); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateUser(userID)
	}
	return nil
}

// UpdateRolePermissions replaces a role's permission set, rejecting
// permissions outside the closed enumeration, and evicts every cached
// holder of the role.
func (s *Service) UpdateRolePermissions(ctx context.Context, roleID string, permissions []Permission) error {
	for _, p := range permissions {
		if !IsKnownPermission(p) {
			return ErrUnknownPermission
		}
	}
	if err := s.store.UpdateRolePermissions(ctx, roleID, permissions); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateRole(roleID)
	}
	return nil
}

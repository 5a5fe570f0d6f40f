package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"pms/internal/domain/org"
	"pms/internal/platform/cache"
	"pms/internal/platform/clock"
)

type fakeStore struct {
	users map[string]User
	roles map[string]Role
}

func (f *fakeStore) UserByID(ctx context.Context, userID string) (User, error) {
	u, ok := f.users[userID]
	if !ok {
		return User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) AuthUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return AuthUser{}, pgx.ErrNoRows
}

func (f *fakeStore) RoleByID(ctx context.Context, roleID string) (Role, error) {
	r, ok := f.roles[roleID]
	if !ok {
		return Role{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) ListRoles(ctx context.Context) ([]Role, error) { return nil, nil }

func (f *fakeStore) SetUserRole(ctx context.Context, userID, roleID string) error {
	u := f.users[userID]
	u.RoleID = roleID
	f.users[userID] = u
	return nil
}

func (f *fakeStore) SetUserStatus(ctx context.Context, userID, status string) error { return nil }

func (f *fakeStore) UpdateRolePermissions(ctx context.Context, roleID string, permissions []Permission) error {
	r := f.roles[roleID]
	r.Permissions = permissions
	f.roles[roleID] = r
	return nil
}

func (f *fakeStore) SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error) {
	return nil, nil
}

// fakeHierarchy models Global -> dirA -> deptA -> unitA and
// Global -> dirB -> unitB.
type fakeHierarchy struct{}

var hierarchyParents = map[string]string{
	"dirA":  "global",
	"dirB":  "global",
	"deptA": "dirA",
	"unitA": "deptA",
	"unitB": "dirB",
}

func (fakeHierarchy) Get(ctx context.Context, orgID string) (org.Organization, error) {
	if orgID != "global" {
		if _, ok := hierarchyParents[orgID]; !ok {
			return org.Organization{}, org.ErrNotFound
		}
	}
	return org.Organization{ID: orgID}, nil
}

func (fakeHierarchy) Descendants(ctx context.Context, orgID string) (map[string]bool, error) {
	result := map[string]bool{orgID: true}
	changed := true
	for changed {
		changed = false
		for child, parent := range hierarchyParents {
			if result[parent] && !result[child] {
				result[child] = true
				changed = true
			}
		}
	}
	return result, nil
}

func (fakeHierarchy) DirectorateOf(ctx context.Context, orgID string) (string, error) {
	current := orgID
	for {
		if current == "dirA" || current == "dirB" {
			return current, nil
		}
		parent, ok := hierarchyParents[current]
		if !ok {
			return "", nil
		}
		current = parent
	}
}

func (fakeHierarchy) AllOrganizationIDs(ctx context.Context) ([]string, error) {
	return []string{"global", "dirA", "dirB", "deptA", "unitA", "unitB"}, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, fakeHierarchy{}, nil, clock.Fixed(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEffectivePermissionsScopeDefaults(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitA", RoleID: "staff"}},
		roles: map[string]Role{
			"staff": {ID: "staff", ScopeOverride: ScopeOverrideNone, Permissions: []Permission{PermGoalProgressUpdate}},
			"lead":  {ID: "lead", ScopeOverride: ScopeOverrideNone, IsLeadership: true},
		},
	}
	svc := newTestService(store)

	eff, err := svc.EffectivePermissions(context.Background(), store.users["u1"])
	if err != nil {
		t.Fatalf("effective permissions failed: %v", err)
	}
	if eff.Scope != ScopeOwn {
		t.Fatalf("expected OWN scope, got %s", eff.Scope)
	}
	if !eff.Has(PermGoalProgressUpdate) || eff.Has(PermGoalFreeze) {
		t.Fatalf("unexpected permission set: %+v", eff.Permissions)
	}

	leader := User{ID: "u2", OrganizationID: "deptA", RoleID: "lead"}
	eff, err = svc.EffectivePermissions(context.Background(), leader)
	if err != nil {
		t.Fatalf("effective permissions failed: %v", err)
	}
	if eff.Scope != ScopeOrg || !eff.IsLeadership {
		t.Fatalf("expected ORG leadership scope, got %+v", eff)
	}
}

func TestSuperuserBypassesEveryCheck(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"admin": {ID: "admin", OrganizationID: "global", RoleID: "sys"}},
		roles: map[string]Role{"sys": {ID: "sys", ScopeOverride: ScopeOverrideGlobal, Permissions: []Permission{PermSystemAdmin}}},
	}
	svc := newTestService(store)

	for _, p := range AllPermissions {
		ok, err := svc.HasPermission(context.Background(), store.users["admin"], p)
		if err != nil {
			t.Fatalf("permission check failed: %v", err)
		}
		if !ok {
			t.Fatalf("superuser should hold %s", p)
		}
	}
}

func TestHasPermissionRejectsUnknown(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", RoleID: "staff", OrganizationID: "unitA"}},
		roles: map[string]Role{"staff": {ID: "staff"}},
	}
	svc := newTestService(store)

	if _, err := svc.HasPermission(context.Background(), store.users["u1"], Permission("made_up")); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestCrossDirectorateAccess(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitA", RoleID: "xdir"}},
		roles: map[string]Role{"xdir": {ID: "xdir", ScopeOverride: ScopeOverrideCrossDirectorate}},
	}
	svc := newTestService(store)
	user := store.users["u1"]

	ok, err := svc.CanAccessOrganization(context.Background(), user, "deptA")
	if err != nil {
		t.Fatalf("access check failed: %v", err)
	}
	if !ok {
		t.Fatal("same-directorate organization should be accessible")
	}

	ok, err = svc.CanAccessOrganization(context.Background(), user, "unitB")
	if err != nil {
		t.Fatalf("access check failed: %v", err)
	}
	if ok {
		t.Fatal("organization under a different directorate must not be accessible")
	}
}

func TestOwnScopeAccessibleOrganizations(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitA", RoleID: "staff"}},
		roles: map[string]Role{"staff": {ID: "staff", ScopeOverride: ScopeOverrideNone}},
	}
	svc := newTestService(store)

	orgs, err := svc.AccessibleOrganizations(context.Background(), store.users["u1"])
	if err != nil {
		t.Fatalf("accessible organizations failed: %v", err)
	}
	if len(orgs) != 1 || !orgs["unitA"] {
		t.Fatalf("expected {unitA}, got %v", orgs)
	}
}

func TestGlobalScopeSeesAllOrganizations(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitB", RoleID: "exec"}},
		roles: map[string]Role{"exec": {ID: "exec", ScopeOverride: ScopeOverrideGlobal}},
	}
	svc := newTestService(store)

	orgs, err := svc.AccessibleOrganizations(context.Background(), store.users["u1"])
	if err != nil {
		t.Fatalf("accessible organizations failed: %v", err)
	}
	if len(orgs) != 6 {
		t.Fatalf("expected all 6 organizations, got %v", orgs)
	}
}

func TestMissingTargetOrganizationIsNotFound(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitA", RoleID: "staff"}},
		roles: map[string]Role{"staff": {ID: "staff", ScopeOverride: ScopeOverrideGlobal}},
	}
	svc := newTestService(store)

	if _, err := svc.CanAccessOrganization(context.Background(), store.users["u1"], "missing"); !errors.Is(err, org.ErrNotFound) {
		t.Fatalf("expected org.ErrNotFound, got %v", err)
	}
}

func TestRoleMutationInvalidatesCache(t *testing.T) {
	store := &fakeStore{
		users: map[string]User{"u1": {ID: "u1", OrganizationID: "unitA", RoleID: "staff"}},
		roles: map[string]Role{"staff": {ID: "staff", Permissions: []Permission{PermGoalProgressUpdate}}},
	}
	permCache := cache.NewPermissions[Effective](time.Hour)
	svc := NewService(store, fakeHierarchy{}, permCache, clock.Fixed(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	user := store.users["u1"]
	if ok, _ := svc.HasPermission(context.Background(), user, PermGoalFreeze); ok {
		t.Fatal("staff should not hold goals.freeze yet")
	}

	if err := svc.UpdateRolePermissions(context.Background(), "staff", []Permission{PermGoalProgressUpdate, PermGoalFreeze}); err != nil {
		t.Fatalf("role update failed: %v", err)
	}

	ok, err := svc.HasPermission(context.Background(), user, PermGoalFreeze)
	if err != nil {
		t.Fatalf("permission check failed: %v", err)
	}
	if !ok {
		t.Fatal("cache should have been invalidated by the role mutation")
	}
}

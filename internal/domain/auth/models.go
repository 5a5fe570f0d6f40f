package auth

import "time"

const (
	UserStatusActive    = "ACTIVE"
	UserStatusSuspended = "SUSPENDED"
	UserStatusArchived  = "ARCHIVED"
)

const (
	ScopeOverrideNone             = "NONE"
	ScopeOverrideGlobal           = "GLOBAL"
	ScopeOverrideCrossDirectorate = "CROSS_DIRECTORATE"
)

// EffectiveScope is the resolved visibility of a user after combining
// role scope-override with their organization placement.
type EffectiveScope string

const (
	ScopeOwn              EffectiveScope = "OWN"
	ScopeOrg              EffectiveScope = "ORG"
	ScopeCrossDirectorate EffectiveScope = "CROSS_DIRECTORATE"
	ScopeGlobal           EffectiveScope = "GLOBAL"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	OrganizationID string    `json:"organizationId"`
	RoleID         string    `json:"roleId"`
	SupervisorID   *string   `json:"supervisorId,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Role struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	IsLeadership  bool         `json:"isLeadership"`
	ScopeOverride string       `json:"scopeOverride"`
	Permissions   []Permission `json:"permissions"`
}

// Effective is the computed permission set for one user.
type Effective struct {
	Permissions  map[Permission]bool
	Scope        EffectiveScope
	IsLeadership bool
}

func (e Effective) Has(p Permission) bool {
	if e.Permissions[PermSystemAdmin] {
		return true
	}
	return e.Permissions[p]
}

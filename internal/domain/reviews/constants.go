package reviews

type TraitScope string

const (
	ScopeGlobal       TraitScope = "GLOBAL"
	ScopeOrganization TraitScope = "ORGANIZATION"
)

type ReviewType string

const (
	TypeSelf       ReviewType = "SELF"
	TypePeer       ReviewType = "PEER"
	TypeSupervisor ReviewType = "SUPERVISOR"
)

type CycleStatus string

const (
	CycleDraft  CycleStatus = "DRAFT"
	CycleActive CycleStatus = "ACTIVE"
	CycleClosed CycleStatus = "CLOSED"
)

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

const (
	MinRating = 1
	MaxRating = 10
)

// Weighted trait score blend.
const (
	weightSelf       = 0.2
	weightPeer       = 0.3
	weightSupervisor = 0.5
)

// Overall performance blend.
const (
	weightReview = 0.5
	weightTask   = 0.3
	weightGoal   = 0.2
)

func ValidReviewType(t ReviewType) bool {
	switch t {
	case TypeSelf, TypePeer, TypeSupervisor:
		return true
	}
	return false
}

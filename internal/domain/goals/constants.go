package goals

type GoalType string

const (
	TypeYearly       GoalType = "YEARLY"
	TypeQuarterly    GoalType = "QUARTERLY"
	TypeDepartmental GoalType = "DEPARTMENTAL"
	TypeIndividual   GoalType = "INDIVIDUAL"
)

type GoalStatus string

const (
	StatusPendingApproval GoalStatus = "PENDING_APPROVAL"
	StatusActive          GoalStatus = "ACTIVE"
	StatusAchieved        GoalStatus = "ACHIEVED"
	StatusDiscarded       GoalStatus = "DISCARDED"
	StatusRejected        GoalStatus = "REJECTED"
)

type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

// allowedChildTypes is the parent-child compatibility table. Types not
// listed accept no children.
var allowedChildTypes = map[GoalType][]GoalType{
	TypeYearly:    {TypeQuarterly, TypeDepartmental},
	TypeQuarterly: {TypeDepartmental},
}

// maxCascadeDepth bounds upward walks over the goal tree. The tree is
// acyclic by construction; hitting the bound means corrupt data.
const maxCascadeDepth = 32

func ValidGoalType(t GoalType) bool {
	switch t {
	case TypeYearly, TypeQuarterly, TypeDepartmental, TypeIndividual:
		return true
	}
	return false
}

func ValidQuarter(q Quarter) bool {
	switch q {
	case Q1, Q2, Q3, Q4:
		return true
	}
	return false
}

// ChildTypeAllowed reports whether a goal of childType may hang under a
// parent of parentType. A nil parent is always valid and not checked
// here.
func ChildTypeAllowed(parentType, childType GoalType) bool {
	for _, t := range allowedChildTypes[parentType] {
		if t == childType {
			return true
		}
	}
	return false
}

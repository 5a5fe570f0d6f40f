package goals

import "time"

type Goal struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Type               GoalType   `json:"type"`
	Status             GoalStatus `json:"status"`
	ProgressPercentage float64    `json:"progressPercentage"`
	ParentID           *string    `json:"parentId,omitempty"`
	OwnerID            string     `json:"ownerId"`
	CreatorID          string     `json:"creatorId"`
	OrganizationID     string     `json:"organizationId"`
	Quarter            *Quarter   `json:"quarter,omitempty"`
	Year               *int       `json:"year,omitempty"`
	StartDate          *time.Time `json:"startDate,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	Frozen             bool       `json:"frozen"`
	FrozenAt           *time.Time `json:"frozenAt,omitempty"`
	FrozenBy           *string    `json:"frozenBy,omitempty"`
	ApprovedBy         *string    `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	RejectionReason    *string    `json:"rejectionReason,omitempty"`
	AchievedAt         *time.Time `json:"achievedAt,omitempty"`
	DiscardedAt        *time.Time `json:"discardedAt,omitempty"`
	DiscardReason      *string    `json:"discardReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ProgressReport is an append-only audit entry for one manual progress
// update.
type ProgressReport struct {
	ID            string    `json:"id"`
	GoalID        string    `json:"goalId"`
	OldPercentage float64   `json:"oldPercentage"`
	NewPercentage float64   `json:"newPercentage"`
	Report        string    `json:"report"`
	UpdatedBy     string    `json:"updatedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CreateGoalInput struct {
	Title          string
	Description    string
	Type           GoalType
	ParentID       *string
	OwnerID        string
	OrganizationID string
	Quarter        *Quarter
	Year           *int
	StartDate      *time.Time
	EndDate        *time.Time
}

type ListFilter struct {
	Type           GoalType
	Status         GoalStatus
	OwnerID        string
	OrganizationID string
	ParentID       string
	Quarter        Quarter
	Year           int
	RootOnly       bool
}

// Node is one goal with its resolved subtree, for hierarchy views.
type Node struct {
	Goal     Goal    `json:"goal"`
	Children []*Node `json:"children"`
}

type Stats struct {
	Total           int                `json:"total"`
	ByType          map[GoalType]int   `json:"byType"`
	ByStatus        map[GoalStatus]int `json:"byStatus"`
	AverageProgress float64            `json:"averageProgress"`
	Overdue         int                `json:"overdue"`
}

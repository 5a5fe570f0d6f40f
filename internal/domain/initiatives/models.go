package initiatives

import "time"

type Initiative struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Type           InitiativeType   `json:"type"`
	Urgency        Urgency          `json:"urgency"`
	Status         InitiativeStatus `json:"status"`
	DueDate        time.Time        `json:"dueDate"`
	Score          *float64         `json:"score,omitempty"`
	Feedback       *string          `json:"feedback,omitempty"`
	ReviewedAt     *time.Time       `json:"reviewedAt,omitempty"`
	CreatorID      string           `json:"creatorId"`
	OrganizationID string           `json:"organizationId"`
	TeamHeadID     *string          `json:"teamHeadId,omitempty"`
	GoalID         *string          `json:"goalId,omitempty"`
	Documents      []string         `json:"documents,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Submission rows are append-only: a resubmission after a redo review
// creates a new row.
type Submission struct {
	ID           string    `json:"id"`
	InitiativeID string    `json:"initiativeId"`
	SubmittedBy  string    `json:"submittedBy"`
	Report       string    `json:"report"`
	Documents    []string  `json:"documents,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Extension struct {
	ID           string          `json:"id"`
	InitiativeID string          `json:"initiativeId"`
	RequestedBy  string          `json:"requestedBy"`
	ReviewedBy   *string         `json:"reviewedBy,omitempty"`
	NewDueDate   time.Time       `json:"newDueDate"`
	Reason       string          `json:"reason"`
	Status       ExtensionStatus `json:"status"`
	ReviewNote   *string         `json:"reviewNote,omitempty"`
	ReviewedAt   *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type CreateInitiativeInput struct {
	Title       string
	Description string
	Type        InitiativeType
	Urgency     Urgency
	DueDate     time.Time
	AssigneeIDs []string
	TeamHeadID  *string
	GoalID      *string
	Documents   []string
}

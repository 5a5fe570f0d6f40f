package reviews

import "time"

type Trait struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Scope          TraitScope `json:"scope"`
	OrganizationID *string    `json:"organizationId,omitempty"`
	DisplayOrder   int        `json:"displayOrder"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type Question struct {
	ID            string `json:"id"`
	TraitID       string `json:"traitId"`
	Text          string `json:"text"`
	ForSelf       bool   `json:"forSelf"`
	ForPeer       bool   `json:"forPeer"`
	ForSupervisor bool   `json:"forSupervisor"`
	IsActive      bool   `json:"isActive"`
}

func (q Question) AppliesTo(t ReviewType) bool {
	switch t {
	case TypeSelf:
		return q.ForSelf
	case TypePeer:
		return q.ForPeer
	case TypeSupervisor:
		return q.ForSupervisor
	}
	return false
}

type Cycle struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	StartDate         time.Time   `json:"startDate"`
	EndDate           time.Time   `json:"endDate"`
	Status            CycleStatus `json:"status"`
	SelfEnabled       bool        `json:"selfEnabled"`
	PeerEnabled       bool        `json:"peerEnabled"`
	SupervisorEnabled bool        `json:"supervisorEnabled"`
	PeerCount         int         `json:"peerCount"`
	CreatedAt         time.Time   `json:"createdAt"`
}

func (c Cycle) TypeEnabled(t ReviewType) bool {
	switch t {
	case TypeSelf:
		return c.SelfEnabled
	case TypePeer:
		return c.PeerEnabled
	case TypeSupervisor:
		return c.SupervisorEnabled
	}
	return false
}

type Assignment struct {
	ID         string           `json:"id"`
	CycleID    string           `json:"cycleId"`
	ReviewerID string           `json:"reviewerId"`
	RevieweeID string           `json:"revieweeId"`
	Type       ReviewType       `json:"type"`
	Status     AssignmentStatus `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type Response struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	QuestionID   string    `json:"questionId"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TraitScore is the per-user, per-trait, per-cycle aggregate. A
// component is nil when that review type produced no responses;
// Weighted is nil only when all three are absent.
type TraitScore struct {
	UserID          string   `json:"userId"`
	TraitID         string   `json:"traitId"`
	CycleID         string   `json:"cycleId"`
	SelfScore       *float64 `json:"selfScore,omitempty"`
	PeerScore       *float64 `json:"peerScore,omitempty"`
	SupervisorScore *float64 `json:"supervisorScore,omitempty"`
	Weighted        *float64 `json:"weightedScore,omitempty"`
}

type PerformanceScore struct {
	UserID      string   `json:"userId"`
	CycleID     string   `json:"cycleId"`
	TaskScore   *float64 `json:"taskScore,omitempty"`
	ReviewScore *float64 `json:"reviewScore,omitempty"`
	GoalScore   *float64 `json:"goalScore,omitempty"`
	Overall     *float64 `json:"overallScore,omitempty"`
}

type CreateCycleInput struct {
	Name              string
	StartDate         time.Time
	EndDate           time.Time
	SelfEnabled       bool
	PeerEnabled       bool
	SupervisorEnabled bool
	PeerCount         int
}

type CreateTraitInput struct {
	Name           string
	Description    string
	Scope          TraitScope
	OrganizationID *string
	DisplayOrder   int
}

type ResponseInput struct {
	QuestionID string
	Rating     int
	Comment    string
}

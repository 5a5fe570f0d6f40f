package initiatives

import (
	"context"
	"time"
)

type StoreAPI interface {
	InitiativeByID(ctx context.Context, initiativeID string) (Initiative, error)
	AssigneeIDs(ctx context.Context, initiativeID string) ([]string, error)
	CreateInitiative(ctx context.Context, initiative Initiative, assigneeIDs []string) error
	SetStatus(ctx context.Context, initiativeID string, from, to InitiativeStatus) (bool, error)
	SetReview(ctx context.Context, initiativeID string, score float64, feedback string, at time.Time, status InitiativeStatus) error
	InsertSubmission(ctx context.Context, submission Submission) error
	Submissions(ctx context.Context, initiativeID string) ([]Submission, error)
	PendingExtension(ctx context.Context, initiativeID string) (Extension, error)
	ExtensionByID(ctx context.Context, extensionID string) (Extension, error)
	CreateExtension(ctx context.Context, extension Extension) error
	ApproveExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error
	DenyExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error
	InitiativesInvolving(ctx context.Context, userID string) ([]Initiative, error)
	InitiativesByOrganizations(ctx context.Context, orgIDs []string) ([]Initiative, error)
	OverdueCandidates(ctx context.Context, now time.Time) ([]Initiative, error)
	AverageApprovedScore(ctx context.Context, userID string) (float64, int, error)
}

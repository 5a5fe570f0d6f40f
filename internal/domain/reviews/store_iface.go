package reviews

import "context"

type StoreAPI interface {
	TraitByID(ctx context.Context, traitID string) (Trait, error)
	CreateTrait(ctx context.Context, trait Trait) error
	ActiveTraits(ctx context.Context) ([]Trait, error)
	QuestionByID(ctx context.Context, questionID string) (Question, error)
	CreateQuestion(ctx context.Context, question Question) error
	QuestionsForTrait(ctx context.Context, traitID string) ([]Question, error)

	CycleByID(ctx context.Context, cycleID string) (Cycle, error)
	CreateCycle(ctx context.Context, cycle Cycle) error
	ListCycles(ctx context.Context) ([]Cycle, error)
	SetCycleStatus(ctx context.Context, cycleID string, from, to CycleStatus) (bool, error)

	AssignmentByID(ctx context.Context, assignmentID string) (Assignment, error)
	CreateAssignment(ctx context.Context, assignment Assignment) error
	AssignmentsForReviewer(ctx context.Context, cycleID, reviewerID string) ([]Assignment, error)
	AssignmentsForReviewee(ctx context.Context, cycleID, revieweeID string) ([]Assignment, error)
	CompleteAssignment(ctx context.Context, assignmentID string) error

	InsertResponse(ctx context.Context, response Response) error
	ResponseExists(ctx context.Context, assignmentID, questionID string) (bool, error)
	ResponsesForReviewee(ctx context.Context, cycleID, revieweeID string) ([]ResponseDetail, error)

	UpsertTraitScore(ctx context.Context, score TraitScore) error
	TraitScores(ctx context.Context, cycleID, userID string) ([]TraitScore, error)
	UpsertPerformanceScore(ctx context.Context, score PerformanceScore) error
	PerformanceScoreFor(ctx context.Context, cycleID, userID string) (PerformanceScore, error)

	ActiveUsersByOrganizations(ctx context.Context, orgIDs []string) ([]string, error)
	AllActiveUsers(ctx context.Context) ([]string, error)
}

// ResponseDetail joins a response with the assignment type and the
// question's trait, the shape score computation consumes.
type ResponseDetail struct {
	Rating     int
	ReviewType ReviewType
	TraitID    string
}

package goals

import (
	"context"
	"time"
)

type StoreAPI interface {
	GoalByID(ctx context.Context, goalID string) (Goal, error)
	ChildGoals(ctx context.Context, parentID string) ([]Goal, error)
	ListGoals(ctx context.Context, filter ListFilter) ([]Goal, error)
	CreateGoal(ctx context.Context, goal Goal) error
	SetProgress(ctx context.Context, goalID string, progress float64) error
	MarkAchieved(ctx context.Context, goalID string, at time.Time) error
	MarkDiscarded(ctx context.Context, goalID, reason string, at time.Time) error
	SetApproval(ctx context.Context, goalID string, status GoalStatus, actorID string, at time.Time, rejectionReason string) error
	FreezeIndividualGoals(ctx context.Context, quarter Quarter, year int, actorID string, at time.Time) (int, error)
	InsertProgressReport(ctx context.Context, report ProgressReport) error
	ProgressReports(ctx context.Context, goalID string) ([]ProgressReport, error)
}

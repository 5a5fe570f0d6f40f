package goals

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const goalColumns = `
  id, title, COALESCE(description, ''), goal_type, status, progress_percentage,
  parent_goal_id, owner_id, creator_id, organization_id, quarter, year,
  start_date, end_date, frozen, frozen_at, frozen_by, approved_by, approved_at,
  rejection_reason, achieved_at, discarded_at, discard_reason, created_at`

func scanGoal(row pgx.Row) (Goal, error) {
	var g Goal
	err := row.Scan(
		&g.ID, &g.Title, &g.Description, &g.Type, &g.Status, &g.ProgressPercentage,
		&g.ParentID, &g.OwnerID, &g.CreatorID, &g.OrganizationID, &g.Quarter, &g.Year,
		&g.StartDate, &g.EndDate, &g.Frozen, &g.FrozenAt, &g.FrozenBy, &g.ApprovedBy, &g.ApprovedAt,
		&g.RejectionReason, &g.AchievedAt, &g.DiscardedAt, &g.DiscardReason, &g.CreatedAt,
	)
	return g, err
}

func (s *Store) GoalByID(ctx context.Context, goalID string) (Goal, error) {
	return scanGoal(s.DB.QueryRow(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = $1", goalID))
}

func (s *Store) ChildGoals(ctx context.Context, parentID string) ([]Goal, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+goalColumns+" FROM goals WHERE parent_goal_id = $1 ORDER BY created_at", parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGoals(rows)
}

func (s *Store) ListGoals(ctx context.Context, filter ListFilter) ([]Goal, error) {
	query := "SELECT " + goalColumns + " FROM goals WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Type != "" {
		query += " AND goal_type = " + arg(string(filter.Type))
	}
	if filter.Status != "" {
		query += " AND status = " + arg(string(filter.Status))
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = " + arg(filter.OwnerID)
	}
	if filter.OrganizationID != "" {
		query += " AND organization_id = " + arg(filter.OrganizationID)
	}
	if filter.ParentID != "" {
		query += " AND parent_goal_id = " + arg(filter.ParentID)
	}
	if filter.Quarter != "" {
		query += " AND quarter = " + arg(string(filter.Quarter))
	}
	if filter.Year != 0 {
		query += " AND year = " + arg(filter.Year)
	}
	if filter.RootOnly {
		query += " AND parent_goal_id IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGoals(rows)
}

func (s *Store) CreateGoal(ctx context.Context, goal Goal) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO goals (
      id, title, description, goal_type, status, progress_percentage,
      parent_goal_id, owner_id, creator_id, organization_id,
      quarter, year, start_date, end_date, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
  `, goal.ID, goal.Title, goal.Description, goal.Type, goal.Status, goal.ProgressPercentage,
		goal.ParentID, goal.OwnerID, goal.CreatorID, goal.OrganizationID,
		goal.Quarter, goal.Year, goal.StartDate, goal.EndDate, goal.CreatedAt)
	return err
}

func (s *Store) SetProgress(ctx context.Context, goalID string, progress float64) error {
	_, err := s.DB.Exec(ctx, "UPDATE goals SET progress_percentage = $2 WHERE id = $1", goalID, progress)
	return err
}

func (s *Store) MarkAchieved(ctx context.Context, goalID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE goals SET status = $2, progress_percentage = 100, achieved_at = $3
    WHERE id = $1 AND status = $4
  `, goalID, StatusAchieved, at, StatusActive)
	return err
}

func (s *Store) MarkDiscarded(ctx context.Context, goalID, reason string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE goals SET status = $2, discard_reason = $3, discarded_at = $4
    WHERE id = $1 AND status = $5
  `, goalID, StatusDiscarded, reason, at, StatusActive)
	return err
}

func (s *Store) SetApproval(ctx context.Context, goalID string, status GoalStatus, actorID string, at time.Time, rejectionReason string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE goals SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5
    WHERE id = $1 AND status = $6
  `, goalID, status, actorID, at, nullIfEmpty(rejectionReason), StatusPendingApproval)
	return err
}

func (s *Store) FreezeIndividualGoals(ctx context.Context, quarter Quarter, year int, actorID string, at time.Time) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE goals SET frozen = TRUE, frozen_at = $3, frozen_by = $4
    WHERE goal_type = $5 AND quarter = $1 AND year = $2 AND frozen = FALSE
  `, quarter, year, at, actorID, TypeIndividual)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) InsertProgressReport(ctx context.Context, report ProgressReport) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO goal_progress_reports (id, goal_id, old_percentage, new_percentage, report, updated_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, report.ID, report.GoalID, report.OldPercentage, report.NewPercentage, report.Report, report.UpdatedBy, report.CreatedAt)
	return err
}

func (s *Store) ProgressReports(ctx context.Context, goalID string) ([]ProgressReport, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, goal_id, old_percentage, new_percentage, report, updated_by, created_at
    FROM goal_progress_reports
    WHERE goal_id = $1
    ORDER BY created_at DESC
  `, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProgressReport
	for rows.Next() {
		var r ProgressReport
		if err := rows.Scan(&r.ID, &r.GoalID, &r.OldPercentage, &r.NewPercentage, &r.Report, &r.UpdatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectGoals(rows pgx.Rows) ([]Goal, error) {
	var out []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

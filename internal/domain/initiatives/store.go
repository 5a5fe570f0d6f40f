package initiatives

import (
	"context"
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

const initiativeColumns = `
  id, title, COALESCE(description, ''), initiative_type, urgency, status, due_date,
  score, feedback, reviewed_at, creator_id, organization_id, team_head_id, goal_id,
  COALESCE(documents, '{}'), created_at`

func scanInitiative(row pgx.Row) (Initiative, error) {
	var i Initiative
	err := row.Scan(
		&i.ID, &i.Title, &i.Description, &i.Type, &i.Urgency, &i.Status, &i.DueDate,
		&i.Score, &i.Feedback, &i.ReviewedAt, &i.CreatorID, &i.OrganizationID, &i.TeamHeadID, &i.GoalID,
		&i.Documents, &i.CreatedAt,
	)
	return i, err
}

func (s *Store) InitiativeByID(ctx context.Context, initiativeID string) (Initiative, error) {
	return scanInitiative(s.DB.QueryRow(ctx, "SELECT "+initiativeColumns+" FROM initiatives WHERE id = $1", initiativeID))
}

func (s *Store) AssigneeIDs(ctx context.Context, initiativeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT user_id FROM initiative_assignments WHERE initiative_id = $1", initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateInitiative writes the initiative and its assignment rows in
// one transaction.
func (s *Store) CreateInitiative(ctx context.Context, initiative Initiative, assigneeIDs []string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
    INSERT INTO initiatives (
      id, title, description, initiative_type, urgency, status, due_date,
      creator_id, organization_id, team_head_id, goal_id, documents, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, initiative.ID, initiative.Title, initiative.Description, initiative.Type, initiative.Urgency,
		initiative.Status, initiative.DueDate, initiative.CreatorID, initiative.OrganizationID,
		initiative.TeamHeadID, initiative.GoalID, initiative.Documents, initiative.CreatedAt); err != nil {
		return err
	}
	for _, userID := range assigneeIDs {
		if _, err := tx.Exec(ctx, `
      INSERT INTO initiative_assignments (initiative_id, user_id) VALUES ($1,$2)
    `, initiative.ID, userID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetStatus is a guarded transition; it reports whether the row moved.
func (s *Store) SetStatus(ctx context.Context, initiativeID string, from, to InitiativeStatus) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE initiatives SET status = $3 WHERE id = $1 AND status = $2
  `, initiativeID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetReview(ctx context.Context, initiativeID string, score float64, feedback string, at time.Time, status InitiativeStatus) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE initiatives SET status = $2, score = $3, feedback = $4, reviewed_at = $5
    WHERE id = $1 AND status = $6
  `, initiativeID, status, score, feedback, at, StatusPendingReview)
	return err
}

func (s *Store) InsertSubmission(ctx context.Context, submission Submission) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO initiative_submissions (id, initiative_id, submitted_by, report, documents, created_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, submission.ID, submission.InitiativeID, submission.SubmittedBy, submission.Report, submission.Documents, submission.CreatedAt)
	return err
}

func (s *Store) Submissions(ctx context.Context, initiativeID string) ([]Submission, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, initiative_id, submitted_by, report, COALESCE(documents, '{}'), created_at
    FROM initiative_submissions
    WHERE initiative_id = $1
    ORDER BY created_at DESC
  `, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.InitiativeID, &sub.SubmittedBy, &sub.Report, &sub.Documents, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

const extensionColumns = `
  id, initiative_id, requested_by, reviewed_by, new_due_date, reason, status,
  review_note, reviewed_at, created_at`

func scanExtension(row pgx.Row) (Extension, error) {
	var e Extension
	err := row.Scan(
		&e.ID, &e.InitiativeID, &e.RequestedBy, &e.ReviewedBy, &e.NewDueDate, &e.Reason, &e.Status,
		&e.ReviewNote, &e.ReviewedAt, &e.CreatedAt,
	)
	return e, err
}

func (s *Store) PendingExtension(ctx context.Context, initiativeID string) (Extension, error) {
	return scanExtension(s.DB.QueryRow(ctx, `
    SELECT `+extensionColumns+` FROM initiative_extensions
    WHERE initiative_id = $1 AND status = $2
  `, initiativeID, ExtensionPending))
}

func (s *Store) ExtensionByID(ctx context.Context, extensionID string) (Extension, error) {
	return scanExtension(s.DB.QueryRow(ctx, `
    SELECT `+extensionColumns+` FROM initiative_extensions WHERE id = $1
  `, extensionID))
}

func (s *Store) CreateExtension(ctx context.Context, extension Extension) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO initiative_extensions (id, initiative_id, requested_by, new_due_date, reason, status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, extension.ID, extension.InitiativeID, extension.RequestedBy, extension.NewDueDate,
		extension.Reason, extension.Status, extension.CreatedAt)
	return err
}

// ApproveExtension resolves the extension, moves the initiative's due
// date, and clears an OVERDUE flag, all in one transaction.
func (s *Store) ApproveExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var initiativeID string
	var newDueDate time.Time
	if err := tx.QueryRow(ctx, `
    UPDATE initiative_extensions
    SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5
    WHERE id = $1 AND status = $6
    RETURNING initiative_id, new_due_date
  `, extensionID, ExtensionApproved, reviewerID, nullIfEmpty(note), at, ExtensionPending).Scan(&initiativeID, &newDueDate); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
    UPDATE initiatives SET due_date = $2 WHERE id = $1
  `, initiativeID, newDueDate); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
    UPDATE initiatives SET status = $2 WHERE id = $1 AND status = $3
  `, initiativeID, StatusOngoing, StatusOverdue); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) DenyExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE initiative_extensions
    SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5
    WHERE id = $1 AND status = $6
  `, extensionID, ExtensionDenied, reviewerID, nullIfEmpty(note), at, ExtensionPending)
	return err
}

func (s *Store) InitiativesInvolving(ctx context.Context, userID string) ([]Initiative, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT `+initiativeColumns+` FROM initiatives
    WHERE creator_id = $1
       OR team_head_id = $1
       OR id IN (SELECT initiative_id FROM initiative_assignments WHERE user_id = $1)
    ORDER BY created_at DESC
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInitiatives(rows)
}

func (s *Store) InitiativesByOrganizations(ctx context.Context, orgIDs []string) ([]Initiative, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT `+initiativeColumns+` FROM initiatives
    WHERE organization_id = ANY($1)
    ORDER BY created_at DESC
  `, orgIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInitiatives(rows)
}

func (s *Store) OverdueCandidates(ctx context.Context, now time.Time) ([]Initiative, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+initiativeColumns+` FROM initiatives
    WHERE due_date < $1 AND status NOT IN ($2, $3)
  `, now, StatusApproved, StatusOverdue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInitiatives(rows)
}

func (s *Store) AverageApprovedScore(ctx context.Context, userID string) (float64, int, error) {
	var avg float64
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(AVG(i.score), 0), COUNT(i.score)
    FROM initiatives i
    JOIN initiative_assignments a ON a.initiative_id = i.id
    WHERE a.user_id = $1 AND i.status = $2 AND i.score IS NOT NULL
  `, userID, StatusApproved).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

func collectInitiatives(rows pgx.Rows) ([]Initiative, error) {
	var out []Initiative
	for rows.Next() {
		i, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

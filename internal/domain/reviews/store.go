package reviews

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) TraitByID(ctx context.Context, traitID string) (Trait, error) {
	var t Trait
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, COALESCE(description, ''), scope_type, organization_id, display_order, is_active, created_at
    FROM review_traits WHERE id = $1
  `, traitID).Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.OrganizationID, &t.DisplayOrder, &t.IsActive, &t.CreatedAt)
	return t, err
}

func (s *Store) CreateTrait(ctx context.Context, trait Trait) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_traits (id, name, description, scope_type, organization_id, display_order, is_active, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, trait.ID, trait.Name, trait.Description, trait.Scope, trait.OrganizationID, trait.DisplayOrder, trait.IsActive, trait.CreatedAt)
	return err
}

func (s *Store) ActiveTraits(ctx context.Context) ([]Trait, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(description, ''), scope_type, organization_id, display_order, is_active, created_at
    FROM review_traits WHERE is_active ORDER BY display_order, name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trait
	for rows.Next() {
		var t Trait
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.OrganizationID, &t.DisplayOrder, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) QuestionByID(ctx context.Context, questionID string) (Question, error) {
	var q Question
	err := s.DB.QueryRow(ctx, `
    SELECT id, trait_id, text, for_self, for_peer, for_supervisor, is_active
    FROM review_questions WHERE id = $1
  `, questionID).Scan(&q.ID, &q.TraitID, &q.Text, &q.ForSelf, &q.ForPeer, &q.ForSupervisor, &q.IsActive)
	return q, err
}

func (s *Store) CreateQuestion(ctx context.Context, question Question) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_questions (id, trait_id, text, for_self, for_peer, for_supervisor, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, question.ID, question.TraitID, question.Text, question.ForSelf, question.ForPeer, question.ForSupervisor, question.IsActive)
	return err
}

func (s *Store) QuestionsForTrait(ctx context.Context, traitID string) ([]Question, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, trait_id, text, for_self, for_peer, for_supervisor, is_active
    FROM review_questions WHERE trait_id = $1 AND is_active
  `, traitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.TraitID, &q.Text, &q.ForSelf, &q.ForPeer, &q.ForSupervisor, &q.IsActive); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const cycleColumns = `
  id, name, start_date, end_date, status, self_enabled, peer_enabled,
  supervisor_enabled, peer_count, created_at`

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Status,
		&c.SelfEnabled, &c.PeerEnabled, &c.SupervisorEnabled, &c.PeerCount, &c.CreatedAt)
	return c, err
}

func (s *Store) CycleByID(ctx context.Context, cycleID string) (Cycle, error) {
	return scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM review_cycles WHERE id = $1", cycleID))
}

func (s *Store) CreateCycle(ctx context.Context, cycle Cycle) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_cycles (id, name, start_date, end_date, status, self_enabled, peer_enabled, supervisor_enabled, peer_count, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, cycle.ID, cycle.Name, cycle.StartDate, cycle.EndDate, cycle.Status,
		cycle.SelfEnabled, cycle.PeerEnabled, cycle.SupervisorEnabled, cycle.PeerCount, cycle.CreatedAt)
	return err
}

func (s *Store) ListCycles(ctx context.Context) ([]Cycle, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+cycleColumns+" FROM review_cycles ORDER BY start_date DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SetCycleStatus(ctx context.Context, cycleID string, from, to CycleStatus) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_cycles SET status = $3 WHERE id = $1 AND status = $2
  `, cycleID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const assignmentColumns = `id, cycle_id, reviewer_id, reviewee_id, review_type, status, created_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.CycleID, &a.ReviewerID, &a.RevieweeID, &a.Type, &a.Status, &a.CreatedAt)
	return a, err
}

func (s *Store) AssignmentByID(ctx context.Context, assignmentID string) (Assignment, error) {
	return scanAssignment(s.DB.QueryRow(ctx, "SELECT "+assignmentColumns+" FROM review_assignments WHERE id = $1", assignmentID))
}

func (s *Store) CreateAssignment(ctx context.Context, assignment Assignment) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_assignments (id, cycle_id, reviewer_id, reviewee_id, review_type, status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, assignment.ID, assignment.CycleID, assignment.ReviewerID, assignment.RevieweeID,
		assignment.Type, assignment.Status, assignment.CreatedAt)
	return err
}

func (s *Store) AssignmentsForReviewer(ctx context.Context, cycleID, reviewerID string) ([]Assignment, error) {
	return s.assignmentsWhere(ctx, "cycle_id = $1 AND reviewer_id = $2", cycleID, reviewerID)
}

func (s *Store) AssignmentsForReviewee(ctx context.Context, cycleID, revieweeID string) ([]Assignment, error) {
	return s.assignmentsWhere(ctx, "cycle_id = $1 AND reviewee_id = $2", cycleID, revieweeID)
}

func (s *Store) assignmentsWhere(ctx context.Context, where string, args ...any) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+assignmentColumns+" FROM review_assignments WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CompleteAssignment(ctx context.Context, assignmentID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE review_assignments SET status = $2 WHERE id = $1
  `, assignmentID, AssignmentCompleted)
	return err
}

func (s *Store) InsertResponse(ctx context.Context, response Response) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_responses (id, assignment_id, question_id, rating, comment, created_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, response.ID, response.AssignmentID, response.QuestionID, response.Rating, response.Comment, response.CreatedAt)
	return err
}

func (s *Store) ResponseExists(ctx context.Context, assignmentID, questionID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM review_responses WHERE assignment_id = $1 AND question_id = $2)
  `, assignmentID, questionID).Scan(&exists)
	return exists, err
}

func (s *Store) ResponsesForReviewee(ctx context.Context, cycleID, revieweeID string) ([]ResponseDetail, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.rating, a.review_type, q.trait_id
    FROM review_responses r
    JOIN review_assignments a ON a.id = r.assignment_id
    JOIN review_questions q ON q.id = r.question_id
    WHERE a.cycle_id = $1 AND a.reviewee_id = $2
  `, cycleID, revieweeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResponseDetail
	for rows.Next() {
		var d ResponseDetail
		if err := rows.Scan(&d.Rating, &d.ReviewType, &d.TraitID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpsertTraitScore(ctx context.Context, score TraitScore) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO review_scores (user_id, trait_id, cycle_id, self_score, peer_score, supervisor_score, weighted_score)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (user_id, trait_id, cycle_id) DO UPDATE
      SET self_score = EXCLUDED.self_score,
          peer_score = EXCLUDED.peer_score,
          supervisor_score = EXCLUDED.supervisor_score,
          weighted_score = EXCLUDED.weighted_score
  `, score.UserID, score.TraitID, score.CycleID, score.SelfScore, score.PeerScore, score.SupervisorScore, score.Weighted)
	return err
}

func (s *Store) TraitScores(ctx context.Context, cycleID, userID string) ([]TraitScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT user_id, trait_id, cycle_id, self_score, peer_score, supervisor_score, weighted_score
    FROM review_scores WHERE cycle_id = $1 AND user_id = $2
  `, cycleID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraitScore
	for rows.Next() {
		var ts TraitScore
		if err := rows.Scan(&ts.UserID, &ts.TraitID, &ts.CycleID, &ts.SelfScore, &ts.PeerScore, &ts.SupervisorScore, &ts.Weighted); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) UpsertPerformanceScore(ctx context.Context, score PerformanceScore) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO performance_scores (user_id, cycle_id, task_score, review_score, goal_score, overall_score)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (user_id, cycle_id) DO UPDATE
      SET task_score = EXCLUDED.task_score,
          review_score = EXCLUDED.review_score,
          goal_score = EXCLUDED.goal_score,
          overall_score = EXCLUDED.overall_score
  `, score.UserID, score.CycleID, score.TaskScore, score.ReviewScore, score.GoalScore, score.Overall)
	return err
}

func (s *Store) PerformanceScoreFor(ctx context.Context, cycleID, userID string) (PerformanceScore, error) {
	var p PerformanceScore
	err := s.DB.QueryRow(ctx, `
    SELECT user_id, cycle_id, task_score, review_score, goal_score, overall_score
    FROM performance_scores WHERE cycle_id = $1 AND user_id = $2
  `, cycleID, userID).Scan(&p.UserID, &p.CycleID, &p.TaskScore, &p.ReviewScore, &p.GoalScore, &p.Overall)
	return p, err
}

func (s *Store) ActiveUsersByOrganizations(ctx context.Context, orgIDs []string) ([]string, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM users WHERE status = 'ACTIVE' AND organization_id = ANY($1)
  `, orgIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (s *Store) AllActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE status = 'ACTIVE'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
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

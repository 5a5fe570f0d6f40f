package reviews

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/notifications"
	"pms/internal/platform/clock"
)

// Hierarchy is the slice of the organization resolver trait
// inheritance needs.
type Hierarchy interface {
	AncestorChain(ctx context.Context, orgID string) ([]string, error)
	Descendants(ctx context.Context, orgID string) (map[string]bool, error)
}

type Directory interface {
	UserByID(ctx context.Context, userID string) (auth.User, error)
}

type TaskScorer interface {
	TaskPerformance(ctx context.Context, userID string) (float64, int, error)
}

type GoalScorer interface {
	IndividualAchievementRate(ctx context.Context, userID string) (float64, int, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notifications.Event)
}

type Service struct {
	store    StoreAPI
	orgs     Hierarchy
	users    Directory
	tasks    TaskScorer
	goals    GoalScorer
	notifier Notifier
	clock    clock.Clock
}

func NewService(store StoreAPI, orgs Hierarchy, users Directory, tasks TaskScorer, goals GoalScorer, notifier Notifier, clk clock.Clock) *Service {
	return &Service{store: store, orgs: orgs, users: users, tasks: tasks, goals: goals, notifier: notifier, clock: clk}
}

func (s *Service) CreateTrait(ctx context.Context, in CreateTraitInput) (Trait, error) {
	if in.Name == "" {
		return Trait{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch in.Scope {
	case ScopeGlobal:
		if in.OrganizationID != nil {
			return Trait{}, fmt.Errorf("%w: global traits take no organization", ErrValidation)
		}
	case ScopeOrganization:
		if in.OrganizationID == nil {
			return Trait{}, fmt.Errorf("%w: scoped traits require an organization", ErrValidation)
		}
	default:
		return Trait{}, fmt.Errorf("%w: unknown trait scope %q", ErrValidation, in.Scope)
	}

	trait := Trait{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Description:    in.Description,
		Scope:          in.Scope,
		OrganizationID: in.OrganizationID,
		DisplayOrder:   in.DisplayOrder,
		IsActive:       true,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.CreateTrait(ctx, trait); err != nil {
		return Trait{}, err
	}
	return trait, nil
}

// ApplicableTraits resolves the traits a user is assessed on: global
// traits plus traits scoped to any organization in the user's ancestor
// chain. A unit member inherits unit, department, directorate and
// global traits at once.
func (s *Service) ApplicableTraits(ctx context.Context, user auth.User) ([]Trait, error) {
	chain, err := s.orgs.AncestorChain(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}
	inChain := make(map[string]bool, len(chain))
	for _, id := range chain {
		inChain[id] = true
	}

	all, err := s.store.ActiveTraits(ctx)
	if err != nil {
		return nil, err
	}
	var out []Trait
	for _, t := range all {
		if t.Scope == ScopeGlobal {
			out = append(out, t)
			continue
		}
		if t.OrganizationID != nil && inChain[*t.OrganizationID] {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

// UsersAssessedOnTrait is the inverse resolution: every ACTIVE user
// for a global trait, or every ACTIVE user at or below the trait's
// organization for a scoped one.
func (s *Service) UsersAssessedOnTrait(ctx context.Context, traitID string) ([]string, error) {
	trait, err := s.trait(ctx, traitID)
	if err != nil {
		return nil, err
	}
	if trait.Scope == ScopeGlobal {
		return s.store.AllActiveUsers(ctx)
	}

	reach, err := s.orgs.Descendants(ctx, *trait.OrganizationID)
	if err != nil {
		return nil, err
	}
	orgIDs := make([]string, 0, len(reach))
	for id := range reach {
		orgIDs = append(orgIDs, id)
	}
	return s.store.ActiveUsersByOrganizations(ctx, orgIDs)
}

// ValidateApplicability gates response submission: a question tied to
// a trait the user's organization does not inherit cannot be answered
// for them.
func (s *Service) ValidateApplicability(ctx context.Context, traitID string, user auth.User) (bool, error) {
	trait, err := s.trait(ctx, traitID)
	if err != nil {
		return false, err
	}
	if trait.Scope == ScopeGlobal {
		return true, nil
	}
	chain, err := s.orgs.AncestorChain(ctx, user.OrganizationID)
	if err != nil {
		return false, err
	}
	for _, id := range chain {
		if trait.OrganizationID != nil && id == *trait.OrganizationID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) CreateQuestion(ctx context.Context, question Question) (Question, error) {
	if question.Text == "" {
		return Question{}, fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if !question.ForSelf && !question.ForPeer && !question.ForSupervisor {
		return Question{}, fmt.Errorf("%w: question must apply to at least one review type", ErrValidation)
	}
	if _, err := s.trait(ctx, question.TraitID); err != nil {
		return Question{}, err
	}
	question.ID = uuid.NewString()
	question.IsActive = true
	if err := s.store.CreateQuestion(ctx, question); err != nil {
		return Question{}, err
	}
	return question, nil
}

func (s *Service) CreateCycle(ctx context.Context, in CreateCycleInput) (Cycle, error) {
	if in.Name == "" {
		return Cycle{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.EndDate.After(in.StartDate) {
		return Cycle{}, fmt.Errorf("%w: cycle must end after it starts", ErrValidation)
	}
	if in.PeerEnabled && in.PeerCount < 1 {
		return Cycle{}, fmt.Errorf("%w: peer reviews require a positive peer count", ErrValidation)
	}

	cycle := Cycle{
		ID:                uuid.NewString(),
		Name:              in.Name,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Status:            CycleDraft,
		SelfEnabled:       in.SelfEnabled,
		PeerEnabled:       in.PeerEnabled,
		SupervisorEnabled: in.SupervisorEnabled,
		PeerCount:         in.PeerCount,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.store.CreateCycle(ctx, cycle); err != nil {
		return Cycle{}, err
	}
	return cycle, nil
}

func (s *Service) ActivateCycle(ctx context.Context, cycleID string) error {
	changed, err := s.store.SetCycleStatus(ctx, cycleID, CycleDraft, CycleActive)
	if err != nil {
		return err
	}
	if !changed {
		return ErrInvalidState
	}
	return nil
}

func (s *Service) CloseCycle(ctx context.Context, cycleID string) error {
	changed, err := s.store.SetCycleStatus(ctx, cycleID, CycleActive, CycleClosed)
	if err != nil {
		return err
	}
	if !changed {
		return ErrInvalidState
	}
	return nil
}

func (s *Service) ListCycles(ctx context.Context) ([]Cycle, error) {
	return s.store.ListCycles(ctx)
}

// CreateAssignment opens one reviewer/reviewee/type unit of work. The
// review type must be enabled by the cycle, and a SELF assignment must
// point at the reviewer.
func (s *Service) CreateAssignment(ctx context.Context, cycleID, reviewerID, revieweeID string, reviewType ReviewType) (Assignment, error) {
	if !ValidReviewType(reviewType) {
		return Assignment{}, fmt.Errorf("%w: unknown review type %q", ErrValidation, reviewType)
	}
	cycle, err := s.cycle(ctx, cycleID)
	if err != nil {
		return Assignment{}, err
	}
	if cycle.Status == CycleClosed {
		return Assignment{}, ErrInvalidState
	}
	if !cycle.TypeEnabled(reviewType) {
		return Assignment{}, ErrTypeDisabled
	}
	if reviewType == TypeSelf && reviewerID != revieweeID {
		return Assignment{}, fmt.Errorf("%w: self reviews assess the reviewer", ErrValidation)
	}
	if reviewType != TypeSelf && reviewerID == revieweeID {
		return Assignment{}, fmt.Errorf("%w: reviewer and reviewee must differ", ErrValidation)
	}

	assignment := Assignment{
		ID:         uuid.NewString(),
		CycleID:    cycleID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Type:       reviewType,
		Status:     AssignmentPending,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.store.CreateAssignment(ctx, assignment); err != nil {
		return Assignment{}, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notifications.Event{
			Type:       notifications.TypeReviewAssigned,
			Recipients: []string{reviewerID},
			Title:      "Review assigned",
			Body:       fmt.Sprintf("You have a %s review to complete in %s.", reviewType, cycle.Name),
			RefID:      assignment.ID,
		})
	}
	return assignment, nil
}

func (s *Service) AssignmentsForReviewer(ctx context.Context, cycleID, reviewerID string) ([]Assignment, error) {
	return s.store.AssignmentsForReviewer(ctx, cycleID, reviewerID)
}

// SubmitResponses records the ratings for one assignment and completes
// it. Every question must apply to the assignment's review type and to
// a trait the reviewee inherits.
func (s *Service) SubmitResponses(ctx context.Context, actor auth.User, assignmentID string, inputs []ResponseInput) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: at least one response is required", ErrValidation)
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment.ReviewerID != actor.ID {
		return ErrWrongReviewer
	}
	if assignment.Status != AssignmentPending {
		return ErrInvalidState
	}
	cycle, err := s.cycle(ctx, assignment.CycleID)
	if err != nil {
		return err
	}
	if cycle.Status != CycleActive {
		return ErrInvalidState
	}
	if !cycle.TypeEnabled(assignment.Type) {
		return ErrTypeDisabled
	}

	reviewee, err := s.users.UserByID(ctx, assignment.RevieweeID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, in := range inputs {
		if in.Rating < MinRating || in.Rating > MaxRating {
			return ErrRatingRange
		}
		question, err := s.store.QuestionByID(ctx, in.QuestionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !question.IsActive || !question.AppliesTo(assignment.Type) {
			return fmt.Errorf("%w: question %s does not apply to %s reviews", ErrValidation, question.ID, assignment.Type)
		}
		applicable, err := s.ValidateApplicability(ctx, question.TraitID, reviewee)
		if err != nil {
			return err
		}
		if !applicable {
			return ErrNotApplicable
		}
		exists, err := s.store.ResponseExists(ctx, assignmentID, in.QuestionID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateReply
		}
		if err := s.store.InsertResponse(ctx, Response{
			ID:           uuid.NewString(),
			AssignmentID: assignmentID,
			QuestionID:   in.QuestionID,
			Rating:       in.Rating,
			Comment:      in.Comment,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
	}
	return s.store.CompleteAssignment(ctx, assignmentID)
}

// ComputeTraitScores aggregates a reviewee's responses per trait:
// self, peer and supervisor averages, blended 0.2/0.3/0.5. An absent
// component contributes 0; the weighted score is nil only when all
// three are absent.
func (s *Service) ComputeTraitScores(ctx context.Context, cycleID, userID string) ([]TraitScore, error) {
	details, err := s.store.ResponsesForReviewee(ctx, cycleID, userID)
	if err != nil {
		return nil, err
	}

	byTrait := map[string]map[ReviewType]*ratingBucket{}
	for _, d := range details {
		if byTrait[d.TraitID] == nil {
			byTrait[d.TraitID] = map[ReviewType]*ratingBucket{}
		}
		b := byTrait[d.TraitID][d.ReviewType]
		if b == nil {
			b = &ratingBucket{}
			byTrait[d.TraitID][d.ReviewType] = b
		}
		b.sum += float64(d.Rating)
		b.count++
	}

	traitIDs := make([]string, 0, len(byTrait))
	for id := range byTrait {
		traitIDs = append(traitIDs, id)
	}
	sort.Strings(traitIDs)

	var out []TraitScore
	for _, traitID := range traitIDs {
		buckets := byTrait[traitID]
		score := TraitScore{UserID: userID, TraitID: traitID, CycleID: cycleID}
		score.SelfScore = avgOf(buckets[TypeSelf])
		score.PeerScore = avgOf(buckets[TypePeer])
		score.SupervisorScore = avgOf(buckets[TypeSupervisor])

		if score.SelfScore != nil || score.PeerScore != nil || score.SupervisorScore != nil {
			weighted := weightSelf*deref(score.SelfScore) +
				weightPeer*deref(score.PeerScore) +
				weightSupervisor*deref(score.SupervisorScore)
			score.Weighted = &weighted
		}
		if err := s.store.UpsertTraitScore(ctx, score); err != nil {
			return nil, err
		}
		out = append(out, score)
	}
	return out, nil
}

// ComputePerformanceScore blends the three performance components for
// one user and cycle: 0.5 review, 0.3 task, 0.2 goal. The review
// component is the average weighted trait score; the task component is
// the average approved-initiative score; the goal component is the
// individual-goal achievement rate on a ten-point scale.
func (s *Service) ComputePerformanceScore(ctx context.Context, cycleID, userID string) (PerformanceScore, error) {
	score := PerformanceScore{UserID: userID, CycleID: cycleID}

	traitScores, err := s.ComputeTraitScores(ctx, cycleID, userID)
	if err != nil {
		return PerformanceScore{}, err
	}
	var reviewSum float64
	reviewCount := 0
	for _, ts := range traitScores {
		if ts.Weighted != nil {
			reviewSum += *ts.Weighted
			reviewCount++
		}
	}
	if reviewCount > 0 {
		review := reviewSum / float64(reviewCount)
		score.ReviewScore = &review
	}

	taskAvg, taskCount, err := s.tasks.TaskPerformance(ctx, userID)
	if err != nil {
		return PerformanceScore{}, err
	}
	if taskCount > 0 {
		score.TaskScore = &taskAvg
	}

	goalRate, goalCount, err := s.goals.IndividualAchievementRate(ctx, userID)
	if err != nil {
		return PerformanceScore{}, err
	}
	if goalCount > 0 {
		goal := goalRate * 10
		score.GoalScore = &goal
	}

	if score.ReviewScore != nil || score.TaskScore != nil || score.GoalScore != nil {
		overall := weightReview*deref(score.ReviewScore) +
			weightTask*deref(score.TaskScore) +
			weightGoal*deref(score.GoalScore)
		score.Overall = &overall
	}

	if err := s.store.UpsertPerformanceScore(ctx, score); err != nil {
		return PerformanceScore{}, err
	}
	return score, nil
}

func (s *Service) TraitScores(ctx context.Context, cycleID, userID string) ([]TraitScore, error) {
	return s.store.TraitScores(ctx, cycleID, userID)
}

func (s *Service) PerformanceScoreFor(ctx context.Context, cycleID, userID string) (PerformanceScore, error) {
	score, err := s.store.PerformanceScoreFor(ctx, cycleID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return PerformanceScore{}, ErrNotFound
	}
	return score, err
}

func (s *Service) trait(ctx context.Context, traitID string) (Trait, error) {
	trait, err := s.store.TraitByID(ctx, traitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trait{}, ErrNotFound
	}
	return trait, err
}

func (s *Service) cycle(ctx context.Context, cycleID string) (Cycle, error) {
	cycle, err := s.store.CycleByID(ctx, cycleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cycle{}, ErrNotFound
	}
	return cycle, err
}

func (s *Service) assignment(ctx context.Context, assignmentID string) (Assignment, error) {
	assignment, err := s.store.AssignmentByID(ctx, assignmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	return assignment, err
}

type ratingBucket struct {
	sum   float64
	count int
}

func avgOf(b *ratingBucket) *float64 {
	if b == nil || b.count == 0 {
		return nil
	}
	avg := b.sum / float64(b.count)
	return &avg
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

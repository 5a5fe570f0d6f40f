package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/notifications"
	"pms/internal/platform/clock"
)

// Authorizer is the slice of the permission engine the goal lifecycle
// needs.
type Authorizer interface {
	HasPermission(ctx context.Context, user auth.User, permission auth.Permission) (bool, error)
	CanAccessOrganization(ctx context.Context, user auth.User, orgID string) (bool, error)
	SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error)
	UserByID(ctx context.Context, userID string) (auth.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notifications.Event)
}

type Service struct {
	store    StoreAPI
	perms    Authorizer
	notifier Notifier
	clock    clock.Clock
}

func NewService(store StoreAPI, perms Authorizer, notifier Notifier, clk clock.Clock) *Service {
	return &Service{store: store, perms: perms, notifier: notifier, clock: clk}
}

var createPermByType = map[GoalType]auth.Permission{
	TypeYearly:       auth.PermGoalCreateYearly,
	TypeQuarterly:    auth.PermGoalCreateQuarterly,
	TypeDepartmental: auth.PermGoalCreateDepartmental,
}

// Create validates the goal against the type table and persists it.
// Organization-wide goals start ACTIVE; individual goals start
// PENDING_APPROVAL and are routed to the owner's supervisor.
func (s *Service) Create(ctx context.Context, actor auth.User, in CreateGoalInput) (Goal, error) {
	if in.Title == "" {
		return Goal{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !ValidGoalType(in.Type) {
		return Goal{}, fmt.Errorf("%w: unknown goal type %q", ErrValidation, in.Type)
	}

	if perm, ok := createPermByType[in.Type]; ok {
		allowed, err := s.perms.HasPermission(ctx, actor, perm)
		if err != nil {
			return Goal{}, err
		}
		if !allowed {
			return Goal{}, ErrForbidden
		}
	}

	if in.Type == TypeIndividual {
		if in.Quarter == nil || in.Year == nil {
			return Goal{}, ErrQuarterRequired
		}
		if !ValidQuarter(*in.Quarter) {
			return Goal{}, fmt.Errorf("%w: unknown quarter %q", ErrValidation, *in.Quarter)
		}
		if in.ParentID != nil {
			return Goal{}, ErrInvalidParent
		}
	}

	if in.ParentID != nil {
		parent, err := s.Get(ctx, *in.ParentID)
		if err != nil {
			return Goal{}, err
		}
		if !ChildTypeAllowed(parent.Type, in.Type) {
			return Goal{}, ErrInvalidParent
		}
	}

	ownerID := in.OwnerID
	if ownerID == "" {
		ownerID = actor.ID
	}
	orgID := in.OrganizationID
	if orgID == "" {
		orgID = actor.OrganizationID
	}
	if orgID != actor.OrganizationID {
		ok, err := s.perms.CanAccessOrganization(ctx, actor, orgID)
		if err != nil {
			return Goal{}, err
		}
		if !ok {
			return Goal{}, ErrForbidden
		}
	}

	status := StatusActive
	if in.Type == TypeIndividual {
		status = StatusPendingApproval
	}

	goal := Goal{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Type:           in.Type,
		Status:         status,
		ParentID:       in.ParentID,
		OwnerID:        ownerID,
		CreatorID:      actor.ID,
		OrganizationID: orgID,
		Quarter:        in.Quarter,
		Year:           in.Year,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return Goal{}, err
	}

	if status == StatusPendingApproval {
		if owner, err := s.perms.UserByID(ctx, ownerID); err == nil && owner.SupervisorID != nil {
			s.notify(ctx, notifications.Event{
				Type:       notifications.TypeGoalApprovalPending,
				Recipients: []string{*owner.SupervisorID},
				Title:      "Goal awaiting approval",
				Body:       fmt.Sprintf("%s submitted the goal %q for approval.", owner.FirstName, goal.Title),
				RefID:      goal.ID,
			})
		}
	}
	return goal, nil
}

func (s *Service) Get(ctx context.Context, goalID string) (Goal, error) {
	goal, err := s.store.GoalByID(ctx, goalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	return goal, err
}

// UpdateProgress records a manual progress update on a leaf goal. A
// goal with any non-discarded child derives its progress and rejects
// direct updates. Reaching 100 on an ACTIVE goal marks it ACHIEVED and
// triggers the upward achievement check.
func (s *Service) UpdateProgress(ctx context.Context, actor auth.User, goalID string, newPercentage float64, report string) (Goal, error) {
	if newPercentage < 0 || newPercentage > 100 {
		return Goal{}, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}

	goal, err := s.Get(ctx, goalID)
	if err != nil {
		return Goal{}, err
	}
	if goal.Frozen {
		return Goal{}, ErrGoalFrozen
	}
	if goal.Status != StatusActive {
		return Goal{}, ErrInvalidState
	}
	if err := s.authorizeMutation(ctx, actor, goal, auth.PermGoalProgressUpdate); err != nil {
		return Goal{}, err
	}

	children, err := s.store.ChildGoals(ctx, goalID)
	if err != nil {
		return Goal{}, err
	}
	for _, child := range children {
		if child.Status != StatusDiscarded {
			return Goal{}, ErrHasChildren
		}
	}

	now := s.clock.Now()
	if err := s.store.InsertProgressReport(ctx, ProgressReport{
		ID:            uuid.NewString(),
		GoalID:        goalID,
		OldPercentage: goal.ProgressPercentage,
		NewPercentage: newPercentage,
		Report:        report,
		UpdatedBy:     actor.ID,
		CreatedAt:     now,
	}); err != nil {
		return Goal{}, err
	}
	if err := s.store.SetProgress(ctx, goalID, newPercentage); err != nil {
		return Goal{}, err
	}
	goal.ProgressPercentage = newPercentage

	if newPercentage >= 100 {
		if err := s.store.MarkAchieved(ctx, goalID, now); err != nil {
			return Goal{}, err
		}
		goal.Status = StatusAchieved
		goal.AchievedAt = &now
		s.notify(ctx, notifications.Event{
			Type:       notifications.TypeGoalAutoAchieved,
			Recipients: []string{goal.OwnerID},
			Title:      "Goal achieved",
			Body:       fmt.Sprintf("The goal %q reached 100%% and is now achieved.", goal.Title),
			RefID:      goal.ID,
		})
		if goal.ParentID != nil {
			if _, err := s.CheckAutoAchievement(ctx, *goal.ParentID); err != nil {
				return Goal{}, err
			}
		}
	} else if goal.ParentID != nil {
		if err := s.propagateProgress(ctx, *goal.ParentID); err != nil {
			return Goal{}, err
		}
	}
	return goal, nil
}

// CheckAutoAchievement evaluates a goal against its children and, when
// every non-discarded child is ACHIEVED, marks the goal ACHIEVED and
// continues with its parent. The walk is iterative and depth-bounded;
// hitting the bound is a data-integrity failure, not a retryable
// condition. Returns whether at least one goal was achieved.
func (s *Service) CheckAutoAchievement(ctx context.Context, goalID string) (bool, error) {
	achievedAny := false
	current := goalID
	for depth := 0; current != ""; depth++ {
		if depth >= maxCascadeDepth {
			return achievedAny, fmt.Errorf("%w: starting at goal %s", ErrCascadeDepth, goalID)
		}

		goal, err := s.Get(ctx, current)
		if err != nil {
			return achievedAny, err
		}
		children, err := s.store.ChildGoals(ctx, current)
		if err != nil {
			return achievedAny, err
		}
		if len(children) == 0 {
			return achievedAny, nil
		}

		nonDiscarded := 0
		allAchieved := true
		for _, child := range children {
			if child.Status == StatusDiscarded {
				continue
			}
			nonDiscarded++
			if child.Status != StatusAchieved {
				allAchieved = false
			}
		}
		// A fully discarded child set never completes the parent.
		if nonDiscarded == 0 || !allAchieved {
			return achievedAny, nil
		}
		if goal.Status != StatusActive {
			return achievedAny, nil
		}

		now := s.clock.Now()
		if err := s.store.SetProgress(ctx, current, 100); err != nil {
			return achievedAny, err
		}
		if err := s.store.MarkAchieved(ctx, current, now); err != nil {
			return achievedAny, err
		}
		achievedAny = true
		s.notify(ctx, notifications.Event{
			Type:       notifications.TypeGoalAutoAchieved,
			Recipients: []string{goal.OwnerID},
			Title:      "Goal achieved",
			Body:       fmt.Sprintf("All sub-goals of %q are achieved.", goal.Title),
			RefID:      goal.ID,
		})

		if goal.ParentID == nil {
			return achievedAny, nil
		}
		current = *goal.ParentID
	}
	return achievedAny, nil
}

// propagateProgress recomputes derived progress up the ancestor chain
// after a child's progress changed.
func (s *Service) propagateProgress(ctx context.Context, goalID string) error {
	current := goalID
	for depth := 0; current != ""; depth++ {
		if depth >= maxCascadeDepth {
			return fmt.Errorf("%w: starting at goal %s", ErrCascadeDepth, goalID)
		}

		goal, err := s.Get(ctx, current)
		if err != nil {
			return err
		}
		children, err := s.store.ChildGoals(ctx, current)
		if err != nil {
			return err
		}

		var sum float64
		count := 0
		for _, child := range children {
			if child.Status == StatusDiscarded {
				continue
			}
			sum += child.ProgressPercentage
			count++
		}
		derived := 0.0
		if count > 0 {
			derived = sum / float64(count)
		}
		if err := s.store.SetProgress(ctx, current, derived); err != nil {
			return err
		}

		if goal.ParentID == nil {
			return nil
		}
		current = *goal.ParentID
	}
	return nil
}

// Discard marks an ACTIVE goal DISCARDED and re-evaluates the parent:
// removing the last unachieved sibling can complete the parent's
// achievement set.
func (s *Service) Discard(ctx context.Context, actor auth.User, goalID, reason string) (Goal, error) {
	goal, err := s.Get(ctx, goalID)
	if err != nil {
		return Goal{}, err
	}
	if goal.Frozen {
		return Goal{}, ErrGoalFrozen
	}
	if goal.Status != StatusActive {
		return Goal{}, ErrInvalidState
	}
	if err := s.authorizeMutation(ctx, actor, goal, auth.PermGoalStatusChange); err != nil {
		return Goal{}, err
	}

	now := s.clock.Now()
	if err := s.store.MarkDiscarded(ctx, goalID, reason, now); err != nil {
		return Goal{}, err
	}
	goal.Status = StatusDiscarded
	goal.DiscardedAt = &now
	goal.DiscardReason = &reason

	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeGoalDiscarded,
		Recipients: []string{goal.OwnerID},
		Title:      "Goal discarded",
		Body:       fmt.Sprintf("The goal %q was discarded.", goal.Title),
		RefID:      goal.ID,
	})

	if goal.ParentID != nil {
		if _, err := s.CheckAutoAchievement(ctx, *goal.ParentID); err != nil {
			return Goal{}, err
		}
		if err := s.propagateProgress(ctx, *goal.ParentID); err != nil {
			return Goal{}, err
		}
	}
	return goal, nil
}

// Approve resolves a pending individual goal. Only the owner's
// supervisor or a holder of the approve permission may act. Rejection
// requires a reason.
func (s *Service) Approve(ctx context.Context, actor auth.User, goalID string, approved bool, rejectionReason string) (Goal, error) {
	goal, err := s.Get(ctx, goalID)
	if err != nil {
		return Goal{}, err
	}
	if goal.Type != TypeIndividual || goal.Status != StatusPendingApproval {
		return Goal{}, ErrInvalidState
	}
	if goal.Frozen {
		return Goal{}, ErrGoalFrozen
	}
	if !approved && rejectionReason == "" {
		return Goal{}, ErrReasonRequired
	}

	owner, err := s.perms.UserByID(ctx, goal.OwnerID)
	if err != nil {
		return Goal{}, err
	}
	isSupervisor := owner.SupervisorID != nil && *owner.SupervisorID == actor.ID
	if !isSupervisor {
		allowed, err := s.perms.HasPermission(ctx, actor, auth.PermGoalApprove)
		if err != nil {
			return Goal{}, err
		}
		if !allowed {
			return Goal{}, ErrForbidden
		}
	}

	now := s.clock.Now()
	status := StatusActive
	eventType := notifications.TypeGoalApproved
	title := "Goal approved"
	body := fmt.Sprintf("Your goal %q was approved.", goal.Title)
	if !approved {
		status = StatusRejected
		eventType = notifications.TypeGoalRejected
		title = "Goal rejected"
		body = fmt.Sprintf("Your goal %q was rejected: %s", goal.Title, rejectionReason)
	}
	if err := s.store.SetApproval(ctx, goalID, status, actor.ID, now, rejectionReason); err != nil {
		return Goal{}, err
	}
	goal.Status = status
	goal.ApprovedBy = &actor.ID
	goal.ApprovedAt = &now
	if !approved {
		goal.RejectionReason = &rejectionReason
	}

	s.notify(ctx, notifications.Event{
		Type:       eventType,
		Recipients: []string{goal.OwnerID},
		Title:      title,
		Body:       body,
		RefID:      goal.ID,
	})
	return goal, nil
}

// FreezeQuarter bulk-freezes every unfrozen individual goal in the
// quarter. Already-frozen goals are skipped, so re-running is a no-op.
func (s *Service) FreezeQuarter(ctx context.Context, actor auth.User, quarter Quarter, year int) (int, error) {
	if !ValidQuarter(quarter) {
		return 0, fmt.Errorf("%w: unknown quarter %q", ErrValidation, quarter)
	}
	allowed, err := s.perms.HasPermission(ctx, actor, auth.PermGoalFreeze)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, ErrForbidden
	}
	return s.store.FreezeIndividualGoals(ctx, quarter, year, actor.ID, s.clock.Now())
}

// ListForUser applies visibility: organization-wide goals are visible
// to everyone, individual goals only to their owner, creator, the
// owner's supervisor, or a view-all holder.
func (s *Service) ListForUser(ctx context.Context, user auth.User, filter ListFilter) ([]Goal, error) {
	all, err := s.store.ListGoals(ctx, filter)
	if err != nil {
		return nil, err
	}
	viewAll, err := s.perms.HasPermission(ctx, user, auth.PermGoalViewAll)
	if err != nil {
		return nil, err
	}
	if viewAll {
		return all, nil
	}

	supervisees := map[string]bool{}
	ids, err := s.perms.SuperviseeIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		supervisees[id] = true
	}

	visible := make([]Goal, 0, len(all))
	for _, g := range all {
		if g.Type != TypeIndividual {
			visible = append(visible, g)
			continue
		}
		if g.OwnerID == user.ID || g.CreatorID == user.ID || supervisees[g.OwnerID] {
			visible = append(visible, g)
		}
	}
	return visible, nil
}

func (s *Service) CanView(ctx context.Context, user auth.User, goal Goal) (bool, error) {
	if goal.Type != TypeIndividual {
		return true, nil
	}
	if goal.OwnerID == user.ID || goal.CreatorID == user.ID {
		return true, nil
	}
	ids, err := s.perms.SuperviseeIDs(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == goal.OwnerID {
			return true, nil
		}
	}
	return s.perms.HasPermission(ctx, user, auth.PermGoalViewAll)
}

func (s *Service) Children(ctx context.Context, goalID string) ([]Goal, error) {
	if _, err := s.Get(ctx, goalID); err != nil {
		return nil, err
	}
	return s.store.ChildGoals(ctx, goalID)
}

// Hierarchy resolves a goal and its full subtree.
func (s *Service) Hierarchy(ctx context.Context, goalID string) (*Node, error) {
	root, err := s.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	rootNode := &Node{Goal: root, Children: []*Node{}}
	seen := map[string]bool{root.ID: true}
	queue := []*Node{rootNode}
	for depth := 0; len(queue) > 0; depth++ {
		if depth >= maxCascadeDepth {
			return nil, fmt.Errorf("%w: starting at goal %s", ErrCascadeDepth, goalID)
		}
		var next []*Node
		for _, node := range queue {
			children, err := s.store.ChildGoals(ctx, node.Goal.ID)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if seen[child.ID] {
					slog.Error("goal tree cycle detected", "goal", child.ID)
					return nil, fmt.Errorf("%w: goal %s revisited", ErrCascadeDepth, child.ID)
				}
				seen[child.ID] = true
				childNode := &Node{Goal: child, Children: []*Node{}}
				node.Children = append(node.Children, childNode)
				next = append(next, childNode)
			}
		}
		queue = next
	}
	return rootNode, nil
}

func (s *Service) ProgressHistory(ctx context.Context, user auth.User, goalID string) ([]ProgressReport, error) {
	goal, err := s.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanView(ctx, user, goal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.store.ProgressReports(ctx, goalID)
}

// StatsForUser aggregates the goals visible to the user.
func (s *Service) StatsForUser(ctx context.Context, user auth.User, filter ListFilter) (Stats, error) {
	visible, err := s.ListForUser(ctx, user, filter)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ByType:   map[GoalType]int{},
		ByStatus: map[GoalStatus]int{},
	}
	now := s.clock.Now()
	var progressSum float64
	for _, g := range visible {
		stats.Total++
		stats.ByType[g.Type]++
		stats.ByStatus[g.Status]++
		progressSum += g.ProgressPercentage
		if g.Status == StatusActive && g.EndDate != nil && g.EndDate.Before(now) {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.AverageProgress = progressSum / float64(stats.Total)
	}
	return stats, nil
}

// IndividualAchievementRate is the share of a user's individual goals
// that reached ACHIEVED, over everything still standing (discarded and
// rejected goals leave the denominator). Returns the rate in 0..1 and
// the denominator.
func (s *Service) IndividualAchievementRate(ctx context.Context, ownerID string) (float64, int, error) {
	owned, err := s.store.ListGoals(ctx, ListFilter{Type: TypeIndividual, OwnerID: ownerID})
	if err != nil {
		return 0, 0, err
	}
	achieved, considered := 0, 0
	for _, g := range owned {
		switch g.Status {
		case StatusAchieved:
			achieved++
			considered++
		case StatusActive, StatusPendingApproval:
			considered++
		}
	}
	if considered == 0 {
		return 0, 0, nil
	}
	return float64(achieved) / float64(considered), considered, nil
}

func (s *Service) authorizeMutation(ctx context.Context, actor auth.User, goal Goal, override auth.Permission) error {
	if goal.OwnerID == actor.ID || goal.CreatorID == actor.ID {
		return nil
	}
	allowed, err := s.perms.HasPermission(ctx, actor, override)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	ok, err := s.perms.CanAccessOrganization(ctx, actor, goal.OrganizationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) notify(ctx context.Context, ev notifications.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ev)
}

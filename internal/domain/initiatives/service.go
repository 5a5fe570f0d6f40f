package initiatives

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/notifications"
	"pms/internal/platform/clock"
)

type Authorizer interface {
	HasPermission(ctx context.Context, user auth.User, permission auth.Permission) (bool, error)
	CanAccessOrganization(ctx context.Context, user auth.User, orgID string) (bool, error)
	AccessibleOrganizations(ctx context.Context, user auth.User) (map[string]bool, error)
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

// Create validates the assignee set against the creator's reach and
// persists the initiative with its assignment rows. Assignees are
// notified best-effort after the write.
func (s *Service) Create(ctx context.Context, actor auth.User, in CreateInitiativeInput) (Initiative, error) {
	if in.Title == "" {
		return Initiative{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !ValidInitiativeType(in.Type) {
		return Initiative{}, fmt.Errorf("%w: unknown initiative type %q", ErrValidation, in.Type)
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyMedium
	}
	if !ValidUrgency(in.Urgency) {
		return Initiative{}, fmt.Errorf("%w: unknown urgency %q", ErrValidation, in.Urgency)
	}
	if in.DueDate.IsZero() {
		return Initiative{}, fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if len(in.AssigneeIDs) == 0 {
		return Initiative{}, fmt.Errorf("%w: at least one assignee is required", ErrValidation)
	}

	allowed, err := s.perms.HasPermission(ctx, actor, auth.PermInitiativeCreate)
	if err != nil {
		return Initiative{}, err
	}
	if !allowed {
		return Initiative{}, ErrForbidden
	}

	switch in.Type {
	case TypeIndividual:
		if len(in.AssigneeIDs) != 1 {
			return Initiative{}, fmt.Errorf("%w: individual initiatives take exactly one assignee", ErrValidation)
		}
		if in.TeamHeadID != nil {
			return Initiative{}, fmt.Errorf("%w: individual initiatives take no team head", ErrValidation)
		}
	case TypeGroup:
		if in.TeamHeadID == nil {
			return Initiative{}, fmt.Errorf("%w: group initiatives require a team head", ErrValidation)
		}
		found := false
		for _, id := range in.AssigneeIDs {
			if id == *in.TeamHeadID {
				found = true
				break
			}
		}
		if !found {
			return Initiative{}, fmt.Errorf("%w: team head must be among the assignees", ErrValidation)
		}
	}

	for _, assigneeID := range in.AssigneeIDs {
		assignee, err := s.perms.UserByID(ctx, assigneeID)
		if err != nil {
			return Initiative{}, err
		}
		if assignee.Status != auth.UserStatusActive {
			return Initiative{}, fmt.Errorf("%w: assignee %s is not active", ErrValidation, assigneeID)
		}
		ok, err := s.perms.CanAccessOrganization(ctx, actor, assignee.OrganizationID)
		if err != nil {
			return Initiative{}, err
		}
		if !ok {
			return Initiative{}, fmt.Errorf("%w: assignee %s is outside your reach", ErrForbidden, assigneeID)
		}
	}

	initiative := Initiative{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Type:           in.Type,
		Urgency:        in.Urgency,
		Status:         StatusPending,
		DueDate:        in.DueDate,
		CreatorID:      actor.ID,
		OrganizationID: actor.OrganizationID,
		TeamHeadID:     in.TeamHeadID,
		GoalID:         in.GoalID,
		Documents:      in.Documents,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.CreateInitiative(ctx, initiative, in.AssigneeIDs); err != nil {
		return Initiative{}, err
	}

	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeInitiativeAssigned,
		Recipients: in.AssigneeIDs,
		Title:      "New initiative assigned",
		Body:       fmt.Sprintf("You were assigned to %q, due %s.", initiative.Title, initiative.DueDate.Format("2006-01-02")),
		RefID:      initiative.ID,
	})
	return initiative, nil
}

func (s *Service) Get(ctx context.Context, initiativeID string) (Initiative, error) {
	initiative, err := s.store.InitiativeByID(ctx, initiativeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Initiative{}, ErrNotFound
	}
	return initiative, err
}

// Start moves a PENDING initiative to ONGOING. Only an assignee may
// start.
func (s *Service) Start(ctx context.Context, actor auth.User, initiativeID string) (Initiative, error) {
	initiative, err := s.Get(ctx, initiativeID)
	if err != nil {
		return Initiative{}, err
	}
	if initiative.Status != StatusPending {
		return Initiative{}, ErrInvalidState
	}
	assigned, err := s.isAssignee(ctx, initiativeID, actor.ID)
	if err != nil {
		return Initiative{}, err
	}
	if !assigned {
		return Initiative{}, ErrForbidden
	}

	changed, err := s.store.SetStatus(ctx, initiativeID, StatusPending, StatusOngoing)
	if err != nil {
		return Initiative{}, err
	}
	if !changed {
		return Initiative{}, ErrInvalidState
	}
	initiative.Status = StatusOngoing
	return initiative, nil
}

// Submit appends a submission row and moves the initiative to
// PENDING_REVIEW. Overdue initiatives with an unresolved extension
// cannot be submitted; group initiatives are submitted by the team
// head only.
func (s *Service) Submit(ctx context.Context, actor auth.User, initiativeID, report string, documents []string) (Initiative, error) {
	initiative, err := s.Get(ctx, initiativeID)
	if err != nil {
		return Initiative{}, err
	}
	if initiative.Status != StatusOngoing && initiative.Status != StatusOverdue {
		return Initiative{}, ErrInvalidState
	}
	if initiative.Status == StatusOverdue {
		if _, err := s.store.PendingExtension(ctx, initiativeID); err == nil {
			return Initiative{}, ErrExtensionBlocks
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return Initiative{}, err
		}
	}
	if err := s.authorizeSubmitter(ctx, actor, initiative); err != nil {
		return Initiative{}, err
	}

	now := s.clock.Now()
	if err := s.store.InsertSubmission(ctx, Submission{
		ID:           uuid.NewString(),
		InitiativeID: initiativeID,
		SubmittedBy:  actor.ID,
		Report:       report,
		Documents:    documents,
		CreatedAt:    now,
	}); err != nil {
		return Initiative{}, err
	}
	if _, err := s.store.SetStatus(ctx, initiativeID, initiative.Status, StatusPendingReview); err != nil {
		return Initiative{}, err
	}
	initiative.Status = StatusPendingReview

	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeInitiativeSubmitted,
		Recipients: []string{initiative.CreatorID},
		Title:      "Initiative submitted for review",
		Body:       fmt.Sprintf("%q was submitted and awaits your review.", initiative.Title),
		RefID:      initiative.ID,
	})
	return initiative, nil
}

// Review resolves a PENDING_REVIEW initiative. Approval is terminal;
// a redo sends it back to ONGOING with the score and feedback kept as
// the latest review attempt.
func (s *Service) Review(ctx context.Context, actor auth.User, initiativeID string, score float64, feedback string, approved bool) (Initiative, error) {
	initiative, err := s.Get(ctx, initiativeID)
	if err != nil {
		return Initiative{}, err
	}
	if initiative.Status != StatusPendingReview {
		return Initiative{}, ErrInvalidState
	}
	if initiative.CreatorID != actor.ID {
		return Initiative{}, ErrForbidden
	}
	if score < MinScore || score > MaxScore {
		return Initiative{}, ErrScoreRange
	}

	now := s.clock.Now()
	status := StatusApproved
	title := "Initiative approved"
	body := fmt.Sprintf("%q was approved with a score of %.1f.", initiative.Title, score)
	if !approved {
		status = StatusOngoing
		title = "Initiative needs rework"
		body = fmt.Sprintf("%q was sent back: %s", initiative.Title, feedback)
	}
	if err := s.store.SetReview(ctx, initiativeID, score, feedback, now, status); err != nil {
		return Initiative{}, err
	}
	initiative.Status = status
	initiative.Score = &score
	initiative.Feedback = &feedback
	initiative.ReviewedAt = &now

	assignees, err := s.store.AssigneeIDs(ctx, initiativeID)
	if err != nil {
		return Initiative{}, err
	}
	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeInitiativeReviewed,
		Recipients: assignees,
		Title:      title,
		Body:       body,
		RefID:      initiative.ID,
	})
	return initiative, nil
}

// RequestExtension opens a PENDING extension. At most one may be in
// flight per initiative.
func (s *Service) RequestExtension(ctx context.Context, actor auth.User, initiativeID string, newDueDate time.Time, reason string) (Extension, error) {
	initiative, err := s.Get(ctx, initiativeID)
	if err != nil {
		return Extension{}, err
	}
	if initiative.Status == StatusApproved {
		return Extension{}, ErrInvalidState
	}
	if reason == "" {
		return Extension{}, fmt.Errorf("%w: a reason is required", ErrValidation)
	}
	if !newDueDate.After(initiative.DueDate) {
		return Extension{}, fmt.Errorf("%w: new due date must be after the current one", ErrValidation)
	}
	if err := s.authorizeSubmitter(ctx, actor, initiative); err != nil {
		return Extension{}, err
	}

	if _, err := s.store.PendingExtension(ctx, initiativeID); err == nil {
		return Extension{}, ErrExtensionConflict
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Extension{}, err
	}

	ext := Extension{
		ID:           uuid.NewString(),
		InitiativeID: initiativeID,
		RequestedBy:  actor.ID,
		NewDueDate:   newDueDate,
		Reason:       reason,
		Status:       ExtensionPending,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateExtension(ctx, ext); err != nil {
		return Extension{}, err
	}

	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeExtensionRequested,
		Recipients: []string{initiative.CreatorID},
		Title:      "Extension requested",
		Body:       fmt.Sprintf("An extension for %q until %s was requested: %s", initiative.Title, newDueDate.Format("2006-01-02"), reason),
		RefID:      initiative.ID,
	})
	return ext, nil
}

// ReviewExtension resolves a PENDING extension. Approval moves the due
// date and clears an OVERDUE flag back to ONGOING.
func (s *Service) ReviewExtension(ctx context.Context, actor auth.User, extensionID string, approved bool, note string) (Extension, error) {
	ext, err := s.store.ExtensionByID(ctx, extensionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Extension{}, ErrNotFound
	}
	if err != nil {
		return Extension{}, err
	}
	if ext.Status != ExtensionPending {
		return Extension{}, ErrInvalidState
	}

	initiative, err := s.Get(ctx, ext.InitiativeID)
	if err != nil {
		return Extension{}, err
	}
	if initiative.CreatorID != actor.ID {
		return Extension{}, ErrForbidden
	}

	now := s.clock.Now()
	if approved {
		if err := s.store.ApproveExtension(ctx, extensionID, actor.ID, note, now); err != nil {
			return Extension{}, err
		}
		ext.Status = ExtensionApproved
	} else {
		if err := s.store.DenyExtension(ctx, extensionID, actor.ID, note, now); err != nil {
			return Extension{}, err
		}
		ext.Status = ExtensionDenied
	}
	ext.ReviewedBy = &actor.ID
	ext.ReviewedAt = &now
	if note != "" {
		ext.ReviewNote = &note
	}

	outcome := "denied"
	if approved {
		outcome = "approved"
	}
	s.notify(ctx, notifications.Event{
		Type:       notifications.TypeExtensionReviewed,
		Recipients: []string{ext.RequestedBy},
		Title:      "Extension " + outcome,
		Body:       fmt.Sprintf("Your extension request for %q was %s.", initiative.Title, outcome),
		RefID:      initiative.ID,
	})
	return ext, nil
}

// SweepOverdue marks every non-terminal initiative past its due date
// OVERDUE. Each row transition is guarded, so re-running over
// already-swept rows is a no-op. Returns the number of initiatives
// newly marked.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.OverdueCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, initiative := range candidates {
		changed, err := s.store.SetStatus(ctx, initiative.ID, initiative.Status, StatusOverdue)
		if err != nil {
			slog.Error("overdue sweep failed for initiative", "initiative", initiative.ID, "err", err)
			continue
		}
		if !changed {
			continue
		}
		marked++

		assignees, err := s.store.AssigneeIDs(ctx, initiative.ID)
		if err != nil {
			slog.Warn("overdue sweep assignee lookup failed", "initiative", initiative.ID, "err", err)
			assignees = nil
		}
		s.notify(ctx, notifications.Event{
			Type:       notifications.TypeInitiativeOverdue,
			Recipients: append(assignees, initiative.CreatorID),
			Title:      "Initiative overdue",
			Body:       fmt.Sprintf("%q passed its due date %s.", initiative.Title, initiative.DueDate.Format("2006-01-02")),
			RefID:      initiative.ID,
		})
	}
	return marked, nil
}

// CanSubmit reports whether the initiative accepts a submission right
// now, independent of who asks.
func (s *Service) CanSubmit(ctx context.Context, initiativeID string) (bool, error) {
	initiative, err := s.Get(ctx, initiativeID)
	if err != nil {
		return false, err
	}
	switch initiative.Status {
	case StatusOngoing:
		return true, nil
	case StatusOverdue:
		_, err := s.store.PendingExtension(ctx, initiativeID)
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, nil
	}
}

// CanView reports visibility: creator, assignee, team head, or a
// view-all holder whose scope covers the creator's organization.
func (s *Service) CanView(ctx context.Context, user auth.User, initiative Initiative) (bool, error) {
	if initiative.CreatorID == user.ID {
		return true, nil
	}
	if initiative.TeamHeadID != nil && *initiative.TeamHeadID == user.ID {
		return true, nil
	}
	assigned, err := s.isAssignee(ctx, initiative.ID, user.ID)
	if err != nil {
		return false, err
	}
	if assigned {
		return true, nil
	}
	viewAll, err := s.perms.HasPermission(ctx, user, auth.PermInitiativeViewAll)
	if err != nil {
		return false, err
	}
	if !viewAll {
		return false, nil
	}
	return s.perms.CanAccessOrganization(ctx, user, initiative.OrganizationID)
}

// ListForUser returns initiatives the user is involved in, plus every
// initiative in reach for view-all holders.
func (s *Service) ListForUser(ctx context.Context, user auth.User) ([]Initiative, error) {
	involved, err := s.store.InitiativesInvolving(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	viewAll, err := s.perms.HasPermission(ctx, user, auth.PermInitiativeViewAll)
	if err != nil {
		return nil, err
	}
	if !viewAll {
		return involved, nil
	}

	reach, err := s.perms.AccessibleOrganizations(ctx, user)
	if err != nil {
		return nil, err
	}
	orgIDs := make([]string, 0, len(reach))
	for id := range reach {
		orgIDs = append(orgIDs, id)
	}
	scoped, err := s.store.InitiativesByOrganizations(ctx, orgIDs)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	merged := make([]Initiative, 0, len(involved)+len(scoped))
	for _, i := range involved {
		seen[i.ID] = true
		merged = append(merged, i)
	}
	for _, i := range scoped {
		if !seen[i.ID] {
			merged = append(merged, i)
		}
	}
	return merged, nil
}

func (s *Service) SubmissionHistory(ctx context.Context, initiativeID string) ([]Submission, error) {
	if _, err := s.Get(ctx, initiativeID); err != nil {
		return nil, err
	}
	return s.store.Submissions(ctx, initiativeID)
}

// TaskPerformance is the average score over a user's approved
// initiatives, with the count of scored rows.
func (s *Service) TaskPerformance(ctx context.Context, userID string) (float64, int, error) {
	return s.store.AverageApprovedScore(ctx, userID)
}

func (s *Service) authorizeSubmitter(ctx context.Context, actor auth.User, initiative Initiative) error {
	if initiative.Type == TypeGroup {
		if initiative.TeamHeadID == nil || *initiative.TeamHeadID != actor.ID {
			return ErrForbidden
		}
		return nil
	}
	assigned, err := s.isAssignee(ctx, initiative.ID, actor.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return ErrForbidden
	}
	return nil
}

func (s *Service) isAssignee(ctx context.Context, initiativeID, userID string) (bool, error) {
	ids, err := s.store.AssigneeIDs(ctx, initiativeID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) notify(ctx context.Context, ev notifications.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ev)
}

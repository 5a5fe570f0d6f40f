package initiatives

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/notifications"
	"pms/internal/platform/clock"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	initiatives map[string]*Initiative
	assignees   map[string][]string
	submissions []Submission
	extensions  map[string]*Extension
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		initiatives: map[string]*Initiative{},
		assignees:   map[string][]string{},
		extensions:  map[string]*Extension{},
	}
}

func (f *fakeStore) InitiativeByID(ctx context.Context, id string) (Initiative, error) {
	i, ok := f.initiatives[id]
	if !ok {
		return Initiative{}, pgx.ErrNoRows
	}
	return *i, nil
}

func (f *fakeStore) AssigneeIDs(ctx context.Context, id string) ([]string, error) {
	return f.assignees[id], nil
}

func (f *fakeStore) CreateInitiative(ctx context.Context, initiative Initiative, assigneeIDs []string) error {
	i := initiative
	f.initiatives[initiative.ID] = &i
	f.assignees[initiative.ID] = assigneeIDs
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, id string, from, to InitiativeStatus) (bool, error) {
	i := f.initiatives[id]
	if i.Status != from {
		return false, nil
	}
	i.Status = to
	return true, nil
}

func (f *fakeStore) SetReview(ctx context.Context, id string, score float64, feedback string, at time.Time, status InitiativeStatus) error {
	i := f.initiatives[id]
	i.Status = status
	i.Score = &score
	i.Feedback = &feedback
	i.ReviewedAt = &at
	return nil
}

func (f *fakeStore) InsertSubmission(ctx context.Context, submission Submission) error {
	f.submissions = append(f.submissions, submission)
	return nil
}

func (f *fakeStore) Submissions(ctx context.Context, id string) ([]Submission, error) {
	var out []Submission
	for _, s := range f.submissions {
		if s.InitiativeID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingExtension(ctx context.Context, id string) (Extension, error) {
	for _, e := range f.extensions {
		if e.InitiativeID == id && e.Status == ExtensionPending {
			return *e, nil
		}
	}
	return Extension{}, pgx.ErrNoRows
}

func (f *fakeStore) ExtensionByID(ctx context.Context, id string) (Extension, error) {
	e, ok := f.extensions[id]
	if !ok {
		return Extension{}, pgx.ErrNoRows
	}
	return *e, nil
}

func (f *fakeStore) CreateExtension(ctx context.Context, extension Extension) error {
	e := extension
	f.extensions[extension.ID] = &e
	return nil
}

func (f *fakeStore) ApproveExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error {
	e := f.extensions[extensionID]
	e.Status = ExtensionApproved
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &at
	i := f.initiatives[e.InitiativeID]
	i.DueDate = e.NewDueDate
	if i.Status == StatusOverdue {
		i.Status = StatusOngoing
	}
	return nil
}

func (f *fakeStore) DenyExtension(ctx context.Context, extensionID, reviewerID, note string, at time.Time) error {
	e := f.extensions[extensionID]
	e.Status = ExtensionDenied
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &at
	return nil
}

func (f *fakeStore) InitiativesInvolving(ctx context.Context, userID string) ([]Initiative, error) {
	var out []Initiative
	for _, i := range f.initiatives {
		involved := i.CreatorID == userID || (i.TeamHeadID != nil && *i.TeamHeadID == userID)
		for _, a := range f.assignees[i.ID] {
			if a == userID {
				involved = true
			}
		}
		if involved {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (f *fakeStore) InitiativesByOrganizations(ctx context.Context, orgIDs []string) ([]Initiative, error) {
	set := map[string]bool{}
	for _, id := range orgIDs {
		set[id] = true
	}
	var out []Initiative
	for _, i := range f.initiatives {
		if set[i.OrganizationID] {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (f *fakeStore) OverdueCandidates(ctx context.Context, now time.Time) ([]Initiative, error) {
	var out []Initiative
	for _, i := range f.initiatives {
		if i.DueDate.Before(now) && i.Status != StatusApproved && i.Status != StatusOverdue {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (f *fakeStore) AverageApprovedScore(ctx context.Context, userID string) (float64, int, error) {
	var sum float64
	count := 0
	for _, i := range f.initiatives {
		if i.Status != StatusApproved || i.Score == nil {
			continue
		}
		for _, a := range f.assignees[i.ID] {
			if a == userID {
				sum += *i.Score
				count++
			}
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return sum / float64(count), count, nil
}

type fakeAuthorizer struct {
	perms map[string]map[auth.Permission]bool
	users map[string]auth.User
}

func (f *fakeAuthorizer) HasPermission(ctx context.Context, user auth.User, permission auth.Permission) (bool, error) {
	return f.perms[user.ID][permission], nil
}

func (f *fakeAuthorizer) CanAccessOrganization(ctx context.Context, user auth.User, orgID string) (bool, error) {
	return user.OrganizationID == orgID, nil
}

func (f *fakeAuthorizer) AccessibleOrganizations(ctx context.Context, user auth.User) (map[string]bool, error) {
	return map[string]bool{user.OrganizationID: true}, nil
}

func (f *fakeAuthorizer) UserByID(ctx context.Context, userID string) (auth.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, ev notifications.Event) {
	r.events = append(r.events, ev)
}

func strPtr(s string) *string { return &s }

func newTestService(store *fakeStore, authz *fakeAuthorizer, notifier *recordingNotifier) *Service {
	if authz == nil {
		authz = &fakeAuthorizer{perms: map[string]map[auth.Permission]bool{}, users: map[string]auth.User{}}
	}
	if notifier == nil {
		notifier = &recordingNotifier{}
	}
	return NewService(store, authz, notifier, clock.Fixed(testNow))
}

func creatorAuthorizer() *fakeAuthorizer {
	return &fakeAuthorizer{
		perms: map[string]map[auth.Permission]bool{
			"creator": {auth.PermInitiativeCreate: true},
		},
		users: map[string]auth.User{
			"a1":   {ID: "a1", OrganizationID: "org", Status: auth.UserStatusActive},
			"a2":   {ID: "a2", OrganizationID: "org", Status: auth.UserStatusActive},
			"gone": {ID: "gone", OrganizationID: "org", Status: auth.UserStatusArchived},
		},
	}
}

func seedInitiative(store *fakeStore, id string, itype InitiativeType, status InitiativeStatus, assignees []string, teamHead *string) {
	store.initiatives[id] = &Initiative{
		ID: id, Title: id, Type: itype, Urgency: UrgencyMedium, Status: status,
		DueDate: testNow.Add(72 * time.Hour), CreatorID: "creator", OrganizationID: "org",
		TeamHeadID: teamHead, CreatedAt: testNow,
	}
	store.assignees[id] = assignees
}

func TestCreateGroupRequiresTeamHeadAmongAssignees(t *testing.T) {
	svc := newTestService(newFakeStore(), creatorAuthorizer(), nil)
	creator := auth.User{ID: "creator", OrganizationID: "org"}

	_, err := svc.Create(context.Background(), creator, CreateInitiativeInput{
		Title: "launch", Type: TypeGroup, DueDate: testNow.Add(time.Hour),
		AssigneeIDs: []string{"a1", "a2"}, TeamHeadID: strPtr("outsider"),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateIndividualTakesExactlyOneAssignee(t *testing.T) {
	svc := newTestService(newFakeStore(), creatorAuthorizer(), nil)
	creator := auth.User{ID: "creator", OrganizationID: "org"}

	_, err := svc.Create(context.Background(), creator, CreateInitiativeInput{
		Title: "solo", Type: TypeIndividual, DueDate: testNow.Add(time.Hour),
		AssigneeIDs: []string{"a1", "a2"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateRejectsInactiveAssignee(t *testing.T) {
	svc := newTestService(newFakeStore(), creatorAuthorizer(), nil)
	creator := auth.User{ID: "creator", OrganizationID: "org"}

	_, err := svc.Create(context.Background(), creator, CreateInitiativeInput{
		Title: "solo", Type: TypeIndividual, DueDate: testNow.Add(time.Hour),
		AssigneeIDs: []string{"gone"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for archived assignee, got %v", err)
	}
}

func TestCreateNotifiesAssignees(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(newFakeStore(), creatorAuthorizer(), notifier)
	creator := auth.User{ID: "creator", OrganizationID: "org"}

	initiative, err := svc.Create(context.Background(), creator, CreateInitiativeInput{
		Title: "launch", Type: TypeGroup, DueDate: testNow.Add(time.Hour),
		AssigneeIDs: []string{"a1", "a2"}, TeamHeadID: strPtr("a1"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if initiative.Status != StatusPending {
		t.Fatalf("new initiatives start PENDING, got %s", initiative.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != notifications.TypeInitiativeAssigned {
		t.Fatalf("expected assignment notification, got %+v", notifier.events)
	}
	if len(notifier.events[0].Recipients) != 2 {
		t.Fatalf("all assignees should be notified, got %v", notifier.events[0].Recipients)
	}
}

func TestStartOnlyByAssigneeFromPending(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusPending, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)

	if _, err := svc.Start(context.Background(), auth.User{ID: "stranger"}, "i1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	initiative, err := svc.Start(context.Background(), auth.User{ID: "a1"}, "i1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if initiative.Status != StatusOngoing {
		t.Fatalf("expected ONGOING, got %s", initiative.Status)
	}

	if _, err := svc.Start(context.Background(), auth.User{ID: "a1"}, "i1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("restarting should fail, got %v", err)
	}
}

func TestSubmitMovesToPendingReview(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOngoing, []string{"a1"}, nil)
	notifier := &recordingNotifier{}
	svc := newTestService(store, nil, notifier)

	initiative, err := svc.Submit(context.Background(), auth.User{ID: "a1"}, "i1", "all done", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if initiative.Status != StatusPendingReview {
		t.Fatalf("expected PENDING_REVIEW, got %s", initiative.Status)
	}
	if len(store.submissions) != 1 || store.submissions[0].Report != "all done" {
		t.Fatalf("submission row missing: %+v", store.submissions)
	}
	if len(notifier.events) != 1 || notifier.events[0].Recipients[0] != "creator" {
		t.Fatalf("creator should be notified, got %+v", notifier.events)
	}
}

func TestGroupSubmitIsTeamHeadOnly(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeGroup, StatusOngoing, []string{"a1", "a2"}, strPtr("a1"))
	svc := newTestService(store, nil, nil)

	if _, err := svc.Submit(context.Background(), auth.User{ID: "a2"}, "i1", "done", nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain member must not submit a group initiative, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), auth.User{ID: "a1"}, "i1", "done", nil); err != nil {
		t.Fatalf("team head submit failed: %v", err)
	}
}

func TestOverdueSubmitBlockedByPendingExtension(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOverdue, []string{"a1"}, nil)
	store.extensions["e1"] = &Extension{
		ID: "e1", InitiativeID: "i1", RequestedBy: "a1",
		NewDueDate: testNow.Add(96 * time.Hour), Status: ExtensionPending,
	}
	svc := newTestService(store, nil, nil)

	if _, err := svc.Submit(context.Background(), auth.User{ID: "a1"}, "i1", "late", nil); !errors.Is(err, ErrExtensionBlocks) {
		t.Fatalf("expected ErrExtensionBlocks, got %v", err)
	}

	ok, err := svc.CanSubmit(context.Background(), "i1")
	if err != nil {
		t.Fatalf("canSubmit failed: %v", err)
	}
	if ok {
		t.Fatal("overdue with pending extension must not be submittable")
	}
}

func TestOverdueSubmitAllowedWithoutExtension(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOverdue, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)

	ok, err := svc.CanSubmit(context.Background(), "i1")
	if err != nil {
		t.Fatalf("canSubmit failed: %v", err)
	}
	if !ok {
		t.Fatal("overdue without extension should be submittable")
	}
	if _, err := svc.Submit(context.Background(), auth.User{ID: "a1"}, "i1", "late but done", nil); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
}

func TestReviewRedoLoopRecordsScore(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusPendingReview, []string{"a1"}, nil)
	notifier := &recordingNotifier{}
	svc := newTestService(store, nil, notifier)
	creator := auth.User{ID: "creator"}

	initiative, err := svc.Review(context.Background(), creator, "i1", 4, "needs more depth", false)
	if err != nil {
		t.Fatalf("redo review failed: %v", err)
	}
	if initiative.Status != StatusOngoing {
		t.Fatalf("redo should return to ONGOING, got %s", initiative.Status)
	}
	if initiative.Score == nil || *initiative.Score != 4 {
		t.Fatalf("redo still records the score, got %+v", initiative.Score)
	}

	store.initiatives["i1"].Status = StatusPendingReview
	initiative, err = svc.Review(context.Background(), creator, "i1", 9, "great", true)
	if err != nil {
		t.Fatalf("approve review failed: %v", err)
	}
	if initiative.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", initiative.Status)
	}
}

func TestReviewValidatesScoreAndReviewer(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusPendingReview, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)

	if _, err := svc.Review(context.Background(), auth.User{ID: "a1"}, "i1", 5, "", true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the creator reviews, got %v", err)
	}
	if _, err := svc.Review(context.Background(), auth.User{ID: "creator"}, "i1", 11, "", true); !errors.Is(err, ErrScoreRange) {
		t.Fatalf("expected ErrScoreRange, got %v", err)
	}
	if _, err := svc.Review(context.Background(), auth.User{ID: "creator"}, "i1", 0, "", true); !errors.Is(err, ErrScoreRange) {
		t.Fatalf("expected ErrScoreRange, got %v", err)
	}
}

func TestSecondPendingExtensionConflicts(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOngoing, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)
	assignee := auth.User{ID: "a1"}

	if _, err := svc.RequestExtension(context.Background(), assignee, "i1", testNow.Add(120*time.Hour), "more scope"); err != nil {
		t.Fatalf("first extension failed: %v", err)
	}
	_, err := svc.RequestExtension(context.Background(), assignee, "i1", testNow.Add(150*time.Hour), "even more")
	if !errors.Is(err, ErrExtensionConflict) {
		t.Fatalf("expected ErrExtensionConflict, got %v", err)
	}
}

func TestApprovedExtensionMovesDueDateAndClearsOverdue(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOverdue, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)

	newDue := testNow.Add(240 * time.Hour)
	ext, err := svc.RequestExtension(context.Background(), auth.User{ID: "a1"}, "i1", newDue, "supplier delay")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	reviewed, err := svc.ReviewExtension(context.Background(), auth.User{ID: "creator"}, ext.ID, true, "fine")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != ExtensionApproved {
		t.Fatalf("expected APPROVED, got %s", reviewed.Status)
	}
	i := store.initiatives["i1"]
	if !i.DueDate.Equal(newDue) {
		t.Fatalf("due date should move to %v, got %v", newDue, i.DueDate)
	}
	if i.Status != StatusOngoing {
		t.Fatalf("overdue flag should clear to ONGOING, got %s", i.Status)
	}
}

func TestDeniedExtensionLeavesDueDate(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusOverdue, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)
	originalDue := store.initiatives["i1"].DueDate

	ext, err := svc.RequestExtension(context.Background(), auth.User{ID: "a1"}, "i1", testNow.Add(240*time.Hour), "slipped")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := svc.ReviewExtension(context.Background(), auth.User{ID: "a1"}, ext.ID, false, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the creator reviews extensions, got %v", err)
	}
	if _, err := svc.ReviewExtension(context.Background(), auth.User{ID: "creator"}, ext.ID, false, "deadline stands"); err != nil {
		t.Fatalf("deny failed: %v", err)
	}
	if !store.initiatives["i1"].DueDate.Equal(originalDue) {
		t.Fatal("denied extension must not move the due date")
	}
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "late", TypeIndividual, StatusOngoing, []string{"a1"}, nil)
	store.initiatives["late"].DueDate = testNow.Add(-24 * time.Hour)
	seedInitiative(store, "ontime", TypeIndividual, StatusOngoing, []string{"a2"}, nil)
	seedInitiative(store, "done", TypeIndividual, StatusApproved, []string{"a1"}, nil)
	store.initiatives["done"].DueDate = testNow.Add(-48 * time.Hour)
	notifier := &recordingNotifier{}
	svc := newTestService(store, nil, notifier)

	marked, err := svc.SweepOverdue(context.Background(), testNow)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 initiative marked, got %d", marked)
	}
	if store.initiatives["late"].Status != StatusOverdue {
		t.Fatalf("expected OVERDUE, got %s", store.initiatives["late"].Status)
	}
	if store.initiatives["done"].Status != StatusApproved {
		t.Fatal("approved initiatives are never swept")
	}

	marked, err = svc.SweepOverdue(context.Background(), testNow)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if marked != 0 {
		t.Fatalf("re-sweep must be a no-op, got %d", marked)
	}
}

func TestVisibilityAndListing(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "mine", TypeIndividual, StatusOngoing, []string{"a1"}, nil)
	seedInitiative(store, "foreign", TypeIndividual, StatusOngoing, []string{"a2"}, nil)
	authz := &fakeAuthorizer{perms: map[string]map[auth.Permission]bool{}, users: map[string]auth.User{}}
	svc := newTestService(store, authz, nil)

	ok, err := svc.CanView(context.Background(), auth.User{ID: "a1"}, *store.initiatives["mine"])
	if err != nil || !ok {
		t.Fatalf("assignee should see their initiative: ok=%v err=%v", ok, err)
	}
	ok, err = svc.CanView(context.Background(), auth.User{ID: "a1"}, *store.initiatives["foreign"])
	if err != nil || ok {
		t.Fatalf("uninvolved user without view-all must not see it: ok=%v err=%v", ok, err)
	}

	list, err := svc.ListForUser(context.Background(), auth.User{ID: "a1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "mine" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestTaskPerformanceAveragesApprovedScores(t *testing.T) {
	store := newFakeStore()
	seedInitiative(store, "i1", TypeIndividual, StatusApproved, []string{"a1"}, nil)
	score1 := 8.0
	store.initiatives["i1"].Score = &score1
	seedInitiative(store, "i2", TypeIndividual, StatusApproved, []string{"a1"}, nil)
	score2 := 6.0
	store.initiatives["i2"].Score = &score2
	seedInitiative(store, "i3", TypeIndividual, StatusOngoing, []string{"a1"}, nil)
	svc := newTestService(store, nil, nil)

	avg, count, err := svc.TaskPerformance(context.Background(), "a1")
	if err != nil {
		t.Fatalf("task performance failed: %v", err)
	}
	if count != 2 || avg != 7 {
		t.Fatalf("expected avg 7 over 2 initiatives, got %v over %d", avg, count)
	}
}

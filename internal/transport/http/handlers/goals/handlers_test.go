package goalshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/goals"
	"pms/internal/domain/notifications"
	"pms/internal/platform/clock"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	goals map[string]*goals.Goal
}

func newFakeStore() *fakeStore {
	return &fakeStore{goals: map[string]*goals.Goal{}}
}

func (f *fakeStore) GoalByID(ctx context.Context, goalID string) (goals.Goal, error) {
	g, ok := f.goals[goalID]
	if !ok {
		return goals.Goal{}, pgx.ErrNoRows
	}
	return *g, nil
}

func (f *fakeStore) ChildGoals(ctx context.Context, parentID string) ([]goals.Goal, error) {
	var out []goals.Goal
	for _, g := range f.goals {
		if g.ParentID != nil && *g.ParentID == parentID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeStore) ListGoals(ctx context.Context, filter goals.ListFilter) ([]goals.Goal, error) {
	var out []goals.Goal
	for _, g := range f.goals {
		if filter.OwnerID != "" && g.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (f *fakeStore) CreateGoal(ctx context.Context, goal goals.Goal) error {
	stored := goal
	f.goals[goal.ID] = &stored
	return nil
}

func (f *fakeStore) SetProgress(ctx context.Context, goalID string, progress float64) error {
	f.goals[goalID].ProgressPercentage = progress
	return nil
}

func (f *fakeStore) MarkAchieved(ctx context.Context, goalID string, at time.Time) error {
	g := f.goals[goalID]
	if g.Status == goals.StatusActive {
		g.Status = goals.StatusAchieved
		g.ProgressPercentage = 100
		g.AchievedAt = &at
	}
	return nil
}

func (f *fakeStore) MarkDiscarded(ctx context.Context, goalID, reason string, at time.Time) error {
	g := f.goals[goalID]
	if g.Status == goals.StatusActive {
		g.Status = goals.StatusDiscarded
		g.DiscardReason = &reason
		g.DiscardedAt = &at
	}
	return nil
}

func (f *fakeStore) SetApproval(ctx context.Context, goalID string, status goals.GoalStatus, actorID string, at time.Time, rejectionReason string) error {
	g := f.goals[goalID]
	if g.Status == goals.StatusPendingApproval {
		g.Status = status
		g.ApprovedBy = &actorID
		g.ApprovedAt = &at
	}
	return nil
}

func (f *fakeStore) FreezeIndividualGoals(ctx context.Context, quarter goals.Quarter, year int, actorID string, at time.Time) (int, error) {
	count := 0
	for _, g := range f.goals {
		if g.Type == goals.TypeIndividual && !g.Frozen && g.Quarter != nil && *g.Quarter == quarter && g.Year != nil && *g.Year == year {
			g.Frozen = true
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertProgressReport(ctx context.Context, report goals.ProgressReport) error {
	return nil
}

func (f *fakeStore) ProgressReports(ctx context.Context, goalID string) ([]goals.ProgressReport, error) {
	return nil, nil
}

type fakeAuthorizer struct {
	perms map[string]map[auth.Permission]bool
	users map[string]auth.User
}

func (f fakeAuthorizer) HasPermission(ctx context.Context, user auth.User, permission auth.Permission) (bool, error) {
	return f.perms[user.ID][permission], nil
}

func (f fakeAuthorizer) CanAccessOrganization(ctx context.Context, user auth.User, orgID string) (bool, error) {
	return user.OrganizationID == orgID, nil
}

func (f fakeAuthorizer) SuperviseeIDs(ctx context.Context, supervisorID string) ([]string, error) {
	return nil, nil
}

func (f fakeAuthorizer) UserByID(ctx context.Context, userID string) (auth.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, ev notifications.Event) {}

func newTestRouter(store *fakeStore, authz fakeAuthorizer) chi.Router {
	svc := goals.NewService(store, authz, noopNotifier{}, clock.Fixed(testNow))
	handler := NewHandler(svc, authz, nil)
	router := chi.NewRouter()
	router.Route("/api/v1", handler.RegisterRoutes)
	return router
}

func doJSON(t *testing.T, router chi.Router, user auth.User, method, path, body string) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope api.Envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, envelope
}

func staffUser() auth.User {
	return auth.User{ID: "u1", OrganizationID: "org1", Status: auth.UserStatusActive}
}

func TestCreateGoalRejectsMissingTitle(t *testing.T) {
	router := newTestRouter(newFakeStore(), fakeAuthorizer{})

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals", `{"type":"INDIVIDUAL"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "validation_error" {
		t.Fatalf("error = %+v, want validation_error", envelope.Error)
	}
}

func TestCreateIndividualGoalWithoutQuarter(t *testing.T) {
	router := newTestRouter(newFakeStore(), fakeAuthorizer{})

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals",
		`{"title":"Ship the migration","type":"INDIVIDUAL"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "quarter_required" {
		t.Fatalf("error = %+v, want quarter_required", envelope.Error)
	}
}

func TestCreateIndividualGoalSucceeds(t *testing.T) {
	store := newFakeStore()
	authz := fakeAuthorizer{users: map[string]auth.User{"u1": staffUser()}}
	router := newTestRouter(store, authz)

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals",
		`{"title":"Ship the migration","type":"INDIVIDUAL","quarter":"Q2","year":2026}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("envelope not successful: %+v", envelope)
	}
	if len(store.goals) != 1 {
		t.Fatalf("stored goals = %d, want 1", len(store.goals))
	}
	for _, g := range store.goals {
		if g.Status != goals.StatusPendingApproval {
			t.Fatalf("status = %s, want PENDING_APPROVAL", g.Status)
		}
	}
}

func TestCreateDepartmentalGoalNeedsPermission(t *testing.T) {
	router := newTestRouter(newFakeStore(), fakeAuthorizer{})

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals",
		`{"title":"Raise uptime","type":"DEPARTMENTAL"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "forbidden" {
		t.Fatalf("error = %+v, want forbidden", envelope.Error)
	}
}

func TestUpdateProgressOnUnknownGoal(t *testing.T) {
	router := newTestRouter(newFakeStore(), fakeAuthorizer{})

	rec, _ := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals/missing/progress",
		`{"percentage":50}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateProgressAchievesLeafGoal(t *testing.T) {
	store := newFakeStore()
	store.goals["g1"] = &goals.Goal{
		ID: "g1", Title: "Leaf", Type: goals.TypeIndividual, Status: goals.StatusActive,
		OwnerID: "u1", CreatorID: "u1", OrganizationID: "org1",
	}
	router := newTestRouter(store, fakeAuthorizer{})

	rec, _ := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals/g1/progress",
		`{"percentage":100,"report":"done"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.goals["g1"].Status != goals.StatusAchieved {
		t.Fatalf("status = %s, want ACHIEVED", store.goals["g1"].Status)
	}
}

func TestDiscardFrozenGoalConflicts(t *testing.T) {
	store := newFakeStore()
	store.goals["g1"] = &goals.Goal{
		ID: "g1", Title: "Leaf", Type: goals.TypeIndividual, Status: goals.StatusActive,
		OwnerID: "u1", CreatorID: "u1", OrganizationID: "org1", Frozen: true,
	}
	router := newTestRouter(store, fakeAuthorizer{})

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals/g1/discard",
		`{"reason":"no longer relevant"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "goal_frozen" {
		t.Fatalf("error = %+v, want goal_frozen", envelope.Error)
	}
}

func TestFreezeRequiresPermission(t *testing.T) {
	router := newTestRouter(newFakeStore(), fakeAuthorizer{})

	rec, _ := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals/freeze",
		`{"quarter":"Q2","year":2026}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestFreezeReportsCount(t *testing.T) {
	store := newFakeStore()
	quarter := goals.Q2
	year := 2026
	store.goals["g1"] = &goals.Goal{
		ID: "g1", Type: goals.TypeIndividual, Status: goals.StatusActive,
		OwnerID: "u2", CreatorID: "u2", OrganizationID: "org1", Quarter: &quarter, Year: &year,
	}
	authz := fakeAuthorizer{perms: map[string]map[auth.Permission]bool{
		"u1": {auth.PermGoalFreeze: true},
	}}
	router := newTestRouter(store, authz)

	rec, envelope := doJSON(t, router, staffUser(), http.MethodPost, "/api/v1/goals/freeze",
		`{"quarter":"Q2","year":2026}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data, _ := envelope.Data.(map[string]any)
	if data["frozen"] != float64(1) {
		t.Fatalf("frozen = %v, want 1", data["frozen"])
	}
}

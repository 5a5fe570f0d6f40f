package goalshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pms/internal/domain/auth"
	"pms/internal/domain/goals"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
	"pms/internal/transport/http/shared"
)

type Handler struct {
	Goals *goals.Service
	Perms middleware.PermissionChecker
	DB    *pgxpool.Pool
}

func NewHandler(goalsSvc *goals.Service, perms middleware.PermissionChecker, db *pgxpool.Pool) *Handler {
	return &Handler{Goals: goalsSvc, Perms: perms, DB: db}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.With(middleware.RequirePermission(auth.PermGoalFreeze, h.Perms)).Post("/freeze", h.handleFreeze)
		r.Get("/{goalID}", h.handleGet)
		r.Get("/{goalID}/children", h.handleChildren)
		r.Get("/{goalID}/hierarchy", h.handleHierarchy)
		r.Get("/{goalID}/progress-reports", h.handleProgressReports)
		r.Post("/{goalID}/progress", h.handleUpdateProgress)
		r.Post("/{goalID}/discard", h.handleDiscard)
		r.Post("/{goalID}/approval", h.handleApproval)
	})
}

func failGoal(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, goals.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "goal not found", requestID)
	case errors.Is(err, goals.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, goals.ErrGoalFrozen):
		api.Fail(w, http.StatusConflict, "goal_frozen", "goal is frozen for this quarter", requestID)
	case errors.Is(err, goals.ErrHasChildren):
		api.Fail(w, http.StatusConflict, "derived_progress", "progress is derived from child goals", requestID)
	case errors.Is(err, goals.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "operation not valid in current goal state", requestID)
	case errors.Is(err, goals.ErrInvalidParent):
		api.Fail(w, http.StatusBadRequest, "invalid_parent", "goal type not allowed under parent", requestID)
	case errors.Is(err, goals.ErrQuarterRequired):
		api.Fail(w, http.StatusBadRequest, "quarter_required", "individual goals require quarter and year", requestID)
	case errors.Is(err, goals.ErrReasonRequired):
		api.Fail(w, http.StatusBadRequest, "reason_required", "a reason is required", requestID)
	case errors.Is(err, goals.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, goals.ErrCascadeDepth):
		api.Fail(w, http.StatusInternalServerError, "hierarchy_error", "goal hierarchy is corrupted", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "goal_error", "goal operation failed", requestID)
	}
}

type createGoalPayload struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Type           goals.GoalType `json:"type"`
	ParentID       *string        `json:"parentId"`
	OwnerID        string         `json:"ownerId"`
	OrganizationID string         `json:"organizationId"`
	Quarter        *goals.Quarter `json:"quarter"`
	Year           *int           `json:"year"`
	StartDate      string         `json:"startDate"`
	EndDate        string         `json:"endDate"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload createGoalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title, "title is required")
	v.Required("type", string(payload.Type), "type is required")
	in := goals.CreateGoalInput{
		Title:          payload.Title,
		Description:    payload.Description,
		Type:           payload.Type,
		ParentID:       payload.ParentID,
		OwnerID:        payload.OwnerID,
		OrganizationID: payload.OrganizationID,
		Quarter:        payload.Quarter,
		Year:           payload.Year,
	}
	if payload.StartDate != "" {
		if start, ok := v.Date("startDate", payload.StartDate); ok {
			in.StartDate = &start
		}
	}
	if payload.EndDate != "" {
		if end, ok := v.Date("endDate", payload.EndDate); ok {
			in.EndDate = &end
		}
	}
	if in.StartDate != nil && in.EndDate != nil {
		v.DateOrder("startDate", *in.StartDate, "endDate", *in.EndDate)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	goal, err := h.Goals.Create(r.Context(), user, in)
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, goal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	filter := filterFromQuery(r)

	list, err := h.Goals.ListForUser(r.Context(), user, filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "goal_list_failed", "failed to list goals", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	stats, err := h.Goals.StatsForUser(r.Context(), user, filterFromQuery(r))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "goal_stats_failed", "failed to compute stats", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	goal, err := h.Goals.Get(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	visible, err := h.Goals.CanView(r.Context(), user, goal)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "scope_error", "scope check failed", middleware.GetRequestID(r.Context()))
		return
	}
	if !visible {
		api.Fail(w, http.StatusForbidden, "forbidden", "goal out of scope", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, goal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.Goals.Children(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, children, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	node, err := h.Goals.Hierarchy(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, node, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProgressReports(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reports, err := h.Goals.ProgressHistory(r.Context(), user, chi.URLParam(r, "goalID"))
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, reports, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Percentage float64 `json:"percentage"`
		Report     string  `json:"report"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	goal, err := h.Goals.UpdateProgress(r.Context(), user, chi.URLParam(r, "goalID"), payload.Percentage, payload.Report)
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, goal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	goal, err := h.Goals.Discard(r.Context(), user, chi.URLParam(r, "goalID"), payload.Reason)
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, goal, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproval(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Approved        bool   `json:"approved"`
		RejectionReason string `json:"rejectionReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	goal, err := h.Goals.Approve(r.Context(), user, chi.URLParam(r, "goalID"), payload.Approved, payload.RejectionReason)
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, goal, middleware.GetRequestID(r.Context()))
}

type freezePayload struct {
	Quarter goals.Quarter `json:"quarter"`
	Year    int           `json:"year"`
}

// handleFreeze supports Idempotency-Key so a retried freeze reports the
// original count instead of zero.
func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload freezePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !goals.ValidQuarter(payload.Quarter) || payload.Year == 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "quarter and year are required", middleware.GetRequestID(r.Context()))
		return
	}

	raw, _ := json.Marshal(payload)
	requestHash := middleware.RequestHash(raw)
	idempotencyKey := r.Header.Get("Idempotency-Key")
	endpoint := "goals.freeze"

	if idempotencyKey != "" {
		stored, found, err := middleware.CheckIdempotency(r.Context(), h.DB, user.ID, endpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, stored, middleware.GetRequestID(r.Context()))
			return
		}
	}

	count, err := h.Goals.FreezeQuarter(r.Context(), user, payload.Quarter, payload.Year)
	if err != nil {
		failGoal(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	result := map[string]any{"frozen": count, "quarter": payload.Quarter, "year": payload.Year}
	if idempotencyKey != "" {
		encoded, _ := json.Marshal(result)
		if err := middleware.SaveIdempotency(r.Context(), h.DB, user.ID, endpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func filterFromQuery(r *http.Request) goals.ListFilter {
	q := r.URL.Query()
	filter := goals.ListFilter{
		Type:           goals.GoalType(q.Get("type")),
		Status:         goals.GoalStatus(q.Get("status")),
		OwnerID:        q.Get("ownerId"),
		OrganizationID: q.Get("organizationId"),
		ParentID:       q.Get("parentId"),
		Quarter:        goals.Quarter(q.Get("quarter")),
		RootOnly:       q.Get("rootOnly") == "true",
	}
	if raw := q.Get("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			filter.Year = year
		}
	}
	return filter
}

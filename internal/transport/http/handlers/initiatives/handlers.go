package initiativeshandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/initiatives"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
	"pms/internal/transport/http/shared"
)

type Handler struct {
	Initiatives *initiatives.Service
	Perms       middleware.PermissionChecker
}

func NewHandler(initiativesSvc *initiatives.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{Initiatives: initiativesSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/initiatives", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.With(middleware.RequirePermission(auth.PermInitiativeCreate, h.Perms)).Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{initiativeID}", h.handleGet)
		r.Get("/{initiativeID}/submissions", h.handleSubmissions)
		r.Post("/{initiativeID}/start", h.handleStart)
		r.Post("/{initiativeID}/submit", h.handleSubmit)
		r.Post("/{initiativeID}/review", h.handleReview)
		r.Post("/{initiativeID}/extensions", h.handleRequestExtension)
		r.Post("/extensions/{extensionID}/review", h.handleReviewExtension)
	})
}

func failInitiative(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, initiatives.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "initiative not found", requestID)
	case errors.Is(err, initiatives.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, initiatives.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "operation not valid in current state", requestID)
	case errors.Is(err, initiatives.ErrScoreRange):
		api.Fail(w, http.StatusBadRequest, "score_range", "score must be between 1 and 10", requestID)
	case errors.Is(err, initiatives.ErrExtensionConflict):
		api.Fail(w, http.StatusConflict, "extension_conflict", "a pending extension already exists", requestID)
	case errors.Is(err, initiatives.ErrExtensionBlocks):
		api.Fail(w, http.StatusConflict, "extension_pending", "pending extension must be resolved before submission", requestID)
	case errors.Is(err, initiatives.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "initiative_error", "initiative operation failed", requestID)
	}
}

type createInitiativePayload struct {
	Title       string                      `json:"title"`
	Description string                      `json:"description"`
	Type        initiatives.InitiativeType  `json:"type"`
	Urgency     initiatives.Urgency         `json:"urgency"`
	DueDate     string                      `json:"dueDate"`
	AssigneeIDs []string                    `json:"assigneeIds"`
	TeamHeadID  *string                     `json:"teamHeadId"`
	GoalID      *string                     `json:"goalId"`
	Documents   []string                    `json:"documents"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload createInitiativePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title, "title is required")
	v.Required("type", string(payload.Type), "type is required")
	v.Required("dueDate", payload.DueDate, "dueDate is required")
	if len(payload.AssigneeIDs) == 0 {
		v.Add("assigneeIds", "at least one assignee is required")
	}
	dueDate, ok := v.Date("dueDate", payload.DueDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) || !ok {
		return
	}

	initiative, err := h.Initiatives.Create(r.Context(), user, initiatives.CreateInitiativeInput{
		Title:       payload.Title,
		Description: payload.Description,
		Type:        payload.Type,
		Urgency:     payload.Urgency,
		DueDate:     dueDate,
		AssigneeIDs: payload.AssigneeIDs,
		TeamHeadID:  payload.TeamHeadID,
		GoalID:      payload.GoalID,
		Documents:   payload.Documents,
	})
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, initiative, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	list, err := h.Initiatives.ListForUser(r.Context(), user)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "initiative_list_failed", "failed to list initiatives", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	initiative, err := h.Initiatives.Get(r.Context(), chi.URLParam(r, "initiativeID"))
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	visible, err := h.Initiatives.CanView(r.Context(), user, initiative)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "scope_error", "scope check failed", middleware.GetRequestID(r.Context()))
		return
	}
	if !visible {
		api.Fail(w, http.StatusForbidden, "forbidden", "initiative out of scope", middleware.GetRequestID(r.Context()))
		return
	}

	canSubmit, err := h.Initiatives.CanSubmit(r.Context(), initiative.ID)
	if err != nil {
		canSubmit = false
	}
	api.Success(w, map[string]any{"initiative": initiative, "canSubmit": canSubmit}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.Initiatives.SubmissionHistory(r.Context(), chi.URLParam(r, "initiativeID"))
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, submissions, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	initiative, err := h.Initiatives.Start(r.Context(), user, chi.URLParam(r, "initiativeID"))
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, initiative, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Report    string   `json:"report"`
		Documents []string `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	initiative, err := h.Initiatives.Submit(r.Context(), user, chi.URLParam(r, "initiativeID"), payload.Report, payload.Documents)
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, initiative, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
		Approved bool    `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	initiative, err := h.Initiatives.Review(r.Context(), user, chi.URLParam(r, "initiativeID"), payload.Score, payload.Feedback, payload.Approved)
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, initiative, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequestExtension(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		NewDueDate string `json:"newDueDate"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("reason", payload.Reason, "reason is required")
	newDueDate, ok := v.Date("newDueDate", payload.NewDueDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) || !ok {
		return
	}

	extension, err := h.Initiatives.RequestExtension(r.Context(), user, chi.URLParam(r, "initiativeID"), newDueDate, payload.Reason)
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, extension, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReviewExtension(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Approved bool   `json:"approved"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	extension, err := h.Initiatives.ReviewExtension(r.Context(), user, chi.URLParam(r, "extensionID"), payload.Approved, payload.Note)
	if err != nil {
		failInitiative(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, extension, middleware.GetRequestID(r.Context()))
}

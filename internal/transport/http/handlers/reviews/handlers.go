package reviewshandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/reviews"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
	"pms/internal/transport/http/shared"
)

type Handler struct {
	Reviews *reviews.Service
	Auth    *auth.Service
	Perms   middleware.PermissionChecker
}

func NewHandler(reviewsSvc *reviews.Service, authSvc *auth.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{Reviews: reviewsSvc, Auth: authSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/traits", h.handleCreateTrait)
		r.Get("/traits", h.handleApplicableTraits)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Get("/traits/{traitID}/users", h.handleTraitUsers)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/questions", h.handleCreateQuestion)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/cycles", h.handleCreateCycle)
		r.Get("/cycles", h.handleListCycles)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/cycles/{cycleID}/activate", h.handleActivateCycle)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/cycles/{cycleID}/close", h.handleCloseCycle)
		r.With(middleware.RequirePermission(auth.PermReviewManage, h.Perms)).Post("/cycles/{cycleID}/assignments", h.handleCreateAssignment)
		r.Get("/cycles/{cycleID}/assignments", h.handleMyAssignments)
		r.Post("/assignments/{assignmentID}/responses", h.handleSubmitResponses)
		r.With(middleware.RequirePermission(auth.PermPerformanceEdit, h.Perms)).Post("/cycles/{cycleID}/users/{userID}/compute", h.handleCompute)
		r.Get("/cycles/{cycleID}/users/{userID}/scores", h.handleScores)
	})
}

func failReview(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "review entity not found", requestID)
	case errors.Is(err, reviews.ErrForbidden), errors.Is(err, reviews.ErrWrongReviewer):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, reviews.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "operation not valid in current state", requestID)
	case errors.Is(err, reviews.ErrRatingRange):
		api.Fail(w, http.StatusBadRequest, "rating_range", "rating must be between 1 and 10", requestID)
	case errors.Is(err, reviews.ErrNotApplicable):
		api.Fail(w, http.StatusBadRequest, "not_applicable", "trait does not apply to this user", requestID)
	case errors.Is(err, reviews.ErrTypeDisabled):
		api.Fail(w, http.StatusConflict, "type_disabled", "review type is disabled for this cycle", requestID)
	case errors.Is(err, reviews.ErrDuplicateReply):
		api.Fail(w, http.StatusConflict, "duplicate_reply", "question already answered for this assignment", requestID)
	case errors.Is(err, reviews.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "review_error", "review operation failed", requestID)
	}
}

func (h *Handler) handleCreateTrait(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name           string  `json:"name"`
		Description    string  `json:"description"`
		Scope          string  `json:"scope"`
		OrganizationID *string `json:"organizationId"`
		DisplayOrder   int     `json:"displayOrder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	v.Required("scope", payload.Scope, "scope is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	trait, err := h.Reviews.CreateTrait(r.Context(), reviews.CreateTraitInput{
		Name:           payload.Name,
		Description:    payload.Description,
		Scope:          reviews.TraitScope(payload.Scope),
		OrganizationID: payload.OrganizationID,
		DisplayOrder:   payload.DisplayOrder,
	})
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, trait, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApplicableTraits(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	traits, err := h.Reviews.ApplicableTraits(r.Context(), user)
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, traits, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTraitUsers(w http.ResponseWriter, r *http.Request) {
	userIDs, err := h.Reviews.UsersAssessedOnTrait(r.Context(), chi.URLParam(r, "traitID"))
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"userIds": userIDs}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TraitID       string `json:"traitId"`
		Text          string `json:"text"`
		ForSelf       bool   `json:"forSelf"`
		ForPeer       bool   `json:"forPeer"`
		ForSupervisor bool   `json:"forSupervisor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	question, err := h.Reviews.CreateQuestion(r.Context(), reviews.Question{
		TraitID:       payload.TraitID,
		Text:          payload.Text,
		ForSelf:       payload.ForSelf,
		ForPeer:       payload.ForPeer,
		ForSupervisor: payload.ForSupervisor,
	})
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, question, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name              string `json:"name"`
		StartDate         string `json:"startDate"`
		EndDate           string `json:"endDate"`
		SelfEnabled       bool   `json:"selfEnabled"`
		PeerEnabled       bool   `json:"peerEnabled"`
		SupervisorEnabled bool   `json:"supervisorEnabled"`
		PeerCount         int    `json:"peerCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	start, okStart := v.Date("startDate", payload.StartDate)
	end, okEnd := v.Date("endDate", payload.EndDate)
	if okStart && okEnd {
		v.DateOrder("startDate", start, "endDate", end)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	cycle, err := h.Reviews.CreateCycle(r.Context(), reviews.CreateCycleInput{
		Name:              payload.Name,
		StartDate:         start,
		EndDate:           end,
		SelfEnabled:       payload.SelfEnabled,
		PeerEnabled:       payload.PeerEnabled,
		SupervisorEnabled: payload.SupervisorEnabled,
		PeerCount:         payload.PeerCount,
	})
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.Reviews.ListCycles(r.Context())
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cycles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActivateCycle(w http.ResponseWriter, r *http.Request) {
	if err := h.Reviews.ActivateCycle(r.Context(), chi.URLParam(r, "cycleID")); err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"activated": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	if err := h.Reviews.CloseCycle(r.Context(), chi.URLParam(r, "cycleID")); err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"closed": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReviewerID string `json:"reviewerId"`
		RevieweeID string `json:"revieweeId"`
		Type       string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	assignment, err := h.Reviews.CreateAssignment(r.Context(), chi.URLParam(r, "cycleID"), payload.ReviewerID, payload.RevieweeID, reviews.ReviewType(payload.Type))
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, assignment, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMyAssignments(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	assignments, err := h.Reviews.AssignmentsForReviewer(r.Context(), chi.URLParam(r, "cycleID"), user.ID)
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, assignments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmitResponses(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Responses []struct {
			QuestionID string `json:"questionId"`
			Rating     int    `json:"rating"`
			Comment    string `json:"comment"`
		} `json:"responses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if len(payload.Responses) == 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "at least one response is required", middleware.GetRequestID(r.Context()))
		return
	}

	inputs := make([]reviews.ResponseInput, 0, len(payload.Responses))
	for _, resp := range payload.Responses {
		inputs = append(inputs, reviews.ResponseInput{
			QuestionID: resp.QuestionID,
			Rating:     resp.Rating,
			Comment:    resp.Comment,
		})
	}

	if err := h.Reviews.SubmitResponses(r.Context(), user, chi.URLParam(r, "assignmentID"), inputs); err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"submitted": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	cycleID := chi.URLParam(r, "cycleID")
	userID := chi.URLParam(r, "userID")

	traitScores, err := h.Reviews.ComputeTraitScores(r.Context(), cycleID, userID)
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	performance, err := h.Reviews.ComputePerformanceScore(r.Context(), cycleID, userID)
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"traitScores": traitScores, "performance": performance}, middleware.GetRequestID(r.Context()))
}

// handleScores serves a user their own scores; anyone else needs the
// performance view permission.
func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	cycleID := chi.URLParam(r, "cycleID")
	userID := chi.URLParam(r, "userID")

	if actor.ID != userID {
		allowed, err := h.Auth.HasPermission(r.Context(), actor, auth.PermPerformanceViewAll)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", middleware.GetRequestID(r.Context()))
			return
		}
		if !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}

	traitScores, err := h.Reviews.TraitScores(r.Context(), cycleID, userID)
	if err != nil {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	performance, err := h.Reviews.PerformanceScoreFor(r.Context(), cycleID, userID)
	if err != nil && !errors.Is(err, reviews.ErrNotFound) {
		failReview(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"traitScores": traitScores, "performance": performance}, middleware.GetRequestID(r.Context()))
}

package directoryhandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/org"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
	"pms/internal/transport/http/shared"
)

type Handler struct {
	Orgs  *org.Service
	Auth  *auth.Service
	Perms middleware.PermissionChecker
}

func NewHandler(orgs *org.Service, authSvc *auth.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{Orgs: orgs, Auth: authSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/organizations", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.handleListOrganizations)
		r.With(middleware.RequirePermission(auth.PermUsersManage, h.Perms)).Post("/", h.handleCreateOrganization)
		r.Get("/{orgID}", h.handleGetOrganization)
		r.Get("/{orgID}/children", h.handleOrganizationChildren)
	})
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/{userID}", h.handleGetUser)
		r.With(middleware.RequirePermission(auth.PermUsersManage, h.Perms)).Put("/{userID}/role", h.handleSetUserRole)
		r.With(middleware.RequirePermission(auth.PermUsersManage, h.Perms)).Put("/{userID}/status", h.handleSetUserStatus)
	})
	r.Route("/roles", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.handleListRoles)
		r.With(middleware.RequirePermission(auth.PermRolesManage, h.Perms)).Put("/{roleID}/permissions", h.handleUpdateRolePermissions)
	})
}

func (h *Handler) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.Orgs.List(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_list_failed", "failed to list organizations", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, orgs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string  `json:"name"`
		Level    string  `json:"level"`
		ParentID *string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	v.Required("level", payload.Level, "level is required")
	switch payload.Level {
	case org.LevelGlobal, org.LevelDirectorate, org.LevelDepartment, org.LevelUnit, "":
	default:
		v.Add("level", "must be one of GLOBAL, DIRECTORATE, DEPARTMENT, UNIT")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Orgs.Create(r.Context(), payload.Name, payload.Level, payload.ParentID)
	if errors.Is(err, org.ErrNotFound) {
		api.Fail(w, http.StatusBadRequest, "invalid_parent", "parent organization not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_create_failed", "failed to create organization", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orgs.Get(r.Context(), chi.URLParam(r, "orgID"))
	if errors.Is(err, org.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "organization not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_get_failed", "failed to load organization", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, o, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOrganizationChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.Orgs.Children(r.Context(), chi.URLParam(r, "orgID"))
	if errors.Is(err, org.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "organization not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_children_failed", "failed to list children", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, children, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	target, err := h.Auth.UserByID(r.Context(), chi.URLParam(r, "userID"))
	if errors.Is(err, auth.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_get_failed", "failed to load user", middleware.GetRequestID(r.Context()))
		return
	}

	if actor.ID != target.ID {
		allowed, err := h.Auth.CanAccessOrganization(r.Context(), actor, target.OrganizationID)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "scope_error", "scope check failed", middleware.GetRequestID(r.Context()))
			return
		}
		if !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "user out of scope", middleware.GetRequestID(r.Context()))
			return
		}
	}
	api.Success(w, target, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RoleID string `json:"roleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.RoleID == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "roleId is required", middleware.GetRequestID(r.Context()))
		return
	}

	err := h.Auth.SetUserRole(r.Context(), chi.URLParam(r, "userID"), payload.RoleID)
	if errors.Is(err, auth.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "role not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "role_assign_failed", "failed to assign role", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"updated": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	switch payload.Status {
	case auth.UserStatusActive, auth.UserStatusSuspended, auth.UserStatusArchived:
	default:
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "status must be ACTIVE, SUSPENDED or ARCHIVED", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Auth.SetUserStatus(r.Context(), chi.URLParam(r, "userID"), payload.Status); err != nil {
		api.Fail(w, http.StatusInternalServerError, "status_update_failed", "failed to update status", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"updated": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Auth.ListRoles(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "role_list_failed", "failed to list roles", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, roles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Permissions []auth.Permission `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	err := h.Auth.UpdateRolePermissions(r.Context(), chi.URLParam(r, "roleID"), payload.Permissions)
	if errors.Is(err, auth.ErrUnknownPermission) {
		api.Fail(w, http.StatusBadRequest, "unknown_permission", "permission outside the known set", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "role_update_failed", "failed to update role", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"updated": true}, middleware.GetRequestID(r.Context()))
}

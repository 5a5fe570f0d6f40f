package adminhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/initiatives"
	"pms/internal/platform/jobs"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
)

type Handler struct {
	Jobs        *jobs.Service
	Initiatives *initiatives.Service
	Perms       middleware.PermissionChecker
}

func NewHandler(jobsSvc *jobs.Service, initiativesSvc *initiatives.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{Jobs: jobsSvc, Initiatives: initiativesSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Post("/jobs/overdue-sweep", h.handleRunOverdueSweep)
	})
}

func (h *Handler) handleRunOverdueSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Jobs.RunNow(r.Context(), jobs.JobOverdueSweep, func(ctx context.Context) (any, error) {
		count, err := h.Initiatives.SweepOverdue(ctx, time.Now())
		if err != nil {
			return nil, err
		}
		return map[string]int{"marked": count}, nil
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_failed", "overdue sweep failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

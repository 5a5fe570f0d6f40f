package reportshandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jung-kurt/gofpdf"

	"pms/internal/domain/auth"
	"pms/internal/domain/goals"
	"pms/internal/domain/initiatives"
	"pms/internal/domain/reviews"
	"pms/internal/transport/http/api"
	"pms/internal/transport/http/middleware"
)

type Handler struct {
	DB      *pgxpool.Pool
	Auth    *auth.Service
	Reviews *reviews.Service
	Perms   middleware.PermissionChecker
}

func NewHandler(db *pgxpool.Pool, authSvc *auth.Service, reviewsSvc *reviews.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{DB: db, Auth: authSvc, Reviews: reviewsSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/performance/{userID}/cycles/{cycleID}/pdf", h.handlePerformancePDF)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var goalTotal, goalAchieved int
	if err := h.DB.QueryRow(r.Context(), "SELECT COUNT(1), COUNT(1) FILTER (WHERE status = $2) FROM goals WHERE owner_id = $1", user.ID, goals.StatusAchieved).Scan(&goalTotal, &goalAchieved); err != nil {
		slog.Warn("dashboard goal counts failed", "err", err)
	}

	var pendingReview, overdue int
	if err := h.DB.QueryRow(r.Context(), `
    SELECT COUNT(1) FILTER (WHERE status = $2), COUNT(1) FILTER (WHERE status = $3)
    FROM initiatives
    WHERE creator_id = $1 OR id IN (SELECT initiative_id FROM initiative_assignments WHERE user_id = $1)
  `, user.ID, initiatives.StatusPendingReview, initiatives.StatusOverdue).Scan(&pendingReview, &overdue); err != nil {
		slog.Warn("dashboard initiative counts failed", "err", err)
	}

	var activeCycles int
	if err := h.DB.QueryRow(r.Context(), "SELECT COUNT(1) FROM review_cycles WHERE status = $1", reviews.CycleActive).Scan(&activeCycles); err != nil {
		slog.Warn("dashboard cycle count failed", "err", err)
	}

	var openAssignments int
	if err := h.DB.QueryRow(r.Context(), `
    SELECT COUNT(1) FROM review_assignments a
    JOIN review_cycles c ON c.id = a.cycle_id
    WHERE a.reviewer_id = $1 AND a.status = $2 AND c.status = $3
  `, user.ID, reviews.AssignmentPending, reviews.CycleActive).Scan(&openAssignments); err != nil {
		slog.Warn("dashboard assignment count failed", "err", err)
	}

	api.Success(w, map[string]int{
		"goals":                  goalTotal,
		"goalsAchieved":          goalAchieved,
		"initiativesUnderReview": pendingReview,
		"initiativesOverdue":     overdue,
		"activeCycles":           activeCycles,
		"openReviewAssignments":  openAssignments,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePerformancePDF(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	userID := chi.URLParam(r, "userID")
	cycleID := chi.URLParam(r, "cycleID")

	if actor.ID != userID {
		allowed, err := h.Auth.HasPermission(r.Context(), actor, auth.PermPerformanceViewAll)
		if err != nil || !allowed {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}

	subject, err := h.Auth.UserByID(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}

	var cycleName string
	if err := h.DB.QueryRow(r.Context(), "SELECT name FROM review_cycles WHERE id = $1", cycleID).Scan(&cycleName); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "cycle not found", middleware.GetRequestID(r.Context()))
		return
	}

	traitScores, err := h.Reviews.TraitScores(r.Context(), cycleID, userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to load scores", middleware.GetRequestID(r.Context()))
		return
	}
	traitNames := h.traitNames(r, traitScores)

	performance, perfErr := h.Reviews.PerformanceScoreFor(r.Context(), cycleID, userID)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", subject.FirstName, subject.LastName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Email: %s", subject.Email))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Cycle: %s", cycleName))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Trait Scores")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	if len(traitScores) == 0 {
		pdf.Cell(0, 7, "No trait scores computed for this cycle.")
		pdf.Ln(7)
	}
	for _, score := range traitScores {
		name := traitNames[score.TraitID]
		if name == "" {
			name = score.TraitID
		}
		pdf.Cell(0, 7, fmt.Sprintf("%s: self %s, peer %s, supervisor %s, weighted %s",
			name, fmtScore(score.SelfScore), fmtScore(score.PeerScore),
			fmtScore(score.SupervisorScore), fmtScore(score.Weighted)))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Overall")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	if perfErr != nil {
		pdf.Cell(0, 7, "Overall performance not yet computed.")
	} else {
		pdf.Cell(0, 7, fmt.Sprintf("Review component: %s", fmtScore(performance.ReviewScore)))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Task component: %s", fmtScore(performance.TaskScore)))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Goal component: %s", fmtScore(performance.GoalScore)))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Overall score: %s", fmtScore(performance.Overall)))
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=performance-%s.pdf", userID))
	if err := pdf.Output(w); err != nil {
		slog.Warn("pdf output failed", "err", err)
	}
}

func (h *Handler) traitNames(r *http.Request, scores []reviews.TraitScore) map[string]string {
	names := map[string]string{}
	for _, score := range scores {
		if _, ok := names[score.TraitID]; ok {
			continue
		}
		var name string
		if err := h.DB.QueryRow(r.Context(), "SELECT name FROM review_traits WHERE id = $1", score.TraitID).Scan(&name); err != nil {
			continue
		}
		names[score.TraitID] = name
	}
	return names
}

func fmtScore(value *float64) string {
	if value == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *value)
}

package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pms/internal/domain/auth"
	"pms/internal/domain/goals"
	"pms/internal/domain/initiatives"
	"pms/internal/domain/notifications"
	"pms/internal/domain/org"
	"pms/internal/domain/reviews"
	"pms/internal/platform/cache"
	"pms/internal/platform/clock"
	"pms/internal/platform/config"
	"pms/internal/platform/db"
	"pms/internal/platform/email"
	"pms/internal/platform/jobs"
	adminhandler "pms/internal/transport/http/handlers/admin"
	authhandler "pms/internal/transport/http/handlers/auth"
	directoryhandler "pms/internal/transport/http/handlers/directory"
	goalshandler "pms/internal/transport/http/handlers/goals"
	initiativeshandler "pms/internal/transport/http/handlers/initiatives"
	notificationshandler "pms/internal/transport/http/handlers/notifications"
	reportshandler "pms/internal/transport/http/handlers/reports"
	reviewshandler "pms/internal/transport/http/handlers/reviews"
	"pms/internal/transport/http/middleware"
)

const requestBodyLimit = 1 << 20

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	clk := clock.System()

	orgSvc := org.NewService(org.NewStore(pool))
	permCache := cache.NewPermissions[auth.Effective](cfg.PermissionCacheTTL)
	authSvc := auth.NewService(auth.NewStore(pool), orgSvc, permCache, clk)

	notifSvc := notifications.New(notifications.NewStore(pool), email.New(cfg))
	notifSvc.DefaultFrom = cfg.EmailFrom

	goalsSvc := goals.NewService(goals.NewStore(pool), authSvc, notifSvc, clk)
	initiativesSvc := initiatives.NewService(initiatives.NewStore(pool), authSvc, notifSvc, clk)
	reviewsSvc := reviews.NewService(reviews.NewStore(pool), orgSvc, authSvc, initiativesSvc, goalsSvc, notifSvc, clk)

	jobsSvc := jobs.New(pool, cfg, initiativesSvc)
	jobsSvc.Start(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(requestBodyLimit))
	router.Use(middleware.Auth(cfg.JWTSecret, authSvc))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(300, time.Minute))

		authhandler.NewHandler(authSvc, cfg.JWTSecret).RegisterRoutes(r)
		directoryhandler.NewHandler(orgSvc, authSvc, authSvc).RegisterRoutes(r)
		goalshandler.NewHandler(goalsSvc, authSvc, pool).RegisterRoutes(r)
		initiativeshandler.NewHandler(initiativesSvc, authSvc).RegisterRoutes(r)
		reviewshandler.NewHandler(reviewsSvc, authSvc, authSvc).RegisterRoutes(r)
		notificationshandler.NewHandler(notifSvc).RegisterRoutes(r)
		reportshandler.NewHandler(pool, authSvc, reviewsSvc, authSvc).RegisterRoutes(r)
		adminhandler.NewHandler(jobsSvc, initiativesSvc, authSvc).RegisterRoutes(r)
	})

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

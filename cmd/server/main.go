package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/daleapp/dale-backend/config"
	"github.com/daleapp/dale-backend/internal/handler"
	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/repository"
	"github.com/daleapp/dale-backend/internal/service"
	"github.com/daleapp/dale-backend/pkg/cache"
	"github.com/daleapp/dale-backend/pkg/db"
	"github.com/daleapp/dale-backend/pkg/storage"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Run migrations ──────────────────────────────────
	if err := db.RunMigrations(cfg.Postgres.DSN(), cfg.App.MigrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Println("✓ Migrations applied")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		// The marketplace works without its cache; searches just skip
		// the fast path and sign-out revocation is disabled.
		log.Printf("⚠ Redis unavailable, caching disabled: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	}

	// ── File storage ────────────────────────────────────
	store, err := storage.NewLocalStore(cfg.App.UploadDir)
	if err != nil {
		log.Fatalf("failed to initialize upload storage: %v", err)
	}

	// ── Initialize layers ───────────────────────────────
	tripRepo := repository.NewTripRepository(pgPool, redisClient)
	bookingRepo := repository.NewBookingRepository(pgPool, tripRepo)
	profileRepo := repository.NewProfileRepository(pgPool)

	tripSvc := service.NewTripService(tripRepo, cfg.App.Location())
	bookingSvc := service.NewBookingService(bookingRepo)
	authSvc := service.NewAuthService(profileRepo, redisClient, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	profileSvc := service.NewProfileService(profileRepo, store)

	tripHandler := handler.NewTripHandler(tripSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	// Uploaded avatars.
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.App.UploadDir))))

	api := router.PathPrefix("/api/v1").Subrouter()

	// Auth routes are public but rate limited per IP.
	authLimiter := middleware.NewRateLimiter(rate.Limit(5), 10)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(authLimiter.Limit)
	auth.HandleFunc("/signup", authHandler.SignUp).Methods(http.MethodPost)
	auth.HandleFunc("/login", authHandler.SignIn).Methods(http.MethodPost)
	auth.HandleFunc("/logout", authHandler.SignOut).Methods(http.MethodPost)

	// Public reads.
	api.HandleFunc("/trips", tripHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profile_id}", profileHandler.Get).Methods(http.MethodGet)

	// Everything else requires a session.
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(authSvc))
	authed.HandleFunc("/auth/session", authHandler.Session).Methods(http.MethodGet)
	authed.HandleFunc("/trips", tripHandler.Create).Methods(http.MethodPost)
	authed.HandleFunc("/trips/mine", tripHandler.ListMine).Methods(http.MethodGet)
	authed.HandleFunc("/trips/{trip_id}", tripHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/trips/{trip_id}/cancel", tripHandler.Cancel).Methods(http.MethodPost)
	authed.HandleFunc("/trips/{trip_id}/bookings", bookingHandler.Request).Methods(http.MethodPost)
	authed.HandleFunc("/bookings", bookingHandler.ListMine).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/{booking_id}", bookingHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/bookings/{booking_id}/confirm", bookingHandler.Confirm).Methods(http.MethodPost)
	authed.HandleFunc("/bookings/{booking_id}/cancel", bookingHandler.Cancel).Methods(http.MethodPost)
	authed.HandleFunc("/bookings/{booking_id}/receipt", bookingHandler.Receipt).Methods(http.MethodGet)
	authed.HandleFunc("/profiles/me", profileHandler.UpdateMe).Methods(http.MethodPatch)
	authed.HandleFunc("/profiles/me/avatar", profileHandler.UploadAvatar).Methods(http.MethodPost)

	// Outermost first: recover, then log, then CORS.
	root := middleware.Recoverer(middleware.RequestLogger(middleware.CORS(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if redisClient == nil {
			resp.Services["redis"] = "disabled"
		} else if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

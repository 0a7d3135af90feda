package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/config"
)

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer creates the HTTP server with global middleware and the
// unauthenticated health/metrics surface (spec §6.1). Domain handlers are
// mounted by the caller via Router.Route, using RequireAdmission for the
// admission-gated subtrees.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/health/db", s.handleHealthDB)
	s.Router.Get("/health/cache", s.handleHealthCache)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		s.Logger.Error("health check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthCache(w http.ResponseWriter, r *http.Request) {
	if err := s.Redis.Ping(r.Context()).Err(); err != nil {
		s.Logger.Error("health check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "cache not ready")
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MountAdmissionGated mounts a subrouter at pattern, gated by the admission
// pipeline (spec §4.6). skipRateLimit exempts the mounted routes from
// tenant quota enforcement; BridgeCore's wiring passes true only for the
// tenant logout and me routes and charges every other admitted route.
func (s *Server) MountAdmissionGated(pattern string, pipeline *admission.Pipeline, skipRateLimit bool, mount func(r chi.Router)) {
	s.Router.Route(pattern, func(r chi.Router) {
		r.Use(RequireAdmission(pipeline, skipRateLimit))
		mount(r)
	})
}

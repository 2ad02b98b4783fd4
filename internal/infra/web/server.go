package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"grid-agent-service/internal/config"
	"grid-agent-service/internal/infra/redis"
	"grid-agent-service/internal/usecase"
)

// Server is the public HTTP + WebSocket surface.
type Server struct {
	cfg     *config.Config
	jobUC   usecase.JobUseCase
	usageUC usecase.UsageUseCase
	auth    *AuthManager
	limiter *redis.RateLimiter // nil when redis is not configured

	liveReady bool // server-side provider credentials present

	log *zerolog.Logger
	srv *http.Server
}

func NewServer(
	cfg *config.Config,
	jobUC usecase.JobUseCase,
	usageUC usecase.UsageUseCase,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	liveReady bool,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		cfg:       cfg,
		jobUC:     jobUC,
		usageUC:   usageUC,
		auth:      auth,
		limiter:   limiter,
		liveReady: liveReady,
		log:       &webLog,
	}
}

// Router builds the route tree. The WebSocket endpoint stays outside
// the timeout group because streams outlive any request deadline.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Group(func(r chi.Router) {
		r.Use(Timeout(30 * time.Second))
		r.Post("/api/ask", s.handleAsk)
		r.Get("/api/jobs/{jobID}", s.handleJobGet)
		r.Get("/api/usage/{userID}", s.handleUsage)
		r.Get("/health", s.handleHealth)

		r.Post("/api/v1/login", s.handleLogin)
		r.Post("/api/v1/logout", s.handleLogout)
		r.With(s.requireAdmin).Get("/api/v1/stats", s.handleStats)
	})

	r.Get("/ws/stream", s.handleStream)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("HTTP server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// requireAdmin guards the admin endpoints with the JWT session.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/logging"
	"grid-agent-service/internal/infra/redis"
)

type askRequest struct {
	Prompt   string `json:"prompt"`
	UserID   string `json:"userId"`
	LessonID string `json:"lessonId"`
}

type askResponse struct {
	JobID     string `json:"jobId"`
	StreamURL string `json:"streamUrl"`
	Mode      string `json:"mode"`
}

// credentialsFromHeaders reads per-request provider keys. Anything
// absent falls back to the server-side configuration at merge time.
func credentialsFromHeaders(r *http.Request) model.Credentials {
	return model.Credentials{
		OpenAIKey:      r.Header.Get("X-OpenAI-Key"),
		AnthropicKey:   r.Header.Get("X-Anthropic-Key"),
		FireworksKey:   r.Header.Get("X-Fireworks-Key"),
		FireworksModel: r.Header.Get("X-Fireworks-Model"),
		GeminiKey:      r.Header.Get("X-Gemini-Key"),
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, redis.AskKey(clientIP(r)), s.cfg.Redis.AskLimit, s.cfg.Redis.AskWindow)
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			s.writeError(w, r, domain.ErrRateLimited)
			return
		}
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	creds := credentialsFromHeaders(r)
	s.logSuppliedKeys(ctx, creds)

	job, err := s.jobUC.Ask(ctx, req.Prompt, req.UserID, req.LessonID, creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		JobID:     job.ID,
		StreamURL: s.cfg.Server.WSBase + "/ws/stream?jobId=" + job.ID,
		Mode:      string(job.Mode),
	})
}

// logSuppliedKeys debug-logs which per-request provider keys arrived,
// redacted outside dev so secrets never reach the log stream.
func (s *Server) logSuppliedKeys(ctx context.Context, creds model.Credentials) {
	keys := []struct {
		name  string
		value string
	}{
		{"openai", creds.OpenAIKey},
		{"anthropic", creds.AnthropicKey},
		{"fireworks", creds.FireworksKey},
		{"gemini", creds.GeminiKey},
	}
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		logging.With(ctx, s.log).Debug().
			Str("provider", k.name).
			Str("key", logging.Redact(k.value, s.cfg.Runtime.Dev)).
			Msg("request-scoped provider key supplied")
	}
}

type jobResponse struct {
	JobID      string    `json:"jobId"`
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	FailReason string    `json:"failReason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		JobID:      job.ID,
		Status:     string(job.Status),
		Mode:       string(job.Mode),
		FailReason: job.FailReason,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	totals, byProvider, err := s.usageUC.Summary(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type providerEntry struct {
		Provider string  `json:"provider"`
		Calls    int     `json:"calls"`
		Tokens   int64   `json:"tokens"`
		CostUSD  float64 `json:"costUsd"`
	}
	providers := make([]providerEntry, 0, len(byProvider))
	for _, p := range byProvider {
		providers = append(providers, providerEntry{
			Provider: p.Provider,
			Calls:    p.Calls,
			Tokens:   p.Tokens,
			CostUSD:  p.Cost,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		UserID      string          `json:"userId"`
		TotalCalls  int             `json:"totalCalls"`
		TotalTokens int64           `json:"totalTokens"`
		TotalCost   float64         `json:"totalCostUsd"`
		Providers   []providerEntry `json:"providers"`
	}{
		UserID:      userID,
		TotalCalls:  totals.TotalCalls,
		TotalTokens: totals.TotalTokens,
		TotalCost:   totals.TotalCost,
		Providers:   providers,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.jobUC.Stats(r.Context())
	writeJSON(w, http.StatusOK, struct {
		Status            string `json:"status"`
		RealtimeAvailable bool   `json:"realtimeAvailable"`
		ActiveJobs        int    `json:"activeJobs"`
	}{
		Status:            "ok",
		RealtimeAvailable: s.liveReady,
		ActiveJobs:        stats.Active,
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.cfg.Admin.Password == "" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Password != s.cfg.Admin.Password {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobUC.Stats(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrPromptTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

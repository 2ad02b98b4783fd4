package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"grid-agent-service/internal/config"
	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/registry"
)

// fakeJobUC scripts the job use case per test.
type fakeJobUC struct {
	askJob    *model.Job
	askErr    error
	askCreds  model.Credentials
	getJob    *model.Job
	getErr    error
	attachFn  func(ctx context.Context, id string) (<-chan *model.Event, error)
	statsResp registry.Stats
}

func (f *fakeJobUC) Ask(ctx context.Context, prompt, userID, lessonID string, creds model.Credentials) (*model.Job, error) {
	f.askCreds = creds
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.askJob, nil
}

func (f *fakeJobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getJob, nil
}

func (f *fakeJobUC) Attach(ctx context.Context, id string) (<-chan *model.Event, error) {
	if f.attachFn != nil {
		return f.attachFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobUC) Stats(ctx context.Context) registry.Stats { return f.statsResp }

type fakeUsageUC struct {
	totals    model.UsageTotals
	providers []model.ProviderUsage
	err       error
}

func (f *fakeUsageUC) Summary(ctx context.Context, userID string) (model.UsageTotals, []model.ProviderUsage, error) {
	if f.err != nil {
		return model.UsageTotals{}, nil, f.err
	}
	return f.totals, f.providers, nil
}

func newTestServer(jobUC *fakeJobUC, usageUC *fakeUsageUC) *Server {
	cfg := &config.Config{}
	cfg.Admin.Password = "hunter2"
	cfg.Admin.JWTSecret = "test-secret"
	cfg.ApplyDefaults()

	log := zerolog.Nop()
	auth := NewAuthManager(cfg.Admin.JWTSecret, false, "", cfg.Admin.SessionTTL)
	return NewServer(cfg, jobUC, usageUC, auth, nil, false, &log)
}

func TestHandleAsk(t *testing.T) {
	t.Parallel()

	jobUC := &fakeJobUC{askJob: &model.Job{ID: "job-123", Mode: model.ModeDemo}}
	srv := newTestServer(jobUC, &fakeUsageUC{})

	body := bytes.NewBufferString(`{"prompt":"Explain Bitcoin halving","userId":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", body)
	req.Header.Set("X-Anthropic-Key", "req-key")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "job-123" {
		t.Fatalf("jobId %q", resp.JobID)
	}
	if !strings.HasSuffix(resp.StreamURL, "/ws/stream?jobId=job-123") {
		t.Fatalf("streamUrl %q", resp.StreamURL)
	}
	if resp.Mode != "demo" {
		t.Fatalf("mode %q", resp.Mode)
	}
	if jobUC.askCreds.AnthropicKey != "req-key" {
		t.Fatalf("header credential not forwarded: %+v", jobUC.askCreds)
	}
}

func TestHandleAsk_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		body       string
		askErr     error
		wantStatus int
	}{
		{"malformed body", `{"prompt":`, nil, http.StatusBadRequest},
		{"empty prompt", `{"prompt":""}`, domain.ErrInvalidArgument, http.StatusBadRequest},
		{"prompt too long", `{"prompt":"x"}`, domain.ErrPromptTooLong, http.StatusBadRequest},
		{"queue full", `{"prompt":"x"}`, domain.ErrQueueFull, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeJobUC{askErr: tc.askErr}, &fakeUsageUC{})
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestHandleJobGet(t *testing.T) {
	t.Parallel()

	now := time.Now()
	jobUC := &fakeJobUC{getJob: &model.Job{
		ID:         "job-9",
		Status:     model.JobStatusFailed,
		Mode:       model.ModeLive,
		FailReason: "provider unreachable",
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
	srv := newTestServer(jobUC, &fakeUsageUC{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-9", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "job-9" || resp.Status != "failed" || resp.FailReason != "provider unreachable" {
		t.Fatalf("resp %+v", resp)
	}
}

func TestHandleJobGet_NotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobUC{getErr: domain.ErrNotFound}, &fakeUsageUC{})
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestHandleUsage(t *testing.T) {
	t.Parallel()

	usageUC := &fakeUsageUC{
		totals: model.UsageTotals{TotalCalls: 4, TotalTokens: 1200, TotalCost: 0.018},
		providers: []model.ProviderUsage{
			{Provider: "anthropic", Calls: 3, Tokens: 900, Cost: 0.015},
			{Provider: "openai", Calls: 1, Tokens: 300, Cost: 0.003},
		},
	}
	srv := newTestServer(&fakeJobUC{}, usageUC)

	req := httptest.NewRequest(http.MethodGet, "/api/usage/u1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		UserID      string  `json:"userId"`
		TotalCalls  int     `json:"totalCalls"`
		TotalTokens int64   `json:"totalTokens"`
		TotalCost   float64 `json:"totalCostUsd"`
		Providers   []struct {
			Provider string `json:"provider"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "u1" || resp.TotalCalls != 4 || resp.TotalTokens != 1200 {
		t.Fatalf("resp %+v", resp)
	}
	if len(resp.Providers) != 2 || resp.Providers[0].Provider != "anthropic" {
		t.Fatalf("providers %+v", resp.Providers)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobUC{statsResp: registry.Stats{Active: 3}}, &fakeUsageUC{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Status            string `json:"status"`
		RealtimeAvailable bool   `json:"realtimeAvailable"`
		ActiveJobs        int    `json:"activeJobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.ActiveJobs != 3 {
		t.Fatalf("resp %+v", resp)
	}
	if resp.RealtimeAvailable {
		t.Fatalf("no server credentials configured, realtime must be false")
	}
}

func TestAdminLoginAndStats(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobUC{statsResp: registry.Stats{Active: 1, Created: 5}}, &fakeUsageUC{})
	router := srv.Router()

	// Stats without a session is rejected.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated stats: status %d", rec.Code)
	}

	// Wrong password.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"password":"wrong"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", rec.Code)
	}

	// Login mints a token.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"password":"hunter2"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d", rec.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login response: %v %q", err, rec.Body.String())
	}

	// Bearer token grants stats.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated stats: status %d", rec.Code)
	}
	var stats registry.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Active != 1 || stats.Created != 5 {
		t.Fatalf("stats %+v", stats)
	}

	// Logout expires the session cookie.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "grid_admin_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout must expire the session cookie")
	}
}

package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/talentforge/matching-engine/internal/config"
	"github.com/talentforge/matching-engine/internal/domain"
	"github.com/talentforge/matching-engine/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Match      usecase.MatchService
	Scores     usecase.ScoreService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	AIEnabled  func() bool
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, matchSvc usecase.MatchService, scores usecase.ScoreService, dbCheck, redisCheck func(context.Context) error, aiEnabled func() bool) *Server {
	return &Server{Cfg: cfg, Match: matchSvc, Scores: scores, DBCheck: dbCheck, RedisCheck: redisCheck, AIEnabled: aiEnabled}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type triggerRequest struct {
	Force *bool `json:"force"`
}

type triggerResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// TriggerHandler starts a matching run for a posting. The optional body field
// "force" defaults to true: an explicit trigger recomputes even when the
// cached results are still valid.
func (s *Server) TriggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		if jobID == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		force := true
		if r.ContentLength != 0 {
			if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
				writeError(w, r, fmt.Errorf("%w: content-type must be application/json", domain.ErrInvalidArgument), nil)
				return
			}
			var req triggerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
				return
			}
			if err := getValidator().Struct(req); err != nil {
				writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), err.Error())
				return
			}
			if req.Force != nil {
				force = *req.Force
			}
		}

		out, err := s.Match.Trigger(r.Context(), jobID, force)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		status := http.StatusAccepted
		if !out.Accepted {
			// Cache hit or an in-flight run; nothing new was started.
			status = http.StatusOK
		}
		writeJSON(w, status, triggerResponse{JobID: out.JobID, Status: string(out.Status)})
	}
}

type statusResponse struct {
	Status        string               `json:"status"`
	Error         string               `json:"error,omitempty"`
	LastMatchedAt *time.Time           `json:"last_matched_at"`
	Results       []domain.MatchResult `json:"results"`
}

// StatusHandler reports the posting's matching state and, when completed, the
// ranked result list.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		if jobID == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		p, err := s.Match.Status(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := statusResponse{
			Status:        string(p.MatchStatus),
			LastMatchedAt: p.LastMatchedAt,
			Results:       p.CachedResults,
		}
		if p.MatchStatus == domain.MatchFailed {
			resp.Error = p.MatchError
		}
		if resp.Results == nil {
			resp.Results = []domain.MatchResult{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// CandidateScoreHandler serves the on-demand score breakdown of one candidate
// against one posting.
func (s *Server) CandidateScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		userID := chi.URLParam(r, "userId")
		if jobID == "" || userID == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		detail, err := s.Scores.Detail(r.Context(), jobID, userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// HealthzHandler is a trivial liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the DB, Redis, and whether the completion client is
// configured.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		if s.AIEnabled != nil {
			// Degraded but serviceable: runs fall back to neutral semantic scores.
			checks = append(checks, check{Name: "ai", OK: true, Details: aiDetails(s.AIEnabled())})
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

func aiDetails(enabled bool) string {
	if enabled {
		return "configured"
	}
	return "not configured; semantic scoring disabled"
}

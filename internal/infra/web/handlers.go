package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/scheduler"
)

type streakResponse struct {
	UserID      int64      `json:"user_id"`
	Streak      int        `json:"streak"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

type pollResponse struct {
	PollID    string     `json:"poll_id"`
	ChatID    int64      `json:"chat_id"`
	MessageID int        `json:"message_id"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Status    string     `json:"status"`
}

type schedulerResponse struct {
	Jobs    []scheduler.JobInfo     `json:"jobs"`
	Pending []scheduler.DelayedTask `json:"pending"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) streakGetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.streaks.Find(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := streakResponse{UserID: userID, Streak: rec.Count}
	if !rec.LastUpdated.IsZero() {
		resp.LastUpdated = &rec.LastUpdated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) streakResetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := s.streaks.Reset(r.Context(), userID, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pollGetHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.polls.Find(r.Context(), chi.URLParam(r, "pollID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{
		PollID:    p.PollID,
		ChatID:    p.ChatID,
		MessageID: p.MessageID,
		CreatedAt: p.CreatedAt,
		ClosedAt:  p.ClosedAt,
		Status:    string(p.Status()),
	})
}

func (s *Server) schedulerHandler(w http.ResponseWriter, r *http.Request) {
	resp := schedulerResponse{Jobs: []scheduler.JobInfo{}, Pending: []scheduler.DelayedTask{}}
	if s.jobs != nil {
		resp.Jobs = append(resp.Jobs, s.jobs.Jobs()...)
		sort.Slice(resp.Jobs, func(i, j int) bool { return resp.Jobs[i].NextRun.Before(resp.Jobs[j].NextRun) })
	}
	if s.tasks != nil {
		resp.Pending = append(resp.Pending, s.tasks.Pending()...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps domain sentinels to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("admin request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

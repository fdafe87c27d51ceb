package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpulse/social-mentions-bot/internal/scheduler"
)

type controlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Start()
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeJSON(w, http.StatusOK, controlResponse{Status: "already_running", Message: "Autonomous service is already running"})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, controlResponse{Status: "started", Message: "Autonomous reply service started"})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.runner.Stop()
	switch {
	case errors.Is(err, scheduler.ErrNotRunning):
		writeJSON(w, http.StatusOK, controlResponse{Status: "not_running", Message: "Autonomous service is not running"})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, controlResponse{Status: "stopped", Message: "Autonomous reply service stopped"})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.RunOnce(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Autonomous cycle completed",
		"result":  report,
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	archive := s.monitor.Reports()
	if archive == nil {
		ids := []string{}
		if last := s.monitor.LastReport(); last != nil {
			ids = append(ids, last.ID)
		}
		writeData(w, ids)
		return
	}

	ids, err := archive.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeData(w, ids)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["report_id"]
	if last := s.monitor.LastReport(); last != nil && last.ID == id {
		writeData(w, last)
		return
	}
	if archive := s.monitor.Reports(); archive != nil {
		report, err := archive.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, report)
		return
	}
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "report not found: " + id})
}

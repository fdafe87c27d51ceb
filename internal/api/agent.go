package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type agentRequest struct {
	Task string `json:"task"`
}

func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: "agent is not configured"})
		return
	}

	var req agentRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, badRequest("invalid request body: %v", err))
		return
	}

	result, err := s.agent.Run(r.Context(), req.Task)
	if err != nil {
		if result != nil {
			writeJSON(w, statusFor(err), envelope{Success: false, Data: result, Error: err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}
	writeData(w, result)
}

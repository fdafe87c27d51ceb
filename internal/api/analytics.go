package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", defaultSentimentDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.store.SentimentCounts(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTicketStats(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", defaultTicketDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.store.TicketStats(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentTickets(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tickets, err := s.store.ListTickets(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeData(w, tickets)
}

func (s *Server) handleRaiseTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.monitor.RaiseTickets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeData(w, tickets)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	mentionID := mux.Vars(r)["mention_id"]
	if _, err := s.store.ResolveTicket(r.Context(), mentionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Mention " + mentionID + " marked as resolved",
		"ticket_status": "resolved",
	})
}

func (s *Server) handleReplyAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", defaultReplyDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.store.ReplyAnalytics(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := mux.Vars(r)["user_id"]

	history, err := s.store.UserHistory(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.Interaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      userID,
		"interactions": history,
		"count":        len(history),
	})
}

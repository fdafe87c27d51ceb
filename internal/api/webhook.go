package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
)

// webhookPayload is the subset of a Graph webhook delivery we read
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
		} `json:"changes"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// handleWebhookVerify answers the subscription handshake
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.verifyToken == "" || q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.verifyToken {
		writeJSON(w, http.StatusForbidden, envelope{Success: false, Error: "verification failed"})
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// handleWebhookEvent pulls Instagram mentions when a delivery reports new ones
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		writeError(w, r, badRequest("invalid webhook payload: %v", err))
		return
	}
	if payload.Object != "instagram" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	mentions, messages := 0, 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field == "mentions" || change.Field == "comments" {
				mentions++
			}
		}
		for _, m := range entry.Messaging {
			if m.Message.Text != "" {
				messages++
				logrus.WithField("sender", m.Sender.ID).Info("Instagram direct message received")
			}
		}
	}

	if mentions > 0 {
		_, inserted, err := s.monitor.FetchPlatform(r.Context(), models.PlatformInstagram, sources.Credentials{})
		if err != nil {
			logrus.Errorf("Webhook-triggered Instagram fetch failed: %v", err)
		} else {
			logrus.Infof("Webhook-triggered Instagram fetch stored %d new mentions", inserted)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"mentions": mentions,
		"messages": messages,
	})
}

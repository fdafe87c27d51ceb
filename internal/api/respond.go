package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/agent"
	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/monitoring"
	"github.com/brandpulse/social-mentions-bot/internal/sentiment"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/storage"
	"github.com/brandpulse/social-mentions-bot/internal/store"
)

// errBadRequest marks request validation failures
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var (
		platformErr  *sources.PlatformAPIError
		transportErr *sources.TransportError
		parseErr     *sentiment.ClassificationParseError
		llmErr       *llm.APIError
	)

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidSentiment),
		errors.Is(err, store.ErrInvalidPriority),
		errors.Is(err, sources.ErrUnsupported),
		errors.Is(err, sources.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, storage.ErrReportNotFound),
		errors.Is(err, sources.ErrNotLinked),
		errors.Is(err, monitoring.ErrUnknownPlatform):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidState),
		errors.Is(err, monitoring.ErrAlreadyReplied):
		return http.StatusConflict
	case errors.As(err, &platformErr),
		errors.As(err, &parseErr),
		errors.As(err, &llmErr),
		errors.Is(err, agent.ErrInvalidOutput):
		return http.StatusBadGateway
	case errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Warnf("Request rejected: %v", err)
	}
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

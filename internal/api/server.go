// Package api is the management REST surface: per-platform fetch and reply,
// analytics, ticket resolution, autonomous runner control and the agent.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandpulse/social-mentions-bot/internal/agent"
	"github.com/brandpulse/social-mentions-bot/internal/metrics"
	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/monitoring"
	"github.com/brandpulse/social-mentions-bot/internal/scheduler"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/store"
)

const (
	defaultSentimentDays = 7
	defaultTicketDays    = 30
	defaultReplyDays     = 30
	defaultHistoryLimit  = 10
)

// Pinger reports database reachability for /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP routes onto the pipeline services
type Server struct {
	monitor     *monitoring.Service
	store       store.MentionStore
	runner      *scheduler.Runner
	agent       *agent.Agent
	verifyToken string
	router      *mux.Router
}

// NewServer builds the router. agent may be nil, which disables /agent/run.
func NewServer(monitor *monitoring.Service, st store.MentionStore, runner *scheduler.Runner, ag *agent.Agent, igVerifyToken string) *Server {
	s := &Server{
		monitor:     monitor,
		store:       st,
		runner:      runner,
		agent:       ag,
		verifyToken: igVerifyToken,
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(metrics.Middleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/all/mentions", s.handleAllMentions).Methods(http.MethodGet)
	r.HandleFunc("/instagram/webhook", s.handleWebhookVerify).Methods(http.MethodGet)
	r.HandleFunc("/instagram/webhook", s.handleWebhookEvent).Methods(http.MethodPost)
	r.HandleFunc("/instagram/business-account", s.handleBusinessAccount).Methods(http.MethodGet)

	platform := "/{platform:" + strings.Join(models.AllPlatforms(), "|") + "}"
	r.HandleFunc(platform+"/mentions", s.handleMentions).Methods(http.MethodGet)
	r.HandleFunc(platform+"/posts", s.handlePosts).Methods(http.MethodGet)
	r.HandleFunc(platform+"/posts", s.handleCreatePost).Methods(http.MethodPost)
	r.HandleFunc(platform+"/posts/{post_id}/comments", s.handleComments).Methods(http.MethodGet)
	r.HandleFunc(platform+"/conversations", s.handleConversations).Methods(http.MethodGet)
	r.HandleFunc(platform+"/reply", s.handleReply).Methods(http.MethodPost)
	r.HandleFunc(platform+"/private-reply", s.handlePrivateReply).Methods(http.MethodPost)

	r.HandleFunc("/sentiment", s.handleSentiment).Methods(http.MethodGet)
	r.HandleFunc("/tickets", s.handleTicketStats).Methods(http.MethodGet)
	r.HandleFunc("/tickets/recent", s.handleRecentTickets).Methods(http.MethodGet)
	r.HandleFunc("/tickets/raise", s.handleRaiseTickets).Methods(http.MethodPost)
	r.HandleFunc("/tickets/{mention_id}/resolve", s.handleResolve).Methods(http.MethodPost)
	r.HandleFunc("/analytics/replies", s.handleReplyAnalytics).Methods(http.MethodGet)
	r.HandleFunc("/users/{user_id}/history", s.handleUserHistory).Methods(http.MethodGet)

	r.HandleFunc("/autonomous/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/autonomous/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/autonomous/run-once", s.handleRunOnce).Methods(http.MethodPost)
	r.HandleFunc("/autonomous/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/autonomous/reports", s.handleReports).Methods(http.MethodGet)
	r.HandleFunc("/autonomous/reports/{report_id}", s.handleReport).Methods(http.MethodGet)

	r.HandleFunc("/agent/run", s.handleAgentRun).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "route not found"})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			body["status"] = "unhealthy"
			body["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, body)
}

// credentials reads the optional per-call token and account overrides
func credentials(r *http.Request) sources.Credentials {
	q := r.URL.Query()
	return sources.Credentials{
		AccessToken: q.Get("access_token"),
		AccountID:   q.Get("account_id"),
	}
}

func positiveInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("%s must be a positive integer", key)
	}
	return n, nil
}

func required(r *http.Request, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := strings.TrimSpace(r.URL.Query().Get(k))
		if v == "" {
			missing = append(missing, k)
			continue
		}
		values[k] = v
	}
	if len(missing) > 0 {
		return nil, badRequest("missing required query parameter(s): %s", strings.Join(missing, ", "))
	}
	return values, nil
}

func platformVar(r *http.Request) string {
	return mux.Vars(r)["platform"]
}

func (s *Server) sourceFor(r *http.Request) (sources.Source, error) {
	name := platformVar(r)
	src, ok := s.monitor.Sources().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", monitoring.ErrUnknownPlatform, name)
	}
	return src, nil
}

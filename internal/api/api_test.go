package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/monitoring"
	"github.com/brandpulse/social-mentions-bot/internal/scheduler"
	"github.com/brandpulse/social-mentions-bot/internal/sentiment"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/storage"
	"github.com/brandpulse/social-mentions-bot/internal/store"
	"github.com/brandpulse/social-mentions-bot/internal/ticketing"
)

type stubSource struct {
	name     string
	mentions []models.RawPost
	fetchErr error

	mu      sync.Mutex
	replies map[string]string
}

func newStubSource(name string, mentions ...models.RawPost) *stubSource {
	return &stubSource{name: name, mentions: mentions, replies: map[string]string{}}
}

func (f *stubSource) GetName() string { return f.name }
func (f *stubSource) IsEnabled() bool { return true }

func (f *stubSource) FetchMentions(ctx context.Context, creds sources.Credentials) ([]models.RawPost, error) {
	return f.mentions, f.fetchErr
}

func (f *stubSource) FetchPosts(ctx context.Context, creds sources.Credentials) ([]models.RawPost, error) {
	return f.mentions, f.fetchErr
}

func (f *stubSource) Reply(ctx context.Context, postID, text string, creds sources.Credentials) (models.ReplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[postID] = text
	return models.ReplyResult{RemoteID: "r_" + postID}, nil
}

func (f *stubSource) SendPrivateReply(ctx context.Context, targetID, text string, creds sources.Credentials) (models.ReplyResult, error) {
	return models.ReplyResult{}, sources.ErrUnsupported
}

type positiveClassifier struct{}

func (positiveClassifier) ClassifyAndDraft(ctx context.Context, mention models.MentionPost, user *models.User, history []models.Interaction) (sentiment.Draft, error) {
	return sentiment.Draft{Sentiment: "positive", ReplyText: "Thanks for the kind words!"}, nil
}

type fixture struct {
	store   *store.Store
	runner  *scheduler.Runner
	handler http.Handler
}

func newFixture(t *testing.T, archive *storage.ReportArchive, srcs ...sources.Source) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	st := store.New(db)

	monitor := monitoring.NewService(st, sources.NewSet(srcs...), positiveClassifier{}, ticketing.NewService(st, nil), archive)
	runner := scheduler.NewRunner(monitor, time.Hour)
	t.Cleanup(func() {
		_ = runner.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Wait(ctx)
	})

	srv := NewServer(monitor, st, runner, nil, "verify-me")
	return &fixture{store: st, runner: runner, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func raw(id, text, author string) models.RawPost {
	return models.RawPost{
		ID:        id,
		Text:      text,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
		Author:    models.Author{ID: author, Username: author},
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/myspace/mentions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestAllMentions_PartialFailure(t *testing.T) {
	fb := newStubSource("facebook", raw("fb1", "great page", "u1"))
	ig := newStubSource("instagram")
	ig.fetchErr = &sources.PlatformAPIError{Platform: "instagram", Status: 400, Message: "Invalid OAuth access token"}
	f := newFixture(t, nil, fb, ig)

	rec := f.do(t, http.MethodGet, "/all/mentions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]models.RawPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["facebook"], 1)
	assert.Empty(t, body["instagram"])
	assert.Empty(t, body["x"])
	assert.NotContains(t, body, "linkedin")

	m, err := f.store.GetMention(context.Background(), "fb1")
	require.NoError(t, err)
	assert.False(t, m.IsReply)
}

func TestMentions_PlatformError(t *testing.T) {
	x := newStubSource("x")
	x.fetchErr = &sources.PlatformAPIError{Platform: "x", Status: 401, Message: "Unauthorized"}
	f := newFixture(t, nil, x)

	rec := f.do(t, http.MethodGet, "/x/mentions", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Unauthorized")
}

func TestReply(t *testing.T) {
	fb := newStubSource("facebook")
	f := newFixture(t, nil, fb)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing message", "/facebook/reply?post_id=1", http.StatusBadRequest},
		{"missing both", "/facebook/reply", http.StatusBadRequest},
		{"unconfigured platform", "/linkedin/reply?post_id=1&message=hi", http.StatusNotFound},
		{"sent", "/facebook/reply?post_id=1&message=hi", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.target, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, "hi", fb.replies["1"])
}

func TestPrivateReply_Unsupported(t *testing.T) {
	f := newFixture(t, nil, newStubSource("x"))

	rec := f.do(t, http.MethodPost, "/x/private-reply?post_id=1&message=hi", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.store.UpsertIfNew(ctx, []models.RawPost{
		raw("neg", "awful support", "u1"),
		raw("pos", "love it", "u2"),
	}, "facebook")
	require.NoError(t, err)
	require.NoError(t, f.store.SetSentiment(ctx, "neg", "negative"))
	require.NoError(t, f.store.SetSentiment(ctx, "pos", "positive"))

	rec := f.do(t, http.MethodPost, "/tickets/missing/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/tickets/pos/resolve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/tickets/neg/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "resolved", body["ticket_status"])
	assert.Equal(t, "Mention neg marked as resolved", body["message"])

	m, err := f.store.GetMention(ctx, "neg")
	require.NoError(t, err)
	assert.True(t, m.TicketResolved)
}

func TestRaiseTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.store.UpsertIfNew(ctx, []models.RawPost{raw("neg", "awful support", "u1")}, "x")
	require.NoError(t, err)
	require.NoError(t, f.store.SetSentiment(ctx, "neg", "negative"))

	rec := f.do(t, http.MethodPost, "/tickets/raise", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []models.Ticket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "neg", body.Data[0].MentionPostID)

	rec = f.do(t, http.MethodGet, "/tickets/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
}

func TestAnalyticsQueryValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		target string
		status int
	}{
		{"/sentiment", http.StatusOK},
		{"/sentiment?days=14", http.StatusOK},
		{"/sentiment?days=0", http.StatusBadRequest},
		{"/sentiment?days=abc", http.StatusBadRequest},
		{"/tickets?days=-3", http.StatusBadRequest},
		{"/tickets", http.StatusOK},
		{"/analytics/replies", http.StatusOK},
		{"/users/u1/history?limit=0", http.StatusBadRequest},
		{"/users/u1/history", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSentimentWindow(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/sentiment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.SentimentStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.Total)
	assert.InDelta(t, float64(7*24*time.Hour), float64(stats.TimePeriod.End.Sub(stats.TimePeriod.Start)), float64(2*time.Hour))
}

func TestAutonomousControl(t *testing.T) {
	f := newFixture(t, nil)

	steps := []struct {
		path   string
		status string
	}{
		{"/autonomous/start", "started"},
		{"/autonomous/start", "already_running"},
		{"/autonomous/stop", "stopped"},
		{"/autonomous/stop", "not_running"},
	}
	for _, s := range steps {
		rec := f.do(t, http.MethodPost, s.path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, s.status, decode(t, rec)["status"], s.path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Wait(ctx))

	rec := f.do(t, http.MethodGet, "/autonomous/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["is_running"])
	assert.Equal(t, "stopped", body["status"])
}

func TestRunOnceAndReports(t *testing.T) {
	backend, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	archive := storage.NewReportArchive(backend, 5)
	ig := newStubSource("instagram", raw("ig1", "nice reel", "u1"))
	f := newFixture(t, archive, ig)

	rec := f.do(t, http.MethodPost, "/autonomous/run-once", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string             `json:"status"`
		Result models.CycleReport `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.Result.Replied())

	ig.mu.Lock()
	assert.Equal(t, "Thanks for the kind words!", ig.replies["ig1"])
	ig.mu.Unlock()

	rec = f.do(t, http.MethodGet, "/autonomous/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{body.Result.ID}, list.Data)

	rec = f.do(t, http.MethodGet, "/autonomous/reports/"+body.Result.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/autonomous/reports/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentRun_NotConfigured(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/agent/run", `{"task":"reply to everyone"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookVerify(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/instagram/webhook?"+tt.query, "")
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestWebhookEvent_FetchesMentions(t *testing.T) {
	ig := newStubSource("instagram", raw("ig7", "@brand hello", "u9"))
	f := newFixture(t, nil, ig)

	payload := `{"object":"instagram","entry":[{"id":"1","changes":[{"field":"mentions"}]}]}`
	rec := f.do(t, http.MethodPost, "/instagram/webhook", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode(t, rec)["status"])

	_, err := f.store.GetMention(context.Background(), "ig7")
	assert.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/instagram/webhook", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkedInContentRoutes(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/posts":
			w.Header().Set("x-restli-id", "urn:li:share:7")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/conversations":
			_, _ = w.Write([]byte(`{"elements":[{"entityUrn":"urn:li:messagingThread:1","participants":["urn:li:person:a"]}]}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/comments"):
			_, _ = w.Write([]byte(`{"elements":[{"id":"3","actor":"urn:li:person:a","object":"urn:li:share:7","message":{"text":"Nice"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	f := newFixture(t, nil, sources.NewLinkedInSource(backend.URL, "urn:li:organization:1", "tok", "202405"), newStubSource("x"))

	t.Run("Create post", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/linkedin/posts", `{"text":"Hello LinkedIn"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "urn:li:share:7", body["data"].(map[string]any)["id"])
	})

	t.Run("Create post without text", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/linkedin/posts", `{"text":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/linkedin/posts", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Post comments", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/linkedin/posts/urn:li:share:7/comments", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Data []models.RawPost `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "urn:li:comment:(urn:li:share:7,3)", body.Data[0].ID)
		assert.Equal(t, "Nice", body.Data[0].Text)
	})

	t.Run("Conversations", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/linkedin/conversations", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Data []models.Conversation `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "urn:li:messagingThread:1", body.Data[0].ID)
	})

	t.Run("Unsupported platform operations", func(t *testing.T) {
		for _, target := range []string{"/x/conversations", "/x/posts/1/comments"} {
			rec := f.do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
		rec := f.do(t, http.MethodPost, "/x/posts", `{"text":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInstagramBusinessAccount(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/page-1" {
			_, _ = w.Write([]byte(`{"id":"page-1","instagram_business_account":{"id":"ig-5","username":"brand"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"page-2"}`))
	}))
	defer backend.Close()

	f := newFixture(t, nil, sources.NewInstagramSource(backend.URL, "ig-5", "tok"))

	rec := f.do(t, http.MethodGet, "/instagram/business-account?page_id=page-1&page_access_token=pt", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data models.BusinessAccount `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.BusinessAccount{ID: "ig-5", Username: "brand", PageID: "page-1"}, body.Data)

	rec = f.do(t, http.MethodGet, "/instagram/business-account?page_id=page-2&page_access_token=pt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/instagram/business-account?page_id=page-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No Instagram client registered
	rec = newFixture(t, nil).do(t, http.MethodGet, "/instagram/business-account?page_id=page-1&page_access_token=pt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

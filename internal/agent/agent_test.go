package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
)

// MockCompleter is a mock implementation of llm.Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) Name() string { return "mock" }

func (m *MockCompleter) script(responses ...string) {
	for _, r := range responses {
		m.On("Complete", mock.Anything, mock.Anything).Return(r, nil).Once()
	}
}

// fakePipeline implements Operations and Mentions in memory
type fakePipeline struct {
	mu         sync.Mutex
	calls      []string
	mentions   map[string]*models.MentionPost
	processErr error
}

func newFakePipeline(mentions ...models.MentionPost) *fakePipeline {
	p := &fakePipeline{mentions: map[string]*models.MentionPost{}}
	for i := range mentions {
		m := mentions[i]
		p.mentions[m.ID] = &m
	}
	return p
}

func (p *fakePipeline) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePipeline) FetchAll(ctx context.Context) []models.PlatformOutcome {
	p.record("fetch")
	return []models.PlatformOutcome{{Platform: "facebook", Fetched: 1, Inserted: 1}}
}

func (p *fakePipeline) ProcessMention(ctx context.Context, id string) (models.MentionOutcome, error) {
	p.record("process:" + id)
	if p.processErr != nil {
		return models.MentionOutcome{MentionID: id, Error: p.processErr.Error()}, p.processErr
	}
	return models.MentionOutcome{MentionID: id, Platform: "facebook", Sentiment: "negative", ReplyID: "r_" + id}, nil
}

func (p *fakePipeline) SendReply(ctx context.Context, platform, postID, text string, creds sources.Credentials) (models.ReplyResult, error) {
	p.record("reply:" + platform + ":" + postID)
	return models.ReplyResult{RemoteID: "r_" + postID}, nil
}

func (p *fakePipeline) RaiseTickets(ctx context.Context) ([]models.Ticket, error) {
	p.record("tickets")
	return []models.Ticket{{ID: "TICKET_m1_1700000000", MentionPostID: "m1"}}, nil
}

func (p *fakePipeline) ListUnreplied(ctx context.Context) ([]models.MentionPost, error) {
	var out []models.MentionPost
	for _, m := range p.mentions {
		if !m.IsReply {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (p *fakePipeline) GetMention(ctx context.Context, id string) (*models.MentionPost, error) {
	m, ok := p.mentions[id]
	if !ok {
		return nil, errors.New("mention not found")
	}
	return m, nil
}

func (p *fakePipeline) SetSentiment(ctx context.Context, id, label string) error {
	p.record("sentiment:" + id + ":" + label)
	return nil
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAction string
		wantErr    string
	}{
		{name: "Fetch", raw: `{"thought":"start","action":"fetch_mentions","input":{}}`, wantAction: ActionFetchMentions},
		{name: "Input may be omitted", raw: `{"action":"raise_tickets"}`, wantAction: ActionRaiseTickets},
		{name: "Fenced", raw: "```json\n{\"action\":\"finish\",\"input\":{\"answer\":\"done\"}}\n```", wantAction: ActionFinish},
		{name: "Case-insensitive name", raw: `{"action":"Classify_And_Reply","input":{"mention_id":"m1"}}`, wantAction: ActionClassifyAndReply},
		{name: "Unknown top-level field", raw: `{"action":"fetch_mentions","tool":"x"}`, wantErr: "unknown field"},
		{name: "Unknown input field", raw: `{"action":"send_reply","input":{"mention_id":"m1","reply_text":"hi","tone":"warm"}}`, wantErr: "unknown field"},
		{name: "Unknown action", raw: `{"action":"delete_everything"}`, wantErr: "unknown action"},
		{name: "Missing action", raw: `{"thought":"hmm"}`, wantErr: "missing action"},
		{name: "Missing mention id", raw: `{"action":"classify_and_reply","input":{}}`, wantErr: "input.mention_id is required"},
		{name: "Missing reply text", raw: `{"action":"send_reply","input":{"mention_id":"m1"}}`, wantErr: "input.reply_text is required"},
		{name: "Sentiment outside the set", raw: `{"action":"mark_sentiment","input":{"mention_id":"m1","sentiment":"angry"}}`, wantErr: "sentiment must be"},
		{name: "Finish without answer", raw: `{"action":"finish","input":{}}`, wantErr: "input.answer is required"},
		{name: "Empty", raw: "  ", wantErr: "empty response"},
		{name: "Prose", raw: "I think I should fetch mentions", wantErr: "expected a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := DecodeAction(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, action.Action)
		})
	}
}

func TestRun_FullPass(t *testing.T) {
	completer := new(MockCompleter)
	completer.script(
		`{"thought":"look first","action":"fetch_mentions","input":{}}`,
		`{"action":"classify_and_reply","input":{"mention_id":"m1"}}`,
		`{"action":"raise_tickets","input":{}}`,
		`{"action":"finish","input":{"answer":"Replied to 1 mention and raised 1 ticket"}}`,
	)
	pipeline := newFakePipeline(models.MentionPost{ID: "m1", PlatformID: "facebook", Text: "Terrible experience", UserID: "u1"})

	result, err := New(completer, pipeline, pipeline, Config{}).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultTask, result.Task)
	assert.True(t, result.Finished)
	assert.Equal(t, "finished", result.StopReason)
	assert.Equal(t, "Replied to 1 mention and raised 1 ticket", result.Answer)
	require.Len(t, result.Steps, 4)
	assert.Equal(t, "look first", result.Steps[0].Thought)
	assert.Contains(t, result.Steps[0].Observation, `"unreplied"`)
	assert.Contains(t, result.Steps[0].Observation, "Terrible experience")
	assert.Contains(t, result.Steps[1].Observation, `"reply_id":"r_m1"`)
	assert.Contains(t, result.Steps[2].Observation, `"raised":1`)
	assert.Equal(t, []string{"fetch", "process:m1", "tickets"}, pipeline.calls)
	completer.AssertExpectations(t)
}

func TestRun_HistoryIsFedBack(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return !strings.Contains(req.Prompt, "History:")
	})).Return(`{"action":"fetch_mentions"}`, nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "1. action=fetch_mentions") && req.JSON
	})).Return(`{"action":"finish","input":{"answer":"ok"}}`, nil).Once()

	pipeline := newFakePipeline()
	result, err := New(completer, pipeline, pipeline, Config{}).Run(context.Background(), "check mentions")
	require.NoError(t, err)
	assert.True(t, result.Finished)
	completer.AssertExpectations(t)
}

func TestRun_InvalidOutputIsRetried(t *testing.T) {
	completer := new(MockCompleter)
	completer.script(
		"Thought: I should fetch. Action: fetch_mentions",
		`{"action":"finish","input":{"answer":"nothing to do"}}`,
	)
	pipeline := newFakePipeline()

	result, err := New(completer, pipeline, pipeline, Config{MaxInvalid: 2}).Run(context.Background(), "task")
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Len(t, result.Steps[0].Invalid, 1)
	assert.Equal(t, "nothing to do", result.Answer)
}

func TestRun_TooManyInvalid(t *testing.T) {
	completer := new(MockCompleter)
	completer.script(
		`{"action":"fetch_mentions","extra":true}`,
		`{"action":"dance"}`,
	)
	pipeline := newFakePipeline()

	result, err := New(completer, pipeline, pipeline, Config{MaxInvalid: 1}).Run(context.Background(), "task")
	assert.ErrorIs(t, err, ErrInvalidOutput)
	require.NotNil(t, result)
	assert.Equal(t, "invalid_output", result.StopReason)
	require.Len(t, result.Steps, 1)
	assert.Len(t, result.Steps[0].Invalid, 2)
	assert.Empty(t, pipeline.calls)
}

func TestRun_StopsAtMaxSteps(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return(`{"action":"fetch_mentions"}`, nil)
	pipeline := newFakePipeline()

	result, err := New(completer, pipeline, pipeline, Config{MaxSteps: 3}).Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.False(t, result.Finished)
	assert.Equal(t, "max_steps", result.StopReason)
	assert.Len(t, result.Steps, 3)
	completer.AssertNumberOfCalls(t, "Complete", 3)
}

func TestRun_ToolFailuresBecomeObservations(t *testing.T) {
	completer := new(MockCompleter)
	completer.script(
		`{"action":"send_reply","input":{"mention_id":"done","reply_text":"hello again"}}`,
		`{"action":"send_reply","input":{"mention_id":"ghost","reply_text":"hi"}}`,
		`{"action":"classify_and_reply","input":{"mention_id":"m1"}}`,
		`{"action":"mark_sentiment","input":{"mention_id":"m1","sentiment":"Negative"}}`,
		`{"action":"send_reply","input":{"mention_id":"m1","reply_text":"Sorry, our team will reach you shortly."}}`,
		`{"action":"finish","input":{"answer":"done"}}`,
	)
	pipeline := newFakePipeline(
		models.MentionPost{ID: "done", PlatformID: "x", IsReply: true},
		models.MentionPost{ID: "m1", PlatformID: "instagram"},
	)
	pipeline.processErr = errors.New("instagram API error (status 400): Invalid OAuth access token")

	result, err := New(completer, pipeline, pipeline, Config{}).Run(context.Background(), "reply")
	require.NoError(t, err)
	require.Len(t, result.Steps, 6)
	assert.Equal(t, "error: mention already replied", result.Steps[0].Observation)
	assert.Equal(t, "error: mention not found", result.Steps[1].Observation)
	assert.Contains(t, result.Steps[2].Observation, "Invalid OAuth access token")
	assert.Contains(t, result.Steps[3].Observation, "success")
	assert.Contains(t, result.Steps[4].Observation, "r_m1")
	assert.Equal(t, []string{"process:m1", "sentiment:m1:Negative", "reply:instagram:m1"}, pipeline.calls)
}

func TestRun_CompleterErrorAborts(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return("", &llm.APIError{Provider: "openai", Status: 429, Message: "rate limited"}).Once()
	pipeline := newFakePipeline()

	result, err := New(completer, pipeline, pipeline, Config{}).Run(context.Background(), "task")
	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
	assert.Empty(t, result.Steps)
	assert.False(t, result.Finished)
}

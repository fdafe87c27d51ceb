package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	s := New(db)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func rawPost(id, author, text string, created time.Time) models.RawPost {
	return models.RawPost{
		ID:        id,
		Text:      text,
		CreatedAt: created,
		Author:    models.Author{ID: author, Username: author},
	}
}

func TestUpsertIfNew_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := s.now().Add(-time.Hour)

	post := rawPost("p1", "u1", "hello @brand", created)

	n, err := s.UpsertIfNew(ctx, []models.RawPost{post}, "instagram")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.UpsertIfNew(ctx, []models.RawPost{post, post}, "instagram")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int64
	require.NoError(t, s.db.Model(&models.MentionPost{}).Where("id = ?", "p1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	m, err := s.GetMention(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, m.IsReply)
	assert.Nil(t, m.Sentiment)
	assert.Equal(t, "u1", m.UserID)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "instagram", user.PlatformID)

	var platform models.Platform
	require.NoError(t, s.db.First(&platform, "id = ?", "instagram").Error)
	assert.Equal(t, "Instagram", platform.Name)
}

func TestUpsertIfNew_DuplicateWithinBatch(t *testing.T) {
	s := newTestStore(t)
	created := s.now()

	n, err := s.UpsertIfNew(context.Background(), []models.RawPost{
		rawPost("a", "u1", "one", created),
		rawPost("a", "u1", "one again", created),
		rawPost("b", "u2", "two", created),
	}, "facebook")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnsureUser_NeverUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsurePlatform(ctx, "x", ""))
	require.NoError(t, s.EnsurePlatform(ctx, "x", ""))
	require.NoError(t, s.EnsureUser(ctx, models.User{ID: "u1", Username: "first", PlatformID: "x"}))
	require.NoError(t, s.EnsureUser(ctx, models.User{ID: "u1", Username: "second", PlatformID: "x"}))

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "first", user.Username)
}

func TestMarkReplied_RemovesFromUnreplied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{
		rawPost("p1", "u1", "first", s.now()),
		rawPost("p2", "u2", "second", s.now()),
	}, "x")
	require.NoError(t, err)

	require.NoError(t, s.MarkReplied(ctx, "p1", "r1", "Thanks!"))
	require.NoError(t, s.MarkReplied(ctx, "p1", "r2", "Thanks again!"))

	unreplied, err := s.ListUnreplied(ctx)
	require.NoError(t, err)
	require.Len(t, unreplied, 1)
	assert.Equal(t, "p2", unreplied[0].ID)

	m, err := s.GetMention(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, m.IsReply)
	assert.Equal(t, "r2", *m.RepliedToPostID)
	assert.Equal(t, "Thanks again!", *m.ReplyMessage)

	assert.ErrorIs(t, s.MarkReplied(ctx, "missing", "r", "t"), ErrNotFound)
}

func TestSetSentiment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{rawPost("p1", "u1", "text", s.now())}, "x")
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		label   string
		wantErr error
	}{
		{name: "Lowercase label", id: "p1", label: "neutral"},
		{name: "Case preserved", id: "p1", label: "Negative"},
		{name: "Unknown label", id: "p1", label: "furious", wantErr: ErrInvalidSentiment},
		{name: "Missing mention", id: "nope", label: "positive", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetSentiment(ctx, tt.id, tt.label)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			m, err := s.GetMention(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.label, *m.Sentiment)
		})
	}
}

func TestSetPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{rawPost("p1", "u1", "text", s.now())}, "x")
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetPriority(ctx, "p1", 0), ErrInvalidPriority)
	assert.ErrorIs(t, s.SetPriority(ctx, "p1", 5), ErrInvalidPriority)
	require.NoError(t, s.SetPriority(ctx, "p1", 2))

	m, err := s.GetMention(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, *m.Priority)
}

func TestResolveTicket_Preconditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{
		rawPost("pos", "u1", "love it", s.now()),
		rawPost("unclassified", "u2", "hmm", s.now()),
	}, "facebook")
	require.NoError(t, err)
	require.NoError(t, s.SetSentiment(ctx, "pos", "positive"))

	_, err = s.ResolveTicket(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"pos", "unclassified"} {
		_, err = s.ResolveTicket(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidState)

		m, err := s.GetMention(ctx, id)
		require.NoError(t, err)
		assert.False(t, m.TicketResolved)
	}
}

func TestResolveTicket_Negative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{rawPost("neg", "u1", "broken", s.now())}, "facebook")
	require.NoError(t, err)
	require.NoError(t, s.SetSentiment(ctx, "neg", "NEGATIVE"))

	tickets, err := s.RaiseTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	m, err := s.ResolveTicket(ctx, "neg")
	require.NoError(t, err)
	assert.True(t, m.TicketResolved)

	var ticket models.Ticket
	require.NoError(t, s.db.First(&ticket, "id = ?", tickets[0].ID).Error)
	require.NotNil(t, ticket.ResolvedAt)
}

func TestRaiseTickets_OnlyNegativeUnresolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)

	_, err := s.UpsertIfNew(ctx, []models.RawPost{
		rawPost("n1", "u1", "awful", created),
		rawPost("n2", "u2", "worst", created),
		rawPost("p1", "u3", "great", created),
		rawPost("u1", "u4", "unclassified", created),
	}, "instagram")
	require.NoError(t, err)
	require.NoError(t, s.SetSentiment(ctx, "n1", "negative"))
	require.NoError(t, s.SetSentiment(ctx, "n2", "Negative"))
	require.NoError(t, s.SetSentiment(ctx, "p1", "positive"))

	tickets, err := s.RaiseTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	ids := []string{tickets[0].MentionPostID, tickets[1].MentionPostID}
	assert.ElementsMatch(t, []string{"n1", "n2"}, ids)
	for _, tk := range tickets {
		assert.True(t, strings.HasPrefix(tk.ID, "TICKET_"+tk.MentionPostID+"_"))
		assert.Equal(t, fmt.Sprintf("TICKET_%s_%d", tk.MentionPostID, created.Unix()), tk.ID)
	}

	var untreated int64
	require.NoError(t, s.db.Model(&models.MentionPost{}).
		Where("LOWER(sentiment) = ? AND ticket_resolved = ?", "negative", false).
		Count(&untreated).Error)
	assert.Zero(t, untreated)

	for _, id := range []string{"p1", "u1"} {
		m, err := s.GetMention(ctx, id)
		require.NoError(t, err)
		assert.False(t, m.TicketResolved)
	}

	again, err := s.RaiseTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRaiseTickets_RollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := s.now()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{
		rawPost("n1", "u1", "awful", created),
		rawPost("n2", "u2", "worst", created),
	}, "x")
	require.NoError(t, err)
	require.NoError(t, s.SetSentiment(ctx, "n1", "negative"))
	require.NoError(t, s.SetSentiment(ctx, "n2", "negative"))

	// A ticket with n2's derived id already exists, so the batch must fail
	n2, err := s.GetMention(ctx, "n2")
	require.NoError(t, err)
	require.NoError(t, s.db.Create(&models.Ticket{ID: TicketID(*n2), MentionPostID: "n2", CreatedAt: created}).Error)

	_, err = s.RaiseTickets(ctx)
	require.Error(t, err)

	for _, id := range []string{"n1", "n2"} {
		m, err := s.GetMention(ctx, id)
		require.NoError(t, err)
		assert.False(t, m.TicketResolved, id)
	}

	var tickets int64
	require.NoError(t, s.db.Model(&models.Ticket{}).Count(&tickets).Error)
	assert.Equal(t, int64(1), tickets)
}

func TestAnalytics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := s.now()

	_, err := s.UpsertIfNew(ctx, []models.RawPost{
		rawPost("a", "u1", "great", now.Add(-24*time.Hour)),
		rawPost("b", "u1", "bad", now.Add(-48*time.Hour)),
		rawPost("c", "u2", "meh", now.Add(-72*time.Hour)),
		rawPost("d", "u3", "terrible", now.Add(-20*24*time.Hour)),
		rawPost("old", "u4", "ancient", now.Add(-60*24*time.Hour)),
	}, "facebook")
	require.NoError(t, err)
	require.NoError(t, s.SetSentiment(ctx, "a", "Positive"))
	require.NoError(t, s.SetSentiment(ctx, "b", "negative"))
	require.NoError(t, s.SetSentiment(ctx, "c", "neutral"))
	require.NoError(t, s.SetSentiment(ctx, "d", "negative"))
	require.NoError(t, s.SetSentiment(ctx, "old", "negative"))
	require.NoError(t, s.MarkReplied(ctx, "a", "r-a", "Thanks!"))
	require.NoError(t, s.MarkReplied(ctx, "b", "r-b", "Sorry, our team will reach you shortly"))

	sentiment, err := s.SentimentCounts(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sentiment.Positive)
	assert.Equal(t, int64(1), sentiment.Negative)
	assert.Equal(t, int64(1), sentiment.Neutral)
	assert.Equal(t, int64(3), sentiment.Total)
	assert.Equal(t, now, sentiment.TimePeriod.End)
	assert.Equal(t, now.AddDate(0, 0, -7), sentiment.TimePeriod.Start)

	_, err = s.RaiseTickets(ctx)
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.MentionPost{}).Where("id = ?", "d").Update("ticket_resolved", false).Error)

	tickets, err := s.TicketStats(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tickets.TotalTickets)
	assert.Equal(t, int64(1), tickets.Resolved)
	assert.Equal(t, int64(1), tickets.Pending)
	assert.InDelta(t, 50.0, tickets.ResolutionRate, 0.001)

	replies, err := s.ReplyAnalytics(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), replies.TotalReplies)
	assert.Equal(t, int64(1), replies.UniqueUsersReplied)
	assert.Equal(t, map[string]int64{"facebook": 2}, replies.ByPlatform)

	history, err := s.UserHistory(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "great", history[0].UserPost)
	assert.Equal(t, "Thanks!", history[0].Reply)
	assert.Equal(t, "Positive", history[0].Sentiment)
	assert.Equal(t, "bad", history[1].UserPost)
}

func TestAnalytics_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	tickets, err := s.TicketStats(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, tickets.TotalTickets)
	assert.Zero(t, tickets.ResolutionRate)

	history, err := s.UserHistory(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

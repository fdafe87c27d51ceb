package store

import (
	"context"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// MentionStore owns the lifecycle of platforms, users, mentions and tickets
type MentionStore interface {
	EnsurePlatform(ctx context.Context, id, name string) error
	EnsureUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	UpsertIfNew(ctx context.Context, posts []models.RawPost, platformID string) (int, error)
	ListUnreplied(ctx context.Context) ([]models.MentionPost, error)
	GetMention(ctx context.Context, id string) (*models.MentionPost, error)
	MarkReplied(ctx context.Context, id, remoteID, text string) error
	SetSentiment(ctx context.Context, id, label string) error
	SetPriority(ctx context.Context, id string, priority int) error

	ResolveTicket(ctx context.Context, mentionID string) (*models.MentionPost, error)
	RaiseTickets(ctx context.Context) ([]models.Ticket, error)
	ListTickets(ctx context.Context, limit int) ([]models.Ticket, error)

	SentimentCounts(ctx context.Context, days int) (*models.SentimentStats, error)
	TicketStats(ctx context.Context, days int) (*models.TicketStats, error)
	ReplyAnalytics(ctx context.Context, days int) (*models.ReplyStats, error)
	UserHistory(ctx context.Context, userID string, limit int) ([]models.Interaction, error)
}

var _ MentionStore = (*Store)(nil)

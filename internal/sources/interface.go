package sources

import (
	"context"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// Source interface defines the contract for all platform clients
type Source interface {
	GetName() string
	IsEnabled() bool
	FetchMentions(ctx context.Context, creds Credentials) ([]models.RawPost, error)
	FetchPosts(ctx context.Context, creds Credentials) ([]models.RawPost, error)
	Reply(ctx context.Context, postID, text string, creds Credentials) (models.ReplyResult, error)
	SendPrivateReply(ctx context.Context, targetID, text string, creds Credentials) (models.ReplyResult, error)
}

// ConversationLister is implemented by sources that expose a private inbox
type ConversationLister interface {
	FetchConversations(ctx context.Context, creds Credentials) ([]models.Conversation, error)
}

// CommentLister is implemented by sources that can list the comments under a post
type CommentLister interface {
	FetchComments(ctx context.Context, postID string, creds Credentials) ([]models.RawPost, error)
}

// Publisher is implemented by sources that can publish a new post as the account
type Publisher interface {
	CreatePost(ctx context.Context, text string, creds Credentials) (models.ReplyResult, error)
}

// Credentials override the configured token and account for one call.
// Empty fields fall back to the client's defaults.
type Credentials struct {
	AccessToken string
	AccountID   string
}

func (c Credentials) orDefault(token, account string) Credentials {
	if c.AccessToken == "" {
		c.AccessToken = token
	}
	if c.AccountID == "" {
		c.AccountID = account
	}
	return c
}

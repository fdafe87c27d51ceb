package sources

import (
	"context"
	"net/http"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	facebookMentionFields = "id,message,from,created_time,permalink_url,full_picture"
	facebookPostFields    = "id,message,created_time,permalink_url,full_picture"
	facebookCommentFields = "id,message,from,created_time,permalink_url"
)

// FacebookSource implements the Facebook Page Graph API client
type FacebookSource struct {
	pageID string
	token  string
	client *resty.Client
}

// NewFacebookSource creates a new Facebook source
func NewFacebookSource(graphURL, pageID, token string) *FacebookSource {
	return &FacebookSource{
		pageID: pageID,
		token:  token,
		client: newRestyClient(graphURL),
	}
}

func (f *FacebookSource) GetName() string {
	return models.PlatformFacebook
}

func (f *FacebookSource) IsEnabled() bool {
	return f.pageID != "" && f.token != ""
}

func (f *FacebookSource) credentials(creds Credentials) (Credentials, error) {
	c := creds.orDefault(f.token, f.pageID)
	if c.AccessToken == "" || c.AccountID == "" {
		return c, ErrMissingCredentials
	}
	return c, nil
}

// FetchMentions returns posts where the page is tagged
func (f *FacebookSource) FetchMentions(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return nil, err
	}

	posts, err := graphGetList(ctx, f.client, f.GetName(), c.AccountID, "tagged", facebookMentionFields, c)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Fetched %d Facebook mentions", len(posts))
	return posts, nil
}

// FetchPosts returns the page's own posts
func (f *FacebookSource) FetchPosts(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphGetList(ctx, f.client, f.GetName(), c.AccountID, "posts", facebookPostFields, c)
}

// Reply comments on a post or comment
func (f *FacebookSource) Reply(ctx context.Context, postID, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}
	return graphComment(ctx, f.client, f.GetName(), postID, text, c)
}

// FetchComments lists the comments under a page post
func (f *FacebookSource) FetchComments(ctx context.Context, postID string, creds Credentials) ([]models.RawPost, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphGetList(ctx, f.client, f.GetName(), postID, "comments", facebookCommentFields, c)
}

// FetchConversations lists the page's Messenger threads
func (f *FacebookSource) FetchConversations(ctx context.Context, creds Credentials) ([]models.Conversation, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphConversations(ctx, f.client, f.GetName(), c, nil)
}

// SendPrivateReply answers a post or comment in Messenger
func (f *FacebookSource) SendPrivateReply(ctx context.Context, targetID, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := f.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}

	var out graphWriteResponse
	req := f.client.R().
		SetContext(ctx).
		SetPathParam("object", targetID).
		SetFormData(map[string]string{
			"message":      text,
			"access_token": c.AccessToken,
		})
	if _, err := execute(f.GetName(), req, http.MethodPost, "/{object}/private_replies", &out); err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: out.remoteID()}, nil
}

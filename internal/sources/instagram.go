package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	instagramMentionFields = "id,caption,media_type,media_url,timestamp,permalink,username,owner"
	instagramPostFields    = "id,caption,media_type,media_url,timestamp,permalink"
	instagramCommentFields = "id,text,username,timestamp,from"

	// Graph API message when the account type has no mentions edge
	mentionsFieldUnsupported = "nonexisting field (mentions)"
)

// InstagramSource implements the Instagram Graph API client
type InstagramSource struct {
	userID string
	token  string
	client *resty.Client
}

// NewInstagramSource creates a new Instagram source
func NewInstagramSource(graphURL, userID, token string) *InstagramSource {
	return &InstagramSource{
		userID: userID,
		token:  token,
		client: newRestyClient(graphURL),
	}
}

func (i *InstagramSource) GetName() string {
	return models.PlatformInstagram
}

func (i *InstagramSource) IsEnabled() bool {
	return i.userID != "" && i.token != ""
}

func (i *InstagramSource) credentials(creds Credentials) (Credentials, error) {
	c := creds.orDefault(i.token, i.userID)
	if c.AccessToken == "" || c.AccountID == "" {
		return c, ErrMissingCredentials
	}
	return c, nil
}

// FetchMentions returns media mentioning the account. Accounts without a
// mentions edge fall back to the tags edge.
func (i *InstagramSource) FetchMentions(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return nil, err
	}

	posts, err := graphGetList(ctx, i.client, i.GetName(), c.AccountID, "mentions", instagramMentionFields, c)
	if err == nil {
		logrus.Infof("Fetched %d Instagram mentions", len(posts))
		return posts, nil
	}

	var apiErr *PlatformAPIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, mentionsFieldUnsupported) {
		return nil, err
	}

	logrus.Info("Instagram mentions edge not supported for this account, falling back to tags")
	posts, err = graphGetList(ctx, i.client, i.GetName(), c.AccountID, "tags", instagramMentionFields, c)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Fetched %d Instagram tags", len(posts))
	return posts, nil
}

// FetchPosts returns the account's own media
func (i *InstagramSource) FetchPosts(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphGetList(ctx, i.client, i.GetName(), c.AccountID, "media", instagramPostFields, c)
}

// Reply comments on a media object
func (i *InstagramSource) Reply(ctx context.Context, mediaID, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}
	return graphComment(ctx, i.client, i.GetName(), mediaID, text, c)
}

// FetchComments lists the comments under a media object
func (i *InstagramSource) FetchComments(ctx context.Context, mediaID string, creds Credentials) ([]models.RawPost, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphGetList(ctx, i.client, i.GetName(), mediaID, "comments", instagramCommentFields, c)
}

// FetchConversations lists the account's Instagram Direct threads
func (i *InstagramSource) FetchConversations(ctx context.Context, creds Credentials) ([]models.Conversation, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return nil, err
	}
	return graphConversations(ctx, i.client, i.GetName(), c, map[string]string{"platform": "instagram"})
}

type instagramBusinessAccountResponse struct {
	ID                       string `json:"id"`
	InstagramBusinessAccount *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"instagram_business_account"`
}

// BusinessAccount resolves the Instagram professional account linked to a
// Facebook page. It returns ErrNotLinked when the page has none.
func (i *InstagramSource) BusinessAccount(ctx context.Context, pageID, pageToken string) (models.BusinessAccount, error) {
	if pageID == "" || pageToken == "" {
		return models.BusinessAccount{}, ErrMissingCredentials
	}

	var out instagramBusinessAccountResponse
	req := i.client.R().
		SetContext(ctx).
		SetPathParam("node", pageID).
		SetQueryParams(map[string]string{
			"fields":       "instagram_business_account{id,username,name}",
			"access_token": pageToken,
		})
	if _, err := execute(i.GetName(), req, http.MethodGet, "/{node}", &out); err != nil {
		return models.BusinessAccount{}, err
	}
	if out.InstagramBusinessAccount == nil || out.InstagramBusinessAccount.ID == "" {
		return models.BusinessAccount{}, fmt.Errorf("%w: page %s", ErrNotLinked, pageID)
	}
	return models.BusinessAccount{
		ID:       out.InstagramBusinessAccount.ID,
		Username: out.InstagramBusinessAccount.Username,
		Name:     out.InstagramBusinessAccount.Name,
		PageID:   pageID,
	}, nil
}

type instagramMessage struct {
	Recipient struct {
		CommentID string `json:"comment_id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// SendPrivateReply sends a direct message to the author of a comment
func (i *InstagramSource) SendPrivateReply(ctx context.Context, commentID, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := i.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}

	var payload instagramMessage
	payload.Recipient.CommentID = commentID
	payload.Message.Text = text

	var out graphWriteResponse
	req := i.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetPathParam("node", c.AccountID).
		SetBody(payload)
	if _, err := execute(i.GetName(), req, http.MethodPost, "/{node}/messages", &out); err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: out.remoteID()}, nil
}

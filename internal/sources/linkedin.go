package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const linkedInPageSize = "20"

// LinkedInSource implements the LinkedIn REST API client
type LinkedInSource struct {
	authorURN string
	token     string
	client    *resty.Client
}

type linkedInPostsResponse struct {
	Elements []struct {
		ID          string `json:"id"`
		Author      string `json:"author"`
		Commentary  string `json:"commentary"`
		CreatedAt   int64  `json:"createdAt"`
		PublishedAt int64  `json:"publishedAt"`
	} `json:"elements"`
}

type linkedInComment struct {
	ID         string `json:"id"`
	CommentURN string `json:"commentUrn"`
	URN        string `json:"$URN"`
	Actor      string `json:"actor"`
	Object     string `json:"object"`
	Message    struct {
		Text string `json:"text"`
	} `json:"message"`
	Created struct {
		Time int64 `json:"time"`
	} `json:"created"`
}

type linkedInCommentsResponse struct {
	Elements []linkedInComment `json:"elements"`
}

type linkedInCommentRequest struct {
	Actor         string `json:"actor"`
	Object        string `json:"object"`
	ParentComment string `json:"parentComment,omitempty"`
	Message       struct {
		Text string `json:"text"`
	} `json:"message"`
}

type linkedInCommentResponse struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

type linkedInPostRequest struct {
	Author         string `json:"author"`
	Commentary     string `json:"commentary"`
	Visibility     string `json:"visibility"`
	LifecycleState string `json:"lifecycleState"`
	Distribution   struct {
		FeedDistribution string `json:"feedDistribution"`
	} `json:"distribution"`
}

type linkedInConversationsResponse struct {
	Elements []struct {
		ID             string   `json:"id"`
		EntityURN      string   `json:"entityUrn"`
		Participants   []string `json:"participants"`
		LastActivityAt int64    `json:"lastActivityAt"`
		Events         []struct {
			ID        string `json:"id"`
			From      string `json:"from"`
			CreatedAt int64  `json:"createdAt"`
			Body      string `json:"body"`
		} `json:"events"`
	} `json:"elements"`
}

// NewLinkedInSource creates a new LinkedIn source
func NewLinkedInSource(apiURL, authorURN, token, apiVersion string) *LinkedInSource {
	return &LinkedInSource{
		authorURN: authorURN,
		token:     token,
		client: newRestyClient(apiURL).
			SetHeader("X-Restli-Protocol-Version", "2.0.0").
			SetHeader("LinkedIn-Version", apiVersion),
	}
}

func (l *LinkedInSource) GetName() string {
	return models.PlatformLinkedIn
}

func (l *LinkedInSource) IsEnabled() bool {
	return l.authorURN != "" && l.token != ""
}

func (l *LinkedInSource) credentials(creds Credentials) (Credentials, error) {
	c := creds.orDefault(l.token, l.authorURN)
	if c.AccessToken == "" || c.AccountID == "" {
		return c, ErrMissingCredentials
	}
	return c, nil
}

// FetchMentions returns the comments other members left on the
// organization's recent posts. Comments written by the account itself are
// dropped so the bot never answers its own activity.
func (l *LinkedInSource) FetchMentions(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return nil, err
	}

	posts, err := l.fetchPosts(ctx, c)
	if err != nil {
		return nil, err
	}

	var mentions []models.RawPost
	for _, post := range posts {
		comments, err := l.fetchComments(ctx, post.ID, c)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments on %s: %w", post.ID, err)
		}
		for _, comment := range comments {
			if comment.Author.ID == c.AccountID {
				continue
			}
			mentions = append(mentions, comment)
		}
	}
	logrus.Infof("Fetched %d LinkedIn comments across %d posts", len(mentions), len(posts))
	return mentions, nil
}

// FetchPosts returns the organization's own posts feed
func (l *LinkedInSource) FetchPosts(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return nil, err
	}
	return l.fetchPosts(ctx, c)
}

// FetchComments lists every comment under a post, the account's own included
func (l *LinkedInSource) FetchComments(ctx context.Context, postURN string, creds Credentials) ([]models.RawPost, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return nil, err
	}
	return l.fetchComments(ctx, postURN, c)
}

func (l *LinkedInSource) fetchPosts(ctx context.Context, c Credentials) ([]models.RawPost, error) {
	var out linkedInPostsResponse
	req := l.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetQueryParams(map[string]string{
			"q":      "author",
			"author": c.AccountID,
			"start":  "0",
			"count":  linkedInPageSize,
		})
	if _, err := execute(l.GetName(), req, http.MethodGet, "/rest/posts", &out); err != nil {
		return nil, err
	}

	posts := make([]models.RawPost, 0, len(out.Elements))
	for _, el := range out.Elements {
		created := el.CreatedAt
		if el.PublishedAt > 0 {
			created = el.PublishedAt
		}
		author := firstNonEmpty(el.Author, c.AccountID)
		posts = append(posts, models.RawPost{
			ID:        el.ID,
			Platform:  l.GetName(),
			Text:      el.Commentary,
			CreatedAt: unixMilliOrNow(created),
			Permalink: "https://www.linkedin.com/feed/update/" + el.ID,
			Author:    models.Author{ID: author, Username: author},
		})
	}
	return posts, nil
}

func (l *LinkedInSource) fetchComments(ctx context.Context, postURN string, c Credentials) ([]models.RawPost, error) {
	var out linkedInCommentsResponse
	req := l.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetPathParam("urn", postURN).
		SetQueryParams(map[string]string{
			"start": "0",
			"count": linkedInPageSize,
		})
	if _, err := execute(l.GetName(), req, http.MethodGet, "/rest/socialActions/{urn}/comments", &out); err != nil {
		return nil, err
	}

	comments := make([]models.RawPost, 0, len(out.Elements))
	for _, el := range out.Elements {
		object := firstNonEmpty(el.Object, postURN)
		urn := firstNonEmpty(el.CommentURN, el.URN)
		if urn == "" && el.ID != "" {
			urn = fmt.Sprintf("urn:li:comment:(%s,%s)", object, el.ID)
		}
		if urn == "" {
			continue
		}
		comments = append(comments, models.RawPost{
			ID:        urn,
			Platform:  l.GetName(),
			Text:      el.Message.Text,
			CreatedAt: unixMilliOrNow(el.Created.Time),
			Permalink: "https://www.linkedin.com/feed/update/" + object,
			Author:    models.Author{ID: el.Actor, Username: el.Actor},
		})
	}
	return comments, nil
}

// Reply comments on a post URN, or answers inside the thread when given a
// comment URN
func (l *LinkedInSource) Reply(ctx context.Context, targetURN, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}

	payload := linkedInCommentRequest{Actor: c.AccountID, Object: targetURN}
	if parent, ok := commentParent(targetURN); ok {
		payload.Object = parent
		payload.ParentComment = targetURN
	}
	payload.Message.Text = text

	var out linkedInCommentResponse
	req := l.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetPathParam("urn", targetURN).
		SetBody(payload)
	resp, err := execute(l.GetName(), req, http.MethodPost, "/rest/socialActions/{urn}/comments", &out)
	if err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: firstNonEmpty(resp.Header().Get("x-restli-id"), out.ID)}, nil
}

// CreatePost publishes a public post as the configured author
func (l *LinkedInSource) CreatePost(ctx context.Context, text string, creds Credentials) (models.ReplyResult, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return models.ReplyResult{}, err
	}

	payload := linkedInPostRequest{
		Author:         c.AccountID,
		Commentary:     text,
		Visibility:     "PUBLIC",
		LifecycleState: "PUBLISHED",
	}
	payload.Distribution.FeedDistribution = "MAIN_FEED"

	var out linkedInCommentResponse
	req := l.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetBody(payload)
	resp, err := execute(l.GetName(), req, http.MethodPost, "/rest/posts", &out)
	if err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: firstNonEmpty(resp.Header().Get("x-restli-id"), out.ID)}, nil
}

// FetchConversations lists the member's messaging threads
func (l *LinkedInSource) FetchConversations(ctx context.Context, creds Credentials) ([]models.Conversation, error) {
	c, err := l.credentials(creds)
	if err != nil {
		return nil, err
	}

	var out linkedInConversationsResponse
	req := l.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetQueryParams(map[string]string{
			"start": "0",
			"count": linkedInPageSize,
		})
	if _, err := execute(l.GetName(), req, http.MethodGet, "/v2/conversations", &out); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(out.Elements))
	for _, el := range out.Elements {
		conv := models.Conversation{
			ID:           firstNonEmpty(el.EntityURN, el.ID),
			Platform:     l.GetName(),
			Participants: make([]models.Author, 0, len(el.Participants)),
			Messages:     make([]models.ConversationMessage, 0, len(el.Events)),
		}
		if el.LastActivityAt > 0 {
			updated := time.UnixMilli(el.LastActivityAt).UTC()
			conv.UpdatedAt = &updated
		}
		for _, p := range el.Participants {
			conv.Participants = append(conv.Participants, models.Author{ID: p, Username: p})
		}
		for _, ev := range el.Events {
			conv.Messages = append(conv.Messages, models.ConversationMessage{
				ID:        ev.ID,
				From:      models.Author{ID: ev.From, Username: ev.From},
				Text:      ev.Body,
				CreatedAt: unixMilliOrNow(ev.CreatedAt),
			})
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// SendPrivateReply is not offered for LinkedIn posts
func (l *LinkedInSource) SendPrivateReply(ctx context.Context, targetID, text string, creds Credentials) (models.ReplyResult, error) {
	return models.ReplyResult{}, ErrUnsupported
}

// commentParent extracts the post URN from urn:li:comment:(<post>,<id>)
func commentParent(urn string) (string, bool) {
	inner, ok := strings.CutPrefix(urn, "urn:li:comment:(")
	if !ok {
		return "", false
	}
	inner = strings.TrimSuffix(inner, ")")
	i := strings.LastIndex(inner, ",")
	if i <= 0 {
		return "", false
	}
	return inner[:i], true
}

func unixMilliOrNow(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

package sources

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// TwitterSource implements the X API v2 client
type TwitterSource struct {
	userID      string
	bearerToken string
	userToken   string
	client      *resty.Client

	mu      sync.Mutex
	sinceID map[string]string
}

type twitterTimelineResponse struct {
	Data     []twitterTweet `json:"data"`
	Includes struct {
		Users []twitterUser  `json:"users"`
		Media []twitterMedia `json:"media"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	AuthorID    string `json:"author_id"`
	CreatedAt   string `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type twitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

type twitterReplyRequest struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
}

type twitterReplyResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// NewTwitterSource creates a new X source. bearerToken is used for reads,
// userToken (OAuth 2.0 user context) for posting replies.
func NewTwitterSource(apiURL, userID, bearerToken, userToken string) *TwitterSource {
	return &TwitterSource{
		userID:      userID,
		bearerToken: bearerToken,
		userToken:   userToken,
		client:      newRestyClient(apiURL),
		sinceID:     make(map[string]string),
	}
}

func (t *TwitterSource) GetName() string {
	return models.PlatformX
}

func (t *TwitterSource) IsEnabled() bool {
	return t.userID != "" && (t.bearerToken != "" || t.userToken != "")
}

func (t *TwitterSource) readCredentials(creds Credentials) (Credentials, error) {
	token := t.bearerToken
	if token == "" {
		token = t.userToken
	}
	c := creds.orDefault(token, t.userID)
	if c.AccessToken == "" || c.AccountID == "" {
		return c, ErrMissingCredentials
	}
	return c, nil
}

// FetchMentions returns tweets mentioning the account newer than the last seen id
func (t *TwitterSource) FetchMentions(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := t.readCredentials(creds)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	since := t.sinceID[c.AccountID]
	t.mu.Unlock()

	resp, err := t.timeline(ctx, "mentions", since, c)
	if err != nil {
		return nil, err
	}

	if resp.Meta.NewestID != "" {
		t.mu.Lock()
		t.sinceID[c.AccountID] = resp.Meta.NewestID
		t.mu.Unlock()
	}

	posts := t.normalize(resp)
	logrus.Infof("Fetched %d X mentions (since_id=%q)", len(posts), since)
	return posts, nil
}

// FetchPosts returns the account's own tweets
func (t *TwitterSource) FetchPosts(ctx context.Context, creds Credentials) ([]models.RawPost, error) {
	c, err := t.readCredentials(creds)
	if err != nil {
		return nil, err
	}

	resp, err := t.timeline(ctx, "tweets", "", c)
	if err != nil {
		return nil, err
	}
	return t.normalize(resp), nil
}

func (t *TwitterSource) timeline(ctx context.Context, edge, sinceID string, c Credentials) (*twitterTimelineResponse, error) {
	params := map[string]string{
		"max_results":  "100",
		"expansions":   "author_id,attachments.media_keys",
		"tweet.fields": "id,text,created_at,author_id,attachments,referenced_tweets",
		"user.fields":  "id,username,name",
		"media.fields": "media_key,type,url,preview_image_url",
	}
	if sinceID != "" {
		params["since_id"] = sinceID
	}

	var out twitterTimelineResponse
	req := t.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetPathParams(map[string]string{"id": c.AccountID, "edge": edge}).
		SetQueryParams(params)
	if _, err := execute(t.GetName(), req, http.MethodGet, "/2/users/{id}/{edge}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *TwitterSource) normalize(resp *twitterTimelineResponse) []models.RawPost {
	users := make(map[string]twitterUser, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}
	media := make(map[string]twitterMedia, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		media[m.MediaKey] = m
	}

	posts := make([]models.RawPost, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		// Skip retweets to avoid duplicates
		if t.isRetweet(tweet) {
			continue
		}

		author := models.Author{ID: tweet.AuthorID}
		handle := "i"
		if u, ok := users[tweet.AuthorID]; ok {
			author.Username = u.Username
			author.DisplayName = u.Name
			handle = u.Username
		}

		post := models.RawPost{
			ID:        tweet.ID,
			Platform:  t.GetName(),
			Text:      tweet.Text,
			CreatedAt: parseTimestamp(tweet.CreatedAt),
			Permalink: fmt.Sprintf("https://x.com/%s/status/%s", handle, tweet.ID),
			Author:    author,
		}
		for _, key := range tweet.Attachments.MediaKeys {
			if m, ok := media[key]; ok {
				post.MediaURL = firstNonEmpty(m.URL, m.PreviewImageURL)
				break
			}
		}
		posts = append(posts, post)
	}
	return posts
}

// Reply posts a tweet in reply to tweetID using the user-context token
func (t *TwitterSource) Reply(ctx context.Context, tweetID, text string, creds Credentials) (models.ReplyResult, error) {
	c := creds.orDefault(t.userToken, t.userID)
	if c.AccessToken == "" {
		return models.ReplyResult{}, ErrMissingCredentials
	}

	payload := twitterReplyRequest{Text: text}
	payload.Reply.InReplyToTweetID = tweetID

	var out twitterReplyResponse
	req := t.client.R().
		SetContext(ctx).
		SetAuthToken(c.AccessToken).
		SetBody(payload)
	if _, err := execute(t.GetName(), req, http.MethodPost, "/2/tweets", &out); err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: out.Data.ID}, nil
}

// SendPrivateReply is not offered for X mentions
func (t *TwitterSource) SendPrivateReply(ctx context.Context, targetID, text string, creds Credentials) (models.ReplyResult, error) {
	return models.ReplyResult{}, ErrUnsupported
}

func (t *TwitterSource) isRetweet(tweet twitterTweet) bool {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}

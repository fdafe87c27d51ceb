package sources

import (
	"context"
	"net/http"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
)

const conversationFields = "participants,updated_time,messages{id,from,message,created_time}"

// graphList is the paged envelope returned by Graph API edges
type graphList struct {
	Data []graphItem `json:"data"`
}

// graphItem covers the fields requested from Facebook and Instagram edges
type graphItem struct {
	ID           string            `json:"id"`
	Message      string            `json:"message"`
	Text         string            `json:"text"`
	Caption      string            `json:"caption"`
	CreatedTime  string            `json:"created_time"`
	Timestamp    string            `json:"timestamp"`
	PermalinkURL string            `json:"permalink_url"`
	Permalink    string            `json:"permalink"`
	FullPicture  string            `json:"full_picture"`
	MediaURL     string            `json:"media_url"`
	Username     string            `json:"username"`
	From         *graphParticipant `json:"from"`
	Owner        *struct {
		ID string `json:"id"`
	} `json:"owner"`
}

// graphParticipant is a user reference inside comments and conversations.
// Facebook sends a name, Instagram a username.
type graphParticipant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (p graphParticipant) toAuthor() models.Author {
	name := firstNonEmpty(p.Name, p.Username)
	return models.Author{ID: p.ID, Username: firstNonEmpty(p.Username, p.Name), DisplayName: name}
}

type graphConversationList struct {
	Data []struct {
		ID           string `json:"id"`
		UpdatedTime  string `json:"updated_time"`
		Participants struct {
			Data []graphParticipant `json:"data"`
		} `json:"participants"`
		Messages struct {
			Data []struct {
				ID          string           `json:"id"`
				Message     string           `json:"message"`
				CreatedTime string           `json:"created_time"`
				From        graphParticipant `json:"from"`
			} `json:"data"`
		} `json:"messages"`
	} `json:"data"`
}

// graphWriteResponse is returned by comment, private reply and message calls
type graphWriteResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
}

func (r graphWriteResponse) remoteID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.MessageID
}

func (g graphItem) toRawPost(platform, accountID string) models.RawPost {
	post := models.RawPost{
		ID:       g.ID,
		Platform: platform,
		Text:     firstNonEmpty(g.Message, g.Caption, g.Text),
	}
	post.CreatedAt = parseTimestamp(firstNonEmpty(g.CreatedTime, g.Timestamp))
	post.Permalink = firstNonEmpty(g.PermalinkURL, g.Permalink)
	post.MediaURL = firstNonEmpty(g.FullPicture, g.MediaURL)

	switch {
	case g.From != nil && g.From.ID != "":
		post.Author = g.From.toAuthor()
	case g.Owner != nil && g.Owner.ID != "":
		post.Author = models.Author{ID: g.Owner.ID, Username: g.Username, DisplayName: g.Username}
	case g.Username != "":
		post.Author = models.Author{ID: g.Username, Username: g.Username, DisplayName: g.Username}
	default:
		// Items on the account's own edges carry no author
		post.Author = models.Author{ID: accountID}
	}
	return post
}

// graphGetList reads one Graph API edge such as /{page}/tagged
func graphGetList(ctx context.Context, client *resty.Client, platform, node, edge, fields string, creds Credentials) ([]models.RawPost, error) {
	var list graphList
	req := client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"node": node, "edge": edge}).
		SetQueryParams(map[string]string{
			"fields":       fields,
			"access_token": creds.AccessToken,
		})
	if _, err := execute(platform, req, http.MethodGet, "/{node}/{edge}", &list); err != nil {
		return nil, err
	}

	posts := make([]models.RawPost, 0, len(list.Data))
	for _, item := range list.Data {
		if item.ID == "" {
			continue
		}
		posts = append(posts, item.toRawPost(platform, creds.AccountID))
	}
	return posts, nil
}

// graphConversations reads /{node}/conversations. extra carries
// platform-specific query parameters.
func graphConversations(ctx context.Context, client *resty.Client, platform string, creds Credentials, extra map[string]string) ([]models.Conversation, error) {
	var list graphConversationList
	req := client.R().
		SetContext(ctx).
		SetPathParam("node", creds.AccountID).
		SetQueryParams(map[string]string{
			"fields":       conversationFields,
			"access_token": creds.AccessToken,
		}).
		SetQueryParams(extra)
	if _, err := execute(platform, req, http.MethodGet, "/{node}/conversations", &list); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(list.Data))
	for _, item := range list.Data {
		conv := models.Conversation{
			ID:           item.ID,
			Platform:     platform,
			Participants: make([]models.Author, 0, len(item.Participants.Data)),
			Messages:     make([]models.ConversationMessage, 0, len(item.Messages.Data)),
		}
		if item.UpdatedTime != "" {
			updated := parseTimestamp(item.UpdatedTime)
			conv.UpdatedAt = &updated
		}
		for _, p := range item.Participants.Data {
			conv.Participants = append(conv.Participants, p.toAuthor())
		}
		for _, m := range item.Messages.Data {
			conv.Messages = append(conv.Messages, models.ConversationMessage{
				ID:        m.ID,
				From:      m.From.toAuthor(),
				Text:      m.Message,
				CreatedAt: parseTimestamp(m.CreatedTime),
			})
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// graphComment posts a public comment under a post or media object
func graphComment(ctx context.Context, client *resty.Client, platform, objectID, text string, creds Credentials) (models.ReplyResult, error) {
	var out graphWriteResponse
	req := client.R().
		SetContext(ctx).
		SetPathParam("object", objectID).
		SetFormData(map[string]string{
			"message":      text,
			"access_token": creds.AccessToken,
		})
	if _, err := execute(platform, req, http.MethodPost, "/{object}/comments", &out); err != nil {
		return models.ReplyResult{}, err
	}
	return models.ReplyResult{RemoteID: out.remoteID()}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

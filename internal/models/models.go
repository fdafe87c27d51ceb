package models

import (
	"strings"
	"time"
)

// Platform codes used as platforms.id
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformX         = "x"
	PlatformLinkedIn  = "linkedin"
)

// Sentiment labels accepted by the store
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// NormalizeSentiment lower-cases and trims a label. ok is false when the
// label is outside positive/negative/neutral.
func NormalizeSentiment(label string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s, true
	}
	return s, false
}

// AllPlatforms lists the supported platform codes in display order
func AllPlatforms() []string {
	return []string{PlatformFacebook, PlatformInstagram, PlatformX, PlatformLinkedIn}
}

// Platform identifies a social network
type Platform struct {
	ID   string `json:"id"   gorm:"type:varchar(36);primaryKey"`
	Name string `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
}

// TableName returns the database table name for Platform.
func (Platform) TableName() string { return "platforms" }

// User is a platform-native mention author
type User struct {
	ID          string `json:"id"           gorm:"type:varchar(100);primaryKey"`
	Username    string `json:"username"     gorm:"type:varchar(100)"`
	DisplayName string `json:"display_name" gorm:"type:varchar(100)"`
	PlatformID  string `json:"platform_id"  gorm:"type:varchar(36);index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// MentionPost is a stored mention and its processing state
type MentionPost struct {
	ID              string    `json:"id"                           gorm:"type:varchar(100);primaryKey"`
	PlatformID      string    `json:"platform_id"                  gorm:"type:varchar(36);index"`
	UserID          string    `json:"user_id"                      gorm:"type:varchar(100);index"`
	Text            string    `json:"text"                         gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"                   gorm:"index"`
	MediaURL        *string   `json:"media_url,omitempty"          gorm:"type:text"`
	Permalink       *string   `json:"permalink,omitempty"          gorm:"type:text"`
	IsReply         bool      `json:"is_reply"                     gorm:"not null;default:false;index"`
	RepliedToPostID *string   `json:"replied_to_post_id,omitempty" gorm:"type:varchar(100)"`
	ReplyMessage    *string   `json:"reply_message,omitempty"      gorm:"type:text"`
	Sentiment       *string   `json:"sentiment,omitempty"          gorm:"type:varchar(100)"`
	Priority        *int      `json:"priority,omitempty"`
	TicketResolved  bool      `json:"ticket_resolved"              gorm:"not null;default:false"`
}

// TableName returns the database table name for MentionPost.
func (MentionPost) TableName() string { return "mention_posts" }

// HasSentiment reports whether the mention carries the given label, ignoring case
func (m MentionPost) HasSentiment(label string) bool {
	return m.Sentiment != nil && strings.EqualFold(*m.Sentiment, label)
}

// Ticket is a follow-up record for a negative mention
type Ticket struct {
	ID            string     `json:"ticket_id"             gorm:"type:varchar(160);primaryKey"`
	MentionPostID string     `json:"mention_id"            gorm:"type:varchar(100);index;not null"`
	UserID        string     `json:"user_id"               gorm:"type:varchar(100)"`
	PlatformID    string     `json:"platform"              gorm:"type:varchar(36)"`
	Priority      *int       `json:"priority,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the database table name for Ticket.
func (Ticket) TableName() string { return "tickets" }

// Author is the normalized author of a RawPost
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// RawPost is a mention or post normalized from a platform response
type RawPost struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	MediaURL  string    `json:"media_url,omitempty"`
	Permalink string    `json:"permalink,omitempty"`
	Author    Author    `json:"author"`
}

// ReplyResult carries the identifier the platform assigned to a sent reply
type ReplyResult struct {
	RemoteID string `json:"id"`
}

// Conversation is one private message thread from a platform inbox
type Conversation struct {
	ID           string                `json:"id"`
	Platform     string                `json:"platform"`
	UpdatedAt    *time.Time            `json:"updated_at,omitempty"`
	Participants []Author              `json:"participants"`
	Messages     []ConversationMessage `json:"messages"`
}

// ConversationMessage is a single message inside a Conversation
type ConversationMessage struct {
	ID        string    `json:"id"`
	From      Author    `json:"from"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// BusinessAccount is the Instagram professional account linked to a Facebook page
type BusinessAccount struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	PageID   string `json:"page_id"`
}

// Interaction is one earlier exchange with the same author
type Interaction struct {
	UserPost  string    `json:"user_post"`
	Reply     string    `json:"ai_reply"`
	Sentiment string    `json:"sentiment,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PlatformOutcome is the result of fetching one platform during a cycle
type PlatformOutcome struct {
	Platform string `json:"platform"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// MentionOutcome is the result of processing one unreplied mention
type MentionOutcome struct {
	MentionID string `json:"mention_id"`
	Platform  string `json:"platform"`
	Sentiment string `json:"sentiment,omitempty"`
	ReplyID   string `json:"reply_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CycleReport summarizes one fetch/classify/reply/ticket pass
type CycleReport struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Duration    string            `json:"duration"`
	Fetch       []PlatformOutcome `json:"fetch"`
	Processed   []MentionOutcome  `json:"processed"`
	Tickets     []Ticket          `json:"tickets"`
	TicketError string            `json:"ticket_error,omitempty"`
}

// Replied counts successfully answered mentions in the report
func (r *CycleReport) Replied() int {
	n := 0
	for _, o := range r.Processed {
		if o.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts mentions that could not be answered in the report
func (r *CycleReport) Failed() int {
	return len(r.Processed) - r.Replied()
}

// Digest is the periodic analytics summary sent to notification channels
type Digest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Sentiment   SentimentStats `json:"sentiment"`
	Tickets     TicketStats    `json:"tickets"`
	Replies     ReplyStats     `json:"replies"`
}

// TimePeriod is the analytics window
type TimePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SentimentStats counts classified mentions in a window
type SentimentStats struct {
	Positive   int64      `json:"positive"`
	Negative   int64      `json:"negative"`
	Neutral    int64      `json:"neutral"`
	Total      int64      `json:"total"`
	TimePeriod TimePeriod `json:"time_period"`
}

// TicketStats summarizes negative-mention follow-up in a window
type TicketStats struct {
	TotalTickets   int64      `json:"total_tickets"`
	Resolved       int64      `json:"resolved"`
	Pending        int64      `json:"pending"`
	ResolutionRate float64    `json:"resolution_rate"`
	TimePeriod     TimePeriod `json:"time_period"`
}

// ReplyStats summarizes sent replies in a window
type ReplyStats struct {
	TotalReplies       int64            `json:"total_ai_replies"`
	UniqueUsersReplied int64            `json:"unique_users_replied"`
	ByPlatform         map[string]int64 `json:"platform_breakdown"`
	TimePeriod         TimePeriod       `json:"time_period"`
}

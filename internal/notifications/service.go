package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/brandpulse/social-mentions-bot/internal/config"
	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
	mailer mailSender
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	if cfg.NotificationEmail != "" {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

// SendTicketAlert announces newly raised tickets on every configured channel
func (s *Service) SendTicketAlert(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	subject := fmt.Sprintf("%d new ticket(s) for negative mentions", len(tickets))
	var lines []string
	var facts []TeamsFact
	for _, t := range tickets {
		priority := "unset"
		if t.Priority != nil {
			priority = fmt.Sprintf("P%d", *t.Priority)
		}
		lines = append(lines, fmt.Sprintf("%s | %s | mention %s | user %s | %s", t.ID, t.PlatformID, t.MentionPostID, t.UserID, priority))
		facts = append(facts, TeamsFact{Name: t.ID, Value: fmt.Sprintf("%s mention %s (%s)", t.PlatformID, t.MentionPostID, priority)})
	}

	card := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      subject,
		Text:       "Negative mentions need human follow-up.",
		Sections:   []TeamsSection{{ActivityTitle: "Tickets", Facts: facts, Markdown: true}},
	}
	text := subject + "\n\n" + strings.Join(lines, "\n") + "\n"

	return s.dispatch(ctx, card, subject, text, "")
}

// SendDigest sends the periodic analytics digest
func (s *Service) SendDigest(ctx context.Context, digest *models.Digest) error {
	card := s.buildDigestCard(digest)
	subject := fmt.Sprintf("Social mentions digest - %s", digest.GeneratedAt.Format("2006-01-02"))

	htmlBody, err := buildDigestHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}
	return s.dispatch(ctx, card, subject, buildDigestText(digest), htmlBody)
}

func (s *Service) dispatch(ctx context.Context, card *TeamsMessage, subject, text, html string) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, card); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent %q to Teams", subject)
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" && s.mailer != nil {
		if err := s.sendEmail(subject, text, html); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent %q via email", subject)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(ctx context.Context, message *TeamsMessage) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *Service) sendEmail(subject, text, html string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	if html != "" {
		m.AddAlternative("text/html", html)
	}

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Service) buildDigestCard(d *models.Digest) *TeamsMessage {
	return &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Social Mentions Digest - %s", d.GeneratedAt.Format("Jan 2, 2006")),
		Text: fmt.Sprintf("%d classified mentions, %d replies sent, %d tickets pending",
			d.Sentiment.Total, d.Replies.TotalReplies, d.Tickets.Pending),
		Sections: []TeamsSection{
			{
				ActivityTitle: "Sentiment",
				Facts: []TeamsFact{
					{Name: "Positive", Value: fmt.Sprintf("%d", d.Sentiment.Positive)},
					{Name: "Negative", Value: fmt.Sprintf("%d", d.Sentiment.Negative)},
					{Name: "Neutral", Value: fmt.Sprintf("%d", d.Sentiment.Neutral)},
				},
				Markdown: true,
			},
			{
				ActivityTitle: "Tickets",
				Facts: []TeamsFact{
					{Name: "Total", Value: fmt.Sprintf("%d", d.Tickets.TotalTickets)},
					{Name: "Resolved", Value: fmt.Sprintf("%d", d.Tickets.Resolved)},
					{Name: "Pending", Value: fmt.Sprintf("%d", d.Tickets.Pending)},
					{Name: "Resolution rate", Value: fmt.Sprintf("%.1f%%", d.Tickets.ResolutionRate)},
				},
				Markdown: true,
			},
		},
	}
}

const digestTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Social Mentions Digest</title>
    <style>
        body { font-family: Helvetica, Arial, sans-serif; margin: 24px; color: #111827; }
        .header { background: #1f2937; color: #f9fafb; padding: 16px 20px; border-radius: 6px; }
        .summary { background: #f3f4f6; padding: 12px 16px; margin: 16px 0; border-radius: 6px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Social Mentions Digest</h1>
        <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>
    <div class="summary">
        <h2>Sentiment (since {{.Sentiment.TimePeriod.Start.Format "Jan 2"}})</h2>
        <p><strong>Positive:</strong> {{.Sentiment.Positive}}</p>
        <p><strong>Negative:</strong> {{.Sentiment.Negative}}</p>
        <p><strong>Neutral:</strong> {{.Sentiment.Neutral}}</p>
    </div>
    <div class="summary">
        <h2>Tickets</h2>
        <p><strong>Total:</strong> {{.Tickets.TotalTickets}} | <strong>Resolved:</strong> {{.Tickets.Resolved}} | <strong>Pending:</strong> {{.Tickets.Pending}}</p>
        <p><strong>Resolution rate:</strong> {{printf "%.1f" .Tickets.ResolutionRate}}%</p>
    </div>
    <div class="summary">
        <h2>Replies</h2>
        <p><strong>Replies sent:</strong> {{.Replies.TotalReplies}} to {{.Replies.UniqueUsersReplied}} users</p>
        {{range $platform, $count := .Replies.ByPlatform}}
            <p>{{$platform}}: {{$count}}</p>
        {{end}}
    </div>
    <hr>
    <p><small>This digest was generated automatically by the Social Mentions Bot.</small></p>
</body>
</html>
`

func buildDigestHTML(d *models.Digest) (string, error) {
	t, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildDigestText(d *models.Digest) string {
	var text strings.Builder

	text.WriteString("Social Mentions Digest\n")
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SENTIMENT\n")
	text.WriteString("=========\n")
	text.WriteString(fmt.Sprintf("Positive: %d\nNegative: %d\nNeutral: %d\nTotal: %d\n\n",
		d.Sentiment.Positive, d.Sentiment.Negative, d.Sentiment.Neutral, d.Sentiment.Total))

	text.WriteString("TICKETS\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total: %d\nResolved: %d\nPending: %d\nResolution rate: %.1f%%\n\n",
		d.Tickets.TotalTickets, d.Tickets.Resolved, d.Tickets.Pending, d.Tickets.ResolutionRate))

	text.WriteString("REPLIES\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Replies sent: %d\nUnique users: %d\n", d.Replies.TotalReplies, d.Replies.UniqueUsersReplied))

	text.WriteString("\n---\nThis digest was generated automatically by the Social Mentions Bot.\n")
	return text.String()
}

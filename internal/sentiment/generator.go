package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// Draft is a classified mention and the reply to send
type Draft struct {
	Sentiment string `json:"sentiment"`
	ReplyText string `json:"reply_text"`
	Priority  *int   `json:"priority,omitempty"`
}

// IsNegative reports whether the draft was classified negative
func (d Draft) IsNegative() bool {
	n, _ := models.NormalizeSentiment(d.Sentiment)
	return n == models.SentimentNegative
}

// WithLabel returns the draft relabelled with an earlier classification.
// The priority is dropped and a negative label keeps the follow-up phrase.
func (d Draft) WithLabel(label string) Draft {
	d.Sentiment = label
	d.Priority = nil
	if d.IsNegative() && !hasFollowUp(d.ReplyText) {
		d.ReplyText = appendFollowUp(d.ReplyText)
	}
	return d
}

// Classifier produces drafts for mentions
type Classifier interface {
	ClassifyAndDraft(ctx context.Context, mention models.MentionPost, user *models.User, history []models.Interaction) (Draft, error)
}

// Generator classifies mentions and drafts replies through a Completer.
// It never touches the store.
type Generator struct {
	completer   llm.Completer
	maxAttempts int
	temperature float32
}

var _ Classifier = (*Generator)(nil)

// NewGenerator creates a Generator. maxAttempts bounds regeneration of
// negative replies missing the follow-up phrase.
func NewGenerator(completer llm.Completer, maxAttempts int) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Generator{
		completer:   completer,
		maxAttempts: maxAttempts,
		temperature: 0.4,
	}
}

// ClassifyAndDraft returns the sentiment and reply for one mention
func (g *Generator) ClassifyAndDraft(ctx context.Context, mention models.MentionPost, user *models.User, history []models.Interaction) (Draft, error) {
	prompt := buildPrompt(mention, user, history)

	var draft Draft
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		raw, err := g.completer.Complete(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      prompt,
			JSON:        true,
			Temperature: g.temperature,
		})
		if err != nil {
			return Draft{}, fmt.Errorf("completion failed for mention %s: %w", mention.ID, err)
		}

		draft, err = parseDraft(raw)
		if err != nil {
			return Draft{}, err
		}

		if !draft.IsNegative() || hasFollowUp(draft.ReplyText) {
			return draft, nil
		}

		logrus.WithFields(logrus.Fields{
			"mention_id": mention.ID,
			"attempt":    attempt,
		}).Debug("Negative reply is missing the follow-up phrase")
		prompt = buildPrompt(mention, user, history) +
			fmt.Sprintf("\nYour previous reply did not include the phrase %q. The reply MUST include it.\n", FollowUpPhrase)
	}

	draft.ReplyText = appendFollowUp(draft.ReplyText)
	return draft, nil
}

func hasFollowUp(reply string) bool {
	return strings.Contains(strings.ToLower(reply), FollowUpPhrase)
}

func appendFollowUp(reply string) string {
	reply = strings.TrimSpace(reply)
	if reply != "" && !strings.HasSuffix(reply, ".") && !strings.HasSuffix(reply, "!") && !strings.HasSuffix(reply, "?") {
		reply += "."
	}
	return strings.TrimSpace(reply + " Our team will reach you shortly.")
}

package sentiment

import (
	"fmt"
	"strings"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// FollowUpPhrase must appear in every reply to a negative mention
const FollowUpPhrase = "our team will reach you shortly"

// MaxHistory is the number of prior interactions embedded in a prompt
const MaxHistory = 5

const systemPrompt = `You are a social media assistant replying to posts that mention our company.
For every post:
1. Classify the sentiment as exactly one of "positive", "negative" or "neutral". Understand slang, sarcasm and informal language.
2. Write a short, friendly reply the company can post publicly.
3. Only if the sentiment is negative, assign a priority:
   1 = Critical (legal threats, safety issues, public backlash)
   2 = High (product or service failure, strong dissatisfaction)
   3 = Medium (complaint, not urgent)
   4 = Low (minor annoyance or suggestion)

Tone rules:
- Positive posts: enthusiastic and grateful, e.g. "Hey @user Thank you so much! We're thrilled you love it!"
- Negative posts: apologetic and helpful, and the reply MUST contain the exact phrase "our team will reach you shortly".
- Neutral posts and questions: informative and friendly.
- Start the reply with the author's @handle when one is given.

Respond with a single JSON object and nothing else:
{"sentiment": "positive|negative|neutral", "reply_text": "...", "priority": 1}
Omit "priority" unless the sentiment is negative.`

func buildPrompt(mention models.MentionPost, user *models.User, history []models.Interaction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Platform: %s\n", mention.PlatformID)
	fmt.Fprintf(&b, "Author handle: %s\n", handle(user))
	if user != nil && user.DisplayName != "" {
		fmt.Fprintf(&b, "Author display name: %s\n", user.DisplayName)
	}
	fmt.Fprintf(&b, "Post: %s\n", mention.Text)

	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	if len(history) > 0 {
		b.WriteString("\nPrevious interactions with this author (most recent first):\n")
		for i, h := range history {
			sentiment := h.Sentiment
			if sentiment == "" {
				sentiment = "unknown"
			}
			fmt.Fprintf(&b, "%d. [%s] They wrote: %q. We replied: %q\n", i+1, sentiment, h.UserPost, h.Reply)
		}
	}
	return b.String()
}

func handle(user *models.User) string {
	if user == nil || user.Username == "" {
		return "(unknown)"
	}
	return "@" + strings.TrimPrefix(user.Username, "@")
}

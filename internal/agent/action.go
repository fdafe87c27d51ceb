package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// Action names the model may choose from
const (
	ActionFetchMentions    = "fetch_mentions"
	ActionClassifyAndReply = "classify_and_reply"
	ActionMarkSentiment    = "mark_sentiment"
	ActionSendReply        = "send_reply"
	ActionRaiseTickets     = "raise_tickets"
	ActionFinish           = "finish"
)

var (
	errEmptyOutput = errors.New("empty response")
	errNoJSON      = errors.New("expected a JSON object")
)

// Action is one decision of the model
type Action struct {
	Thought string      `json:"thought,omitempty"`
	Action  string      `json:"action"`
	Input   ActionInput `json:"input"`
}

// ActionInput carries the arguments of an action. Which fields are required
// depends on the action.
type ActionInput struct {
	MentionID string `json:"mention_id,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	ReplyText string `json:"reply_text,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

// DecodeAction parses and validates a model response. Unknown fields,
// unknown actions and missing inputs are errors.
func DecodeAction(raw string) (Action, error) {
	payload, err := extractObject(raw)
	if err != nil {
		return Action{}, err
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()

	var action Action
	if err := dec.Decode(&action); err != nil {
		return Action{}, fmt.Errorf("invalid action JSON: %w", err)
	}

	action.Action = strings.ToLower(strings.TrimSpace(action.Action))
	if err := action.validate(); err != nil {
		return Action{}, err
	}
	return action, nil
}

func (a Action) validate() error {
	in := a.Input
	switch a.Action {
	case ActionFetchMentions, ActionRaiseTickets:
		return nil
	case ActionClassifyAndReply:
		return require(a.Action, "mention_id", in.MentionID)
	case ActionMarkSentiment:
		if err := require(a.Action, "mention_id", in.MentionID); err != nil {
			return err
		}
		if _, ok := models.NormalizeSentiment(in.Sentiment); !ok {
			return fmt.Errorf("%s: sentiment must be positive, negative or neutral, got %q", a.Action, in.Sentiment)
		}
		return nil
	case ActionSendReply:
		if err := require(a.Action, "mention_id", in.MentionID); err != nil {
			return err
		}
		return require(a.Action, "reply_text", in.ReplyText)
	case ActionFinish:
		return require(a.Action, "answer", in.Answer)
	case "":
		return fmt.Errorf("missing action")
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
}

func require(action, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: input.%s is required", action, field)
	}
	return nil
}

// extractObject returns the first balanced JSON object in raw, ignoring
// Markdown code fences around it.
func extractObject(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errEmptyOutput
	}

	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(trimmed); i++ {
		ch := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case ch == '}' && depth > 0:
			depth--
			if depth == 0 {
				return trimmed[start : i+1], nil
			}
		}
	}
	return "", errNoJSON
}

func observe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

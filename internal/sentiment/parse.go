package sentiment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// ClassificationParseError is returned when a completion cannot be read as a draft
type ClassificationParseError struct {
	Raw    string
	Reason string
}

// maxQuotedRaw caps how many characters of the completion an error quotes
const maxQuotedRaw = 200

func (e *ClassificationParseError) Error() string {
	raw := e.Raw
	if r := []rune(raw); len(r) > maxQuotedRaw {
		raw = string(r[:maxQuotedRaw]) + "..."
	}
	return fmt.Sprintf("unparseable classification (%s): %q", e.Reason, raw)
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

type draftPayload struct {
	Sentiment string      `json:"sentiment"`
	ReplyText string      `json:"reply_text"`
	Reply     string      `json:"reply"`
	Priority  interface{} `json:"priority"`
}

// parseDraft reads a completion leniently: markdown fences, an outer quote
// wrapping and surrounding prose are tolerated.
func parseDraft(raw string) (Draft, error) {
	text := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = unquote(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Draft{}, &ClassificationParseError{Raw: raw, Reason: "no JSON object"}
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return Draft{}, &ClassificationParseError{Raw: raw, Reason: err.Error()}
	}

	label := strings.TrimSpace(payload.Sentiment)
	normalized, ok := models.NormalizeSentiment(label)
	if !ok {
		return Draft{}, &ClassificationParseError{Raw: raw, Reason: fmt.Sprintf("unknown sentiment %q", label)}
	}

	reply := strings.TrimSpace(payload.ReplyText)
	if reply == "" {
		reply = strings.TrimSpace(payload.Reply)
	}
	if reply == "" {
		return Draft{}, &ClassificationParseError{Raw: raw, Reason: "empty reply_text"}
	}

	draft := Draft{Sentiment: label, ReplyText: reply}
	if normalized == models.SentimentNegative {
		draft.Priority = parsePriority(payload.Priority)
	}
	return draft, nil
}

// unquote removes one level of ASCII quote wrapping around the whole completion
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	first, last := text[0], text[len(text)-1]
	if first != last || (first != '"' && first != '\'' && first != '`') {
		return text
	}
	if first == '"' {
		if s, err := strconv.Unquote(text); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(text[1 : len(text)-1])
}

func parsePriority(v interface{}) *int {
	var p int
	switch t := v.(type) {
	case float64:
		p = int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		p = n
	default:
		return nil
	}
	if p < 1 || p > 4 {
		return nil
	}
	return &p
}

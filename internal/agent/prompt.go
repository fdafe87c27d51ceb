package agent

import (
	"fmt"
	"strings"
)

const systemPrompt = `You operate a social media support desk for Facebook, Instagram, X and LinkedIn.
Work on the task one action at a time. Answer with exactly one JSON object and nothing else:
{"thought": "<short reasoning>", "action": "<name>", "input": {...}}

Actions:
- fetch_mentions: pull new mentions from every platform and list unreplied ones. input: {}
- classify_and_reply: classify one mention, draft and send the reply. input: {"mention_id": "..."}
- mark_sentiment: record a sentiment. input: {"mention_id": "...", "sentiment": "positive|negative|neutral"}
- send_reply: send your own reply text. input: {"mention_id": "...", "reply_text": "..."}
- raise_tickets: open tickets for negative mentions without one. input: {}
- finish: stop and report. input: {"answer": "..."}

Do not invent observations. Do not add fields that are not listed.`

func buildPrompt(result *Result, invalid []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", result.Task)

	if len(result.Steps) > 0 {
		b.WriteString("\nHistory:\n")
		for _, s := range result.Steps {
			fmt.Fprintf(&b, "%d. action=%s input=%s\n   observation: %s\n",
				s.Index, s.Action, observe(s.Input), s.Observation)
		}
	}

	if len(invalid) > 0 {
		fmt.Fprintf(&b, "\nYour previous answer was rejected: %s\nAnswer again with one valid JSON action.\n",
			invalid[len(invalid)-1])
	}

	b.WriteString("\nNext action:")
	return b.String()
}

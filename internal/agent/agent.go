// Package agent drives the mention pipeline through a model-chosen sequence
// of actions. Each step the model answers with one JSON action from a closed
// set; the agent validates it, executes it and feeds the observation back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/llm"
	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
)

// DefaultTask is run when the caller gives no task
const DefaultTask = "Fetch new mentions, reply to every unreplied mention, then raise tickets for negative ones."

// ErrInvalidOutput is returned when the model keeps answering with invalid actions
var ErrInvalidOutput = errors.New("model returned too many invalid actions")

// maxListed bounds the mentions included in a fetch observation
const maxListed = 20

// Operations are the pipeline steps the agent can trigger
type Operations interface {
	FetchAll(ctx context.Context) []models.PlatformOutcome
	ProcessMention(ctx context.Context, mentionID string) (models.MentionOutcome, error)
	SendReply(ctx context.Context, platform, postID, text string, creds sources.Credentials) (models.ReplyResult, error)
	RaiseTickets(ctx context.Context) ([]models.Ticket, error)
}

// Mentions is the store access the agent needs
type Mentions interface {
	ListUnreplied(ctx context.Context) ([]models.MentionPost, error)
	GetMention(ctx context.Context, id string) (*models.MentionPost, error)
	SetSentiment(ctx context.Context, id, label string) error
}

// Config bounds one run
type Config struct {
	MaxSteps   int
	MaxInvalid int
}

// Step is one executed (or rejected) action in the trace
type Step struct {
	Index       int         `json:"index"`
	Thought     string      `json:"thought,omitempty"`
	Action      string      `json:"action,omitempty"`
	Input       ActionInput `json:"input"`
	Observation string      `json:"observation,omitempty"`
	Invalid     []string    `json:"invalid,omitempty"`
}

// Result is the trace of a run
type Result struct {
	Task       string `json:"task"`
	Steps      []Step `json:"steps"`
	Answer     string `json:"answer,omitempty"`
	Finished   bool   `json:"finished"`
	StopReason string `json:"stop_reason"`
}

// Agent runs tasks against the pipeline
type Agent struct {
	completer llm.Completer
	ops       Operations
	mentions  Mentions
	config    Config
}

// New creates an agent. Zero limits default to 10 steps and 2 retries of
// invalid answers per step; a negative MaxInvalid disables retries.
func New(completer llm.Completer, ops Operations, mentions Mentions, cfg Config) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	if cfg.MaxInvalid < 0 {
		cfg.MaxInvalid = 0
	} else if cfg.MaxInvalid == 0 {
		cfg.MaxInvalid = 2
	}
	return &Agent{completer: completer, ops: ops, mentions: mentions, config: cfg}
}

// Run executes task until the model finishes, the step budget is spent or
// the model exceeds the invalid-answer budget of a step. The trace is
// returned in every case.
func (a *Agent) Run(ctx context.Context, task string) (*Result, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		task = DefaultTask
	}
	result := &Result{Task: task, Steps: []Step{}}
	log := logrus.WithField("component", "agent")

	for i := 1; i <= a.config.MaxSteps; i++ {
		step := Step{Index: i}

		action, err := a.decide(ctx, result, &step)
		if err != nil {
			if errors.Is(err, ErrInvalidOutput) {
				result.Steps = append(result.Steps, step)
				result.StopReason = "invalid_output"
			}
			return result, err
		}

		step.Thought = action.Thought
		step.Action = action.Action
		step.Input = action.Input
		log.WithFields(logrus.Fields{"step": i, "action": action.Action}).Info("Agent action")

		if action.Action == ActionFinish {
			result.Steps = append(result.Steps, step)
			result.Answer = action.Input.Answer
			result.Finished = true
			result.StopReason = "finished"
			return result, nil
		}

		step.Observation = a.execute(ctx, action)
		result.Steps = append(result.Steps, step)
	}

	log.Warnf("Agent stopped after %d steps", a.config.MaxSteps)
	result.StopReason = "max_steps"
	return result, nil
}

// decide asks the model for the next action, retrying invalid answers
func (a *Agent) decide(ctx context.Context, result *Result, step *Step) (Action, error) {
	for {
		raw, err := a.completer.Complete(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      buildPrompt(result, step.Invalid),
			JSON:        true,
			Temperature: 0.2,
		})
		if err != nil {
			return Action{}, fmt.Errorf("agent step %d: %w", step.Index, err)
		}

		action, err := DecodeAction(raw)
		if err == nil {
			return action, nil
		}

		step.Invalid = append(step.Invalid, err.Error())
		if len(step.Invalid) > a.config.MaxInvalid {
			return Action{}, fmt.Errorf("%w: step %d: %s", ErrInvalidOutput, step.Index, err)
		}
	}
}

// execute runs one action. Failures become observations for the model.
func (a *Agent) execute(ctx context.Context, action Action) string {
	in := action.Input
	switch action.Action {
	case ActionFetchMentions:
		outcomes := a.ops.FetchAll(ctx)
		unreplied, err := a.mentions.ListUnreplied(ctx)
		if err != nil {
			return "error: " + err.Error()
		}
		return observe(map[string]any{
			"fetch":     outcomes,
			"unreplied": summarize(unreplied),
			"total":     len(unreplied),
		})

	case ActionClassifyAndReply:
		outcome, err := a.ops.ProcessMention(ctx, in.MentionID)
		if err != nil {
			return "error: " + err.Error()
		}
		return observe(outcome)

	case ActionMarkSentiment:
		if err := a.mentions.SetSentiment(ctx, in.MentionID, in.Sentiment); err != nil {
			return "error: " + err.Error()
		}
		return observe(map[string]string{"id": in.MentionID, "status": "success"})

	case ActionSendReply:
		mention, err := a.mentions.GetMention(ctx, in.MentionID)
		if err != nil {
			return "error: " + err.Error()
		}
		if mention.IsReply {
			return "error: mention already replied"
		}
		reply, err := a.ops.SendReply(ctx, mention.PlatformID, mention.ID, in.ReplyText, sources.Credentials{})
		if err != nil {
			return "error: " + err.Error()
		}
		return observe(reply)

	case ActionRaiseTickets:
		tickets, err := a.ops.RaiseTickets(ctx)
		if err != nil {
			return "error: " + err.Error()
		}
		return observe(map[string]any{"raised": len(tickets), "tickets": tickets})
	}
	return "error: unsupported action"
}

type listedMention struct {
	ID        string  `json:"id"`
	Platform  string  `json:"platform"`
	Text      string  `json:"text"`
	UserID    string  `json:"user_id"`
	Sentiment *string `json:"sentiment"`
}

func summarize(mentions []models.MentionPost) []listedMention {
	if len(mentions) > maxListed {
		mentions = mentions[:maxListed]
	}
	out := make([]listedMention, 0, len(mentions))
	for _, m := range mentions {
		out = append(out, listedMention{
			ID:        m.ID,
			Platform:  m.PlatformID,
			Text:      m.Text,
			UserID:    m.UserID,
			Sentiment: m.Sentiment,
		})
	}
	return out
}

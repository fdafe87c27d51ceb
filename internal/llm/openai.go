package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint (Groq, OpenAI, vLLM)
type OpenAIClient struct {
	model   string
	client  *resty.Client
	limiter *rate.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIClient creates a client paced to rps requests per second
func NewOpenAIClient(baseURL, apiKey, model string, rps float64) *OpenAIClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60*time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &OpenAIClient{
		model:   model,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *OpenAIClient) Name() string {
	return "openai:" + c.model
}

// Complete sends one chat completion and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("completion rate limiter: %w", err)
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	var out chatResponse
	parseErr := json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		msg := strings.TrimSpace(string(resp.Body()))
		if parseErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &APIError{Provider: "openai", Status: resp.StatusCode(), Message: msg}
	}
	if parseErr != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", parseErr)
	}
	if len(out.Choices) == 0 {
		return "", &APIError{Provider: "openai", Status: resp.StatusCode(), Message: "no choices returned"}
	}

	logrus.WithFields(logrus.Fields{
		"model":    c.model,
		"duration": time.Since(start).String(),
	}).Debug("Completion received")

	return out.Choices[0].Message.Content, nil
}

package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for operations a platform does not offer
var ErrUnsupported = errors.New("operation not supported by platform")

// ErrMissingCredentials is returned when neither the call nor the config supplies a token or account
var ErrMissingCredentials = errors.New("missing platform credentials")

// ErrNotLinked is returned when a Facebook page has no Instagram business account
var ErrNotLinked = errors.New("no instagram business account linked")

// PlatformAPIError is a non-2xx response or an embedded error object from a platform API
type PlatformAPIError struct {
	Platform string
	Status   int
	Message  string
}

func (e *PlatformAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Platform, e.Status, e.Message)
}

// TransportError wraps network failures and timeouts
type TransportError struct {
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Platform, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

const maxErrorBody = 512

// apiErrorMessage pulls a human readable message out of the error shapes used
// by the Graph API, X API v2 and LinkedIn REST.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail string          `json:"detail"`
		Title  string          `json:"title"`
		Msg    string          `json:"message"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Error) > 0 && string(payload.Error) != "null" {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var plain string
			if json.Unmarshal(payload.Error, &plain) == nil && plain != "" {
				return plain
			}
			return string(payload.Error)
		}
		switch {
		case payload.Detail != "":
			return payload.Detail
		case payload.Msg != "":
			return payload.Msg
		case payload.Title != "":
			return payload.Title
		case len(payload.Errors) > 0 && payload.Errors[0].Message != "":
			return payload.Errors[0].Message
		}
	}

	msg := strings.TrimSpace(string(body))
	if r := []rune(msg); len(r) > maxErrorBody {
		msg = string(r[:maxErrorBody])
	}
	return msg
}

// embeddedError reports whether a 2xx body still carries a top-level error object
func embeddedError(body []byte) bool {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return len(payload.Error) > 0 && string(payload.Error) != "null"
}

package sources

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	userAgent      = "Social-Mentions-Bot/1.0"
	requestTimeout = 30 * time.Second
)

func newRestyClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent)
}

// execute sends the request and decodes a successful body into out.
// Network failures become *TransportError, rejected calls *PlatformAPIError.
func execute(platform string, req *resty.Request, method, path string, out interface{}) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &TransportError{Platform: platform, Err: err}
	}

	body := resp.Body()
	if !resp.IsSuccess() || embeddedError(body) {
		logrus.Debugf("%s API %s %s failed: status %d, body: %s", platform, method, path, resp.StatusCode(), string(body))
		return resp, &PlatformAPIError{
			Platform: platform,
			Status:   resp.StatusCode(),
			Message:  apiErrorMessage(body),
		}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("failed to parse %s response: %w", platform, err)
		}
	}
	return resp, nil
}

// parseTimestamp accepts RFC3339 and the Graph API's "+0000" offset form
func parseTimestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	if value != "" {
		logrus.Debugf("Unrecognized timestamp %q, using current time", value)
	}
	return time.Now().UTC()
}

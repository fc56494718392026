package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
)

// RetryableStatus is the set of upstream HTTP statuses worth retrying,
// matching the original's RETRYABLE_STATUS exactly.
var RetryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// RetryableError marks an upstream response as worth retrying.
type RetryableError struct {
	StatusCode int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable upstream status: %d", e.StatusCode)
}

// CallWithRetry issues the chat-completions call, retrying on network errors
// and on RetryableStatus responses with exponential-jitter backoff capped by
// settings.RetryMaxSeconds, up to settings.RetryMaxAttempts attempts.
func CallWithRetry(ctx context.Context, client *Client, payload []byte, settings *config.Settings) (*http.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(settings.RetryBackoff * float64(time.Second))
	policy.MaxInterval = time.Duration(settings.RetryMaxSeconds * float64(time.Second))

	return backoff.Retry(ctx, func() (*http.Response, error) {
		resp, err := client.ChatCompletions(ctx, payload)
		if err != nil {
			return nil, err
		}
		if RetryableStatus[resp.StatusCode] {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &RetryableError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(settings.RetryMaxAttempts)))
}

// ExtractErrorMessage reads an upstream error's human-readable message out of
// its body, falling back to the raw body text when it isn't the expected
// {"error": {"message": ...}} or {"message": ...} shape.
func ExtractErrorMessage(body []byte) string {
	var errBody chatapi.ErrorBody
	if err := json.Unmarshal(body, &errBody); err != nil {
		return string(body)
	}
	if errBody.Error.Message != "" {
		return errBody.Error.Message
	}
	if errBody.Message != "" {
		return errBody.Message
	}
	return string(body)
}

// ApplyDegradeFields looks for the first configured field, in order, that is
// both present in payload and named in errorMessage, and returns payload with
// that field stripped. It reports false when no configured field matched.
func ApplyDegradeFields(payload []byte, fields []string, errorMessage string) ([]byte, bool) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false
	}
	for _, field := range fields {
		if _, present := m[field]; !present {
			continue
		}
		if !strings.Contains(errorMessage, field) {
			continue
		}
		delete(m, field)
		out, err := json.Marshal(m)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

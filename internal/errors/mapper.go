package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// apiErrorBody is the common JSON error envelope returned by providers.
// Some proxies double-encode it: the message field is itself a
// JSON-encoded envelope that needs a second parse pass.
type apiErrorBody struct {
	Error *apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UnwrapNestedMessage extracts the innermost human-readable message from a
// provider error body, best-effort. If the message field decodes as
// another error envelope the inner message wins; on any parse failure the
// input is returned unchanged.
func UnwrapNestedMessage(raw string) string {
	msg := strings.TrimSpace(raw)
	for range 3 {
		var body apiErrorBody
		if err := json.Unmarshal([]byte(msg), &body); err != nil || body.Error == nil {
			break
		}
		if strings.TrimSpace(body.Error.Message) == "" {
			break
		}
		msg = strings.TrimSpace(body.Error.Message)
	}
	return msg
}

// MapStatus classifies a provider HTTP status plus message into the
// taxonomy. The model is recorded on quota errors so the fallback policy
// can tell pro-quota from generic quota exhaustion.
func MapStatus(status int, message, model string) error {
	message = UnwrapNestedMessage(message)

	switch {
	case status == 429:
		return &QuotaError{
			Model:    model,
			ProQuota: isProQuotaMessage(message),
			Message:  message,
		}
	case status == 401 || status == 403:
		return Configuration(fmt.Sprintf("provider rejected credentials (http %d): %s", status, message))
	case status >= 400:
		return API(fmt.Sprintf("http %d: %s", status, message))
	default:
		return API(message)
	}
}

// Pro-tier daily quota messages name the exhausted model or quota metric.
// Generic rate limits do not.
func isProQuotaMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "quota exceeded for quota metric") ||
		strings.Contains(m, "daily limit") ||
		(strings.Contains(m, "quota") && strings.Contains(m, "-pro"))
}

// MapError classifies an arbitrary provider error by content. Used as the
// fallback when no structured status is available.
func MapError(err error, model string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return Aborted("request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request deadline exceeded: %w", ErrTimeout)
	}

	// Already classified by an adapter.
	for _, category := range []error{ErrConfiguration, ErrAPI, ErrQuotaExceeded, ErrUnsupported, ErrTimeout, ErrAborted} {
		if errors.Is(err, category) {
			return err
		}
	}

	msg := UnwrapNestedMessage(err.Error())
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "quota"),
		strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "throttl"):
		return &QuotaError{Model: model, ProQuota: isProQuotaMessage(msg), Message: msg}

	case strings.Contains(lower, "api key"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "forbidden"), strings.Contains(lower, "permission denied"):
		return Configuration(msg)

	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return fmt.Errorf("%s: %w", msg, ErrTimeout)

	default:
		return API(msg)
	}
}

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the provider/orchestrator taxonomy.
var (
	// ErrConfiguration - missing or invalid provider credentials. Fatal,
	// surfaced at session construction before any network call.
	ErrConfiguration = errors.New("configuration error")

	// ErrAPI - the provider rejected the request.
	ErrAPI = errors.New("api error")

	// ErrQuotaExceeded - usage allowance exhausted. Feeds the fallback
	// policy instead of failing the session outright.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUnsupported - the provider has no native implementation for the
	// requested operation (e.g. token counting).
	ErrUnsupported = errors.New("unsupported operation")

	// ErrToolNotFound - a requested tool is not registered. Non-fatal,
	// reported as a failed tool result.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExecution - a tool ran and failed. Non-fatal, same treatment.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrTimeout - the session wall-clock budget expired. Fatal.
	ErrTimeout = errors.New("timeout")

	// ErrAborted - cancellation requested by the user or caller. Fatal.
	ErrAborted = errors.New("aborted")

	// ErrTurnLimit - the orchestrator hit the configured turn ceiling.
	ErrTurnLimit = errors.New("max turns exceeded")
)

// QuotaError distinguishes model-specific ("pro") quota exhaustion from
// generic rate limiting. Both unwrap to ErrQuotaExceeded.
type QuotaError struct {
	Model    string
	ProQuota bool
	Message  string
}

func (e *QuotaError) Error() string {
	if e.ProQuota {
		return fmt.Sprintf("quota exceeded for model %s: %s", e.Model, e.Message)
	}
	return fmt.Sprintf("quota exceeded: %s", e.Message)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Wrap adds context while preserving the wrapped category.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory attaches a category to an external error. The original
// error text is kept, the chain unwraps to the category sentinel.
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", message, err, category)
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

func Configuration(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConfiguration)
}

func API(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAPI)
}

func Unsupported(message string) error {
	return fmt.Errorf("%s: %w", message, ErrUnsupported)
}

func ToolNotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrToolNotFound)
}

func ToolExecution(message string) error {
	return fmt.Errorf("%s: %w", message, ErrToolExecution)
}

func Aborted(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAborted)
}

func TurnLimit(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTurnLimit)
}

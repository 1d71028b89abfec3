package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrDataInvalid marks per-entity input problems that no amount of retrying
// will fix. The pipeline records them as permanent failures and moves on.
var ErrDataInvalid = errors.New("entity data invalid")

// IsRateLimit reports whether the provider signalled throttling. Rate-limit
// errors are tracked separately from generic retryable errors and are never
// retried at the adapter level.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429")
}

func IsDataInvalid(err error) bool {
	return errors.Is(err, ErrDataInvalid)
}

// IsTransient reports whether an error is worth another attempt: anything
// that is not a rate-limit signal, not invalid input, and not cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) || IsDataInvalid(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

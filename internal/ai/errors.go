package ai

import (
	"errors"
	"fmt"
	"time"
)

// AuthError is a 401/403 from the model provider.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("model provider rejected the credentials: %s", e.APIError.Error())
}

// RateLimitError is a 429. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("model provider rate limited the request (retry in %ds): %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("model provider rate limited the request: %s", e.APIError.Error())
}

// ModelNotFoundError means the selected model is not served by the runtime.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not available: %s", e.APIError.Error())
}

// BadRequestError is any other 4xx.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("model request rejected: %s", e.APIError.Error())
}

// QuotaExceededError is a billing or quota failure.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("model provider quota exceeded: %s", e.APIError.Error())
}

// ServerError is a 5xx from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string {
	return fmt.Sprintf("model provider error: %s", e.APIError.Error())
}

// UnreachableError means no connection to the model runtime could be made.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "model runtime unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("model runtime unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("model runtime unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint returns a short remedy for a runtime failure, or "" when err is not
// one of the typed provider errors.
func Hint(err error) string {
	var (
		unreachable *UnreachableError
		auth        *AuthError
		notFound    *ModelNotFoundError
		rate        *RateLimitError
		quota       *QuotaExceededError
	)
	switch {
	case errors.As(err, &unreachable):
		return "start the model runtime or point DATALOOM_OLLAMA_HOST / openai_base_url at it"
	case errors.As(err, &auth):
		return "check the API key (dataloom config set api_key ...)"
	case errors.As(err, &notFound):
		return "pick an available model with --model or default_model"
	case errors.As(err, &rate):
		return "lower batch --concurrency or wait before retrying"
	case errors.As(err, &quota):
		return "check the provider account's billing"
	}
	return ""
}

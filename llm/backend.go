package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

// Backend is one text-generation provider. Implementations handle their own
// key acquisition and retries.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError is raised only when both backends exhaust their retries.
type GenerationError struct {
	PrimaryErr  error
	FallbackErr error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on both backends: primary: %v; fallback: %v", e.PrimaryErr, e.FallbackErr)
}

// statusError carries an HTTP status for classification. Used by the
// hand-built provider clients.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// classifyStatus maps an HTTP status to a retry class. Network errors (no
// status at all) count as retryable.
func classifyStatus(err error) retry.Class {
	var se *statusError
	if !errors.As(err, &se) {
		return retry.Retryable
	}
	switch {
	case se.Status == http.StatusTooManyRequests:
		return retry.CredentialFault
	case se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden:
		return retry.CredentialFault
	case se.Status >= 500:
		return retry.Retryable
	case se.Status >= 400:
		return retry.Fatal
	default:
		return retry.Retryable
	}
}

// outcomeForStatus translates a failed credentialed call into a rotator
// outcome.
func outcomeForStatus(status int) keys.Outcome {
	switch status {
	case http.StatusTooManyRequests:
		return keys.RateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return keys.AuthFailed
	default:
		return keys.TransientOther
	}
}

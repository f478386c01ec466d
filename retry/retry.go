package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Class buckets an error for the retry loop. Classification stays a pure
// function per provider so the loop itself never inspects provider errors.
type Class int

const (
	// Retryable errors are retried until attempts run out.
	Retryable Class = iota
	// CredentialFault errors are retried too, but the failure is first
	// forwarded so the key rotator can cool or retire the credential.
	CredentialFault
	// Fatal errors short-circuit immediately.
	Fatal
)

// Policy is immutable per dispatcher.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classify    func(error) Class
}

// Run executes op up to policy.MaxAttempts times. Between attempts it sleeps
// min(MaxDelay, BaseDelay*2^(attempt-1)) plus uniform jitter in [0, BaseDelay).
// onCredentialFault is invoked for every CredentialFault-classified error,
// typically to report the failure to the key rotator. The last error is
// surfaced when all attempts fail.
func Run(ctx context.Context, policy Policy, op func(context.Context) error, onCredentialFault func(error)) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		class := Retryable
		if policy.Classify != nil {
			class = policy.Classify(lastErr)
		}

		switch class {
		case Fatal:
			return lastErr
		case CredentialFault:
			if onCredentialFault != nil {
				onCredentialFault(lastErr)
			}
		}

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(backoff(policy, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func backoff(policy Policy, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := policy.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	d := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if d > max {
		d = max
	}
	return d + time.Duration(rand.Int63n(int64(base)))
}

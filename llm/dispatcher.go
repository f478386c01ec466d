package llm

import (
	"context"
	"log"
	"math/rand"
)

// Dispatcher mixes two backends with independent quota pools. With
// probability PrimaryWeight the primary is attempted first; the other backend
// is tried once as a whole-backend fallback. Stochastic mixing smooths usage
// across free-tier limits.
type Dispatcher struct {
	Primary       Backend
	Fallback      Backend
	PrimaryWeight float64

	// roll is swapped out in tests for deterministic selection.
	roll func() float64
}

func NewDispatcher(primary, fallback Backend, primaryWeight float64) *Dispatcher {
	return &Dispatcher{
		Primary:       primary,
		Fallback:      fallback,
		PrimaryWeight: primaryWeight,
		roll:          rand.Float64,
	}
}

// Generate produces text for prompt. Returns *GenerationError only when both
// backends exhaust their retries.
func (d *Dispatcher) Generate(ctx context.Context, prompt string) (string, error) {
	first, second := d.Primary, d.Fallback
	if d.roll() >= d.PrimaryWeight {
		first, second = d.Fallback, d.Primary
	}

	out, firstErr := first.Generate(ctx, prompt)
	if firstErr == nil {
		return out, nil
	}
	log.Printf("[llm] %s failed (%v), falling back to %s", first.Name(), firstErr, second.Name())

	out, secondErr := second.Generate(ctx, prompt)
	if secondErr == nil {
		return out, nil
	}

	genErr := &GenerationError{}
	if first == d.Primary {
		genErr.PrimaryErr, genErr.FallbackErr = firstErr, secondErr
	} else {
		genErr.PrimaryErr, genErr.FallbackErr = secondErr, firstErr
	}
	return "", genErr
}

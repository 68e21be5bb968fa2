package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Chain when no step produced a value.
var ErrExhausted = errors.New("all fallback steps failed")

// Backoff returns the pause before retry number attempt (0-based).
type Backoff func(attempt int) time.Duration

// Step is one alternative in a fallback chain.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
	// Attempts bounds retries of this step; values below 1 mean a single attempt.
	Attempts int
	// Accept decides whether a successful value ends the chain. Nil accepts everything.
	Accept func(T) bool
	// Required steps abort the chain on error instead of falling through.
	Required bool
}

// Outcome describes how a chain resolved.
type Outcome[T any] struct {
	Value    T
	Step     string
	Index    int
	Failures []error
	// Accepted is false when the chain ended on a value no step accepted.
	Accepted bool
}

// UsedFallback reports whether a step other than the first supplied the value.
func (o Outcome[T]) UsedFallback() bool {
	return o.Index > 0
}

// Chain runs steps in order until one yields an accepted value.
//
// A step that succeeds with an unaccepted value is remembered; if no later
// step is accepted, the most recent such value is returned with Accepted
// false. Cancellation of ctx stops the chain immediately.
func Chain[T any](ctx context.Context, backoff Backoff, steps ...Step[T]) (Outcome[T], error) {
	var (
		out      Outcome[T]
		haveBest bool
		best     Outcome[T]
	)
	for i, step := range steps {
		attempts := step.Attempts
		if attempts < 1 {
			attempts = 1
		}
		for attempt := 0; attempt < attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			v, err := step.Run(ctx)
			if err == nil {
				if step.Accept == nil || step.Accept(v) {
					out.Value = v
					out.Step = step.Name
					out.Index = i
					out.Accepted = true
					return out, nil
				}
				best = Outcome[T]{Value: v, Step: step.Name, Index: i}
				haveBest = true
				break
			}

			out.Failures = append(out.Failures, fmt.Errorf("%s: %w", step.Name, err))
			if IsContextError(err) && ctx.Err() != nil {
				return out, err
			}
			if step.Required {
				return out, err
			}
			if attempt+1 < attempts && IsRetryable(err) {
				if err := sleep(ctx, backoff, attempt); err != nil {
					return out, err
				}
				continue
			}
			break
		}
	}
	if haveBest {
		best.Failures = out.Failures
		return best, nil
	}
	return out, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(out.Failures...))
}

func sleep(ctx context.Context, backoff Backoff, attempt int) error {
	if backoff == nil {
		return nil
	}
	d := backoff(attempt)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

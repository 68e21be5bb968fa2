package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChainPrimarySucceeds(t *testing.T) {
	out, err := Chain(context.Background(), nil,
		Step[string]{Name: "primary", Run: func(context.Context) (string, error) { return "a", nil }},
		Step[string]{Name: "secondary", Run: func(context.Context) (string, error) {
			t.Fatalf("secondary should not run")
			return "", nil
		}},
	)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if out.Value != "a" || out.UsedFallback() || !out.Accepted {
		t.Fatalf("outcome = %+v, want primary value", out)
	}
}

func TestChainFallsBackAndRecordsFailure(t *testing.T) {
	out, err := Chain(context.Background(), nil,
		Step[string]{Name: "primary", Run: func(context.Context) (string, error) { return "", errors.New("boom") }},
		Step[string]{Name: "secondary", Run: func(context.Context) (string, error) { return "b", nil }},
	)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if out.Value != "b" || out.Step != "secondary" || !out.UsedFallback() {
		t.Fatalf("outcome = %+v, want secondary", out)
	}
	if len(out.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(out.Failures))
	}
}

func TestChainRetriesRetryableErrors(t *testing.T) {
	calls := 0
	out, err := Chain(context.Background(), CappedBackoff(time.Millisecond, 2*time.Millisecond),
		Step[int]{Name: "flaky", Attempts: 3, Run: func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &UpstreamError{Service: "test", Status: 503, Retryable: true}
			}
			return 7, nil
		}},
	)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if calls != 3 || out.Value != 7 {
		t.Fatalf("calls = %d value = %d, want 3 and 7", calls, out.Value)
	}
}

func TestChainDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := Chain(context.Background(), nil,
		Step[int]{Name: "bad", Attempts: 3, Run: func(context.Context) (int, error) {
			calls++
			return 0, &UpstreamError{Service: "test", Status: 400}
		}},
	)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestChainRequiredStepAborts(t *testing.T) {
	sentinel := errors.New("required failed")
	_, err := Chain(context.Background(), nil,
		Step[int]{Name: "a", Required: true, Run: func(context.Context) (int, error) { return 0, sentinel }},
		Step[int]{Name: "b", Run: func(context.Context) (int, error) {
			t.Fatalf("b should not run")
			return 0, nil
		}},
	)
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}
}

func TestChainKeepsLatestUnacceptedValue(t *testing.T) {
	positive := func(v int) bool { return v > 0 }
	out, err := Chain(context.Background(), nil,
		Step[int]{Name: "a", Accept: positive, Run: func(context.Context) (int, error) { return -1, nil }},
		Step[int]{Name: "b", Accept: positive, Run: func(context.Context) (int, error) { return 0, errors.New("nope") }},
	)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if out.Accepted || out.Value != -1 || out.Step != "a" {
		t.Fatalf("outcome = %+v, want unaccepted value from a", out)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Chain(ctx, nil, Step[int]{Name: "a", Run: func(context.Context) (int, error) {
		t.Fatalf("step should not run")
		return 0, nil
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

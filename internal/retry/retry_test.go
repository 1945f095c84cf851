package retry

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/tokendash/internal/model"
)

func TestExecuteReturnsFirstSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) model.Result {
		calls++
		return model.Success(map[string]any{"value": 42})
	})

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) model.Result {
		calls++
		if calls < 3 {
			return model.Fail(model.FailureTimeout, "upstream slow")
		}
		return model.Success(map[string]any{"value": 1})
	})

	if !res.OK() {
		t.Fatalf("expected success after retries, got %v", res.Err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteDoesNotRetryMalformed(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) model.Result {
		calls++
		return model.Fail(model.FailureMalformed, "bad schema")
	})

	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != model.FailureMalformed {
		t.Errorf("expected malformed_response, got %s", res.Err.Kind)
	}
	if calls != 1 {
		t.Errorf("malformed response must not be retried, got %d calls", calls)
	}
}

func TestExecuteExhaustsAttemptBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	res := p.Execute(context.Background(), func(ctx context.Context) model.Result {
		calls++
		return model.Fail(model.FailureUnreachable, "connection refused")
	})

	if res.OK() {
		t.Fatal("expected failure after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if res.Err.Kind != model.FailureUnreachable {
		t.Errorf("expected last failure to surface, got %s", res.Err.Kind)
	}
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	p := Policy{MaxAttempts: 5, BackoffBase: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := p.Execute(ctx, func(ctx context.Context) model.Result {
		calls++
		cancel()
		return model.Fail(model.FailureTimeout, "upstream slow")
	})

	if res.OK() {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := Policy{MaxAttempts: 10, BackoffBase: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{5, 2 * time.Second},
		{30, 2 * time.Second},
		{80, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

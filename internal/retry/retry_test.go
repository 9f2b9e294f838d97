package retry

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithExponentialBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Fatal("expected success")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithExponentialBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient failure %d", calls)
		}
		return nil
	})

	if !result.Success {
		t.Fatalf("expected eventual success, last error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestWithExponentialBackoff_Exhausted(t *testing.T) {
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return fmt.Errorf("always failing")
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithExponentialBackoff(ctx, fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return fmt.Errorf("failing")
	})

	if result.Success {
		t.Fatal("expected failure after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}

func TestDo_WrapsFailure(t *testing.T) {
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCalculateDelay_Capped(t *testing.T) {
	cfg := &Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2.0, MaxAttempts: 10}

	if got := calculateDelay(cfg, 1); got != time.Second {
		t.Errorf("delay(1) = %v, want 1s", got)
	}
	if got := calculateDelay(cfg, 2); got != 2*time.Second {
		t.Errorf("delay(2) = %v, want 2s", got)
	}
	if got := calculateDelay(cfg, 5); got != 3*time.Second {
		t.Errorf("delay(5) = %v, want capped 3s", got)
	}
}

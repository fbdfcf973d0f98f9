package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyDoSucceedsOnLaterAttempt(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Interval: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(_ context.Context, n int) (bool, error) {
		attempts++
		if n != attempts {
			t.Errorf("attempt number %d reported as %d", attempts, n)
		}
		return attempts == 3, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}
}

func TestPolicyDoExhaustsAttempts(t *testing.T) {
	policy := Policy{MaxAttempts: 4, Interval: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context, int) (bool, error) {
		attempts++
		return false, nil
	})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestPolicyDoTerminalFailureStopsRetrying(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Interval: time.Millisecond}
	terminal := errors.New("bad credentials")

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context, int) (bool, error) {
		attempts++
		return true, terminal
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("err = %v, want terminal error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPolicyWaitGrowsLinearly(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Interval: 10 * time.Millisecond}
	for n := 1; n <= 4; n++ {
		want := time.Duration(n) * 10 * time.Millisecond
		if got := policy.wait(n); got != want {
			t.Errorf("wait(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestPolicyDoBacksOffLinearly(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Interval: 20 * time.Millisecond}

	started := time.Now()
	err := policy.Do(context.Background(), func(context.Context, int) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
	// Waits of 20ms and 40ms separate the three attempts.
	if elapsed := time.Since(started); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 60ms of backoff", elapsed)
	}
}

func TestPolicyDoHonorsCancellation(t *testing.T) {
	policy := Policy{MaxAttempts: 100, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context, int) (bool, error) {
			return false, nil
		})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPolicyDoRejectsZeroAttempts(t *testing.T) {
	if err := (Policy{}).Do(context.Background(), func(context.Context, int) (bool, error) {
		t.Fatal("attempt must not run")
		return true, nil
	}); err == nil {
		t.Fatal("expected error for zero max attempts")
	}
}

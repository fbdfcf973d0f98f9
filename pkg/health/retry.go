package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted means every attempt allowed by the policy ran and
// none reached a terminal outcome.
var ErrAttemptsExhausted = errors.New("health check attempts exhausted")

// Policy controls how a check is retried. InitialWait runs once before the
// first attempt (deployments need warm-up time before polling is useful);
// the wait after attempt n is Interval*n, so retries back off linearly.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	Interval    time.Duration
}

// DefaultRemotePolicy matches the cadence used for freshly deployed
// applications: half a minute of warm-up, then waits growing by ten seconds
// per attempt.
var DefaultRemotePolicy = Policy{
	MaxAttempts: 6,
	InitialWait: 30 * time.Second,
	Interval:    10 * time.Second,
}

// Do runs attempt up to MaxAttempts times, sleeping InitialWait first and
// a linearly growing wait between attempts. The attempt callback returns
// done=true to stop retrying, with err carrying a terminal failure or nil
// for success. A cancelled context wins over any pending sleep.
func (p Policy) Do(ctx context.Context, attempt func(ctx context.Context, n int) (done bool, err error)) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy needs at least one attempt, got %d", p.MaxAttempts)
	}

	if err := sleep(ctx, p.InitialWait); err != nil {
		return err
	}

	for n := 1; n <= p.MaxAttempts; n++ {
		done, err := attempt(ctx, n)
		if done {
			return err
		}
		if n < p.MaxAttempts {
			if err := sleep(ctx, p.wait(n)); err != nil {
				return err
			}
		}
	}
	return ErrAttemptsExhausted
}

// wait is the pause after attempt n.
func (p Policy) wait(n int) time.Duration {
	return p.Interval * time.Duration(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

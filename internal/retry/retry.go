package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrExhausted is returned when every attempt ran without the condition
// reporting done.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop. Attempts is the total number of times the
// condition runs. The delay between attempts starts at InitialDelay, grows by
// Factor and is clamped to MaxDelay; the clamp never reduces Attempts.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Jitter       float64
}

// Do runs condition until it reports done, returns an error, the attempts
// run out, or ctx is done.
func Do(ctx context.Context, p Policy, condition wait.ConditionWithContextFunc) error {
	attempts := max(p.Attempts, 1)
	backoff := wait.Backoff{
		Duration: p.InitialDelay,
		Factor:   p.Factor,
		Jitter:   p.Jitter,
		Steps:    math.MaxInt32,
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := condition(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= attempts {
			return ErrExhausted
		}

		delay := backoff.Step()
		if p.MaxDelay > 0 {
			delay = min(delay, p.MaxDelay)
			backoff.Duration = min(backoff.Duration, p.MaxDelay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

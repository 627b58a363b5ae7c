// Package retry makes the retry behaviour of remote calls an explicit,
// configurable strategy. The default policy is a single attempt.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy decides how long to wait before the given retry (1-based).
// Returning false stops retrying.
type Policy interface {
	Next(retry int) (time.Duration, bool)
}

type none struct{}

func (none) Next(int) (time.Duration, bool) { return 0, false }

// None performs exactly one attempt.
var None Policy = none{}

// Fixed waits Delay between attempts, up to Attempts calls in total.
type Fixed struct {
	Attempts int
	Delay    time.Duration
}

func (f Fixed) Next(retry int) (time.Duration, bool) {
	if retry >= f.Attempts {
		return 0, false
	}
	return f.Delay, true
}

// Exponential doubles Base after every attempt, capped at Max.
type Exponential struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (e Exponential) Next(retry int) (time.Duration, bool) {
	if retry >= e.Attempts {
		return 0, false
	}
	d := e.Base << (retry - 1)
	if d <= 0 || (e.Max > 0 && d > e.Max) {
		d = e.Max
	}
	return d, true
}

// FromConfig builds a policy from its config name.
func FromConfig(strategy string, attempts int, delay, maxDelay time.Duration) (Policy, error) {
	switch strategy {
	case "", "none":
		return None, nil
	case "fixed":
		return Fixed{Attempts: attempts, Delay: delay}, nil
	case "exponential":
		return Exponential{Attempts: attempts, Base: delay, Max: maxDelay}, nil
	default:
		return nil, fmt.Errorf("unknown retry strategy %q", strategy)
	}
}

// Do calls fn until it succeeds, the policy gives up or ctx is done.
// The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p == nil {
		p = None
	}
	for retry := 1; ; retry++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		wait, ok := p.Next(retry)
		if !ok {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry aborted: %v)", err, ctx.Err())
		case <-timer.C:
		}
	}
}

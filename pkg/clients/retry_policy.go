package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/errors"
)

// Retry policy kinds, also used as metric labels.
const (
	RetryKindSoft = "soft"
	RetryKindHard = "hard"
)

// Notify is called before each retry sleep.
type Notify func(err error, attempt int, delay time.Duration)

// RetryPolicy is an explicit retry rule evaluated by the Gate. Policies
// compose by nesting Execute calls rather than by decorating functions.
type RetryPolicy struct {
	Kind        string
	MaxAttempts int
	// NewBackOff returns a fresh schedule for one Execute call
	NewBackOff func() backoff.BackOff
	// Retryable selects the errors this policy handles; others pass through
	Retryable func(error) bool
}

// NewSoftPolicy retries throttling responses with exponential backoff.
func NewSoftPolicy(cfg config.SoftRetry) *RetryPolicy {
	return &RetryPolicy{
		Kind:        RetryKindSoft,
		MaxAttempts: cfg.MaxAttempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.InitialInterval
			b.MaxInterval = cfg.MaxInterval
			b.Multiplier = 2
			b.MaxElapsedTime = 0
			return b
		},
		Retryable: func(err error) bool {
			return errors.TypeOf(err) == errors.ErrorTypeRateLimit
		},
	}
}

// NewHardPolicy retries metering locks on a constant interval.
func NewHardPolicy(cfg config.HardRetry) *RetryPolicy {
	return &RetryPolicy{
		Kind:        RetryKindHard,
		MaxAttempts: cfg.MaxAttempts,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(cfg.Interval)
		},
		Retryable: func(err error) bool {
			return errors.TypeOf(err) == errors.ErrorTypeMeteringLock
		},
	}
}

// Execute runs fn until it succeeds, fails with an error the policy does not
// handle, or MaxAttempts is reached. Context cancellation during a sleep
// returns ctx.Err() unwrapped.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error, notify Notify) error {
	b := rp.NewBackOff()
	b.Reset()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !rp.Retryable(err) {
			return err
		}

		if attempt >= rp.MaxAttempts {
			return errors.Wrap(err, errors.TypeOf(err),
				fmt.Sprintf("%s retry gave up after %d attempts", rp.Kind, attempt)).
				WithDetail(errors.DetailAttempts, attempt)
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return err
		}

		if notify != nil {
			notify(err, attempt, delay)
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

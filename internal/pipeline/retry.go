package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/scraper"
)

// RetryPolicy controls per-item retry behavior. Only transient errors are
// retried; authentication loss and missing critical fields abort immediately
// because repeating the request cannot change the outcome.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

// NewRetryPolicy builds a policy from processing configuration
func NewRetryPolicy(config common.ProcessConfig) RetryPolicy {
	return RetryPolicy{
		Attempts:       config.RetryAttempts,
		InitialBackoff: config.InitialBackoff,
		MaxBackoff:     config.MaxBackoff,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Execute runs fn up to Attempts times, backing off exponentially with jitter
// between transient failures. The last error is returned when attempts are
// exhausted.
func (p RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := p.InitialBackoff

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !scraper.IsTransient(err) {
			return err
		}
		if attempt == p.Attempts {
			return err
		}

		if sleepErr := sleepWithJitter(ctx, backoff, p.JitterFraction); sleepErr != nil {
			return sleepErr
		}
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}

// sleepWithJitter waits for d adjusted by a random factor in [1-f, 1+f]
func sleepWithJitter(ctx context.Context, d time.Duration, f float64) error {
	factor := 1 + f*(2*rand.Float64()-1)
	timer := time.NewTimer(time.Duration(float64(d) * factor))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

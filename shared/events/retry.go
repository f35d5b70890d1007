package events

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eaglebank/identity-service/shared/faults"
)

// RetryPolicy re-invokes a handler at a fixed interval. Terminal faults are
// never retried.
type RetryPolicy struct {
	Retries  int
	Interval time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(retries)),
		ctx,
	)
}

// Do calls fn until it succeeds, returns a terminal fault, the retries are
// exhausted or ctx is done. It reports how many times fn was called and the
// last error fn returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	attempts := 0
	var last error

	err := backoff.Retry(func() error {
		attempts++
		last = fn(ctx)
		if faults.IsTerminal(last) {
			return backoff.Permanent(last)
		}
		return last
	}, p.backOff(ctx))
	if err == nil {
		return attempts, nil
	}
	return attempts, last
}

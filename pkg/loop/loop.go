// Package loop runs a step repeatedly until the context is done.
package loop

import (
	"context"
	"errors"
	"time"
)

// ErrStop can be returned from a Step to end Run without error.
var ErrStop = errors.New("loop: stop")

// Step is a round of a loop.
//
// It returns how long Run waits before the next round.
type Step func(ctx context.Context) (time.Duration, error)

type config struct {
	timeout time.Duration
}

type Option func(*config) *config

// WithStepTimeout sets a deadline on the context each step receives.
func WithStepTimeout(d time.Duration) Option {
	return func(c *config) *config {
		c.timeout = d
		return c
	}
}

// Run calls step until ctx is done or step returns an error.
//
// # Returns
//
// - error: ctx.Err() when ctx is done, nil when step returns ErrStop,
// otherwise the error step returned.
func Run(ctx context.Context, step Step, options ...Option) error {
	conf := &config{}
	for _, opt := range options {
		conf = opt(conf)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, err := round(ctx, step, conf.timeout)
		if errors.Is(err, ErrStop) {
			return nil
		} else if err != nil {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func round(ctx context.Context, step Step, timeout time.Duration) (time.Duration, error) {
	if timeout <= 0 {
		return step(ctx)
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return step(sctx)
}

package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/fleetdeck/pkg/loop"
)

func TestRun(t *testing.T) {
	t.Run("when the step stops, it returns nil", func(t *testing.T) {
		rounds := 0
		err := loop.Run(context.Background(), func(context.Context) (time.Duration, error) {
			rounds += 1
			if rounds == 3 {
				return 0, loop.ErrStop
			}
			return time.Millisecond, nil
		})
		if err != nil {
			t.Errorf("error = %v", err)
		}
		if rounds != 3 {
			t.Errorf("rounds = %d", rounds)
		}
	})

	t.Run("when the step fails, it returns the error", func(t *testing.T) {
		expected := errors.New("fake error")
		err := loop.Run(context.Background(), func(context.Context) (time.Duration, error) {
			return 0, expected
		})
		if !errors.Is(err, expected) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("when the context is done while waiting, it returns the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		rounds := 0
		begin := time.Now()
		err := loop.Run(ctx, func(context.Context) (time.Duration, error) {
			rounds += 1
			cancel()
			return time.Hour, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v", err)
		}
		if rounds != 1 {
			t.Errorf("rounds = %d", rounds)
		}
		if elapsed := time.Since(begin); time.Minute < elapsed {
			t.Errorf("it waits too long: %s", elapsed)
		}
	})

	t.Run("when the context is done before start, the step is not called", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := loop.Run(ctx, func(context.Context) (time.Duration, error) {
			t.Error("step is called")
			return 0, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("each step has the deadline of the timeout", func(t *testing.T) {
		var deadline time.Time
		var ok bool
		begin := time.Now()
		loop.Run(
			context.Background(),
			func(ctx context.Context) (time.Duration, error) {
				deadline, ok = ctx.Deadline()
				return 0, loop.ErrStop
			},
			loop.WithStepTimeout(5*time.Second),
		)
		if !ok {
			t.Fatal("step has no deadline")
		}
		if d := deadline.Sub(begin); d < 4*time.Second || 6*time.Second < d {
			t.Errorf("deadline is in %s", d)
		}
	})
}

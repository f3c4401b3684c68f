package effects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInOrder(t *testing.T) {
	var order []string
	rec := func(name string) Effect {
		return Effect{Name: name, Run: func(context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	err := NewRunner(time.Second).Run(context.Background(), rec("invalidate"), rec("publish"), rec("notify"))
	require.NoError(t, err)
	assert.Equal(t, []string{"invalidate", "publish", "notify"}, order)
}

func TestFailureDoesNotBlockNext(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	err := NewRunner(time.Second).Run(context.Background(),
		Effect{Name: "invalidate", Run: func(context.Context) error { return boom }},
		Effect{Name: "explode", Run: func(context.Context) error { panic("kaboom") }},
		Effect{Name: "publish", Run: func(context.Context) error { ran = true; return nil }},
	)

	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "explode panicked")
}

func TestDetachedFromRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stepErr error
	err := NewRunner(time.Second).Run(ctx, Effect{Name: "check", Run: func(ctx context.Context) error {
		stepErr = ctx.Err()
		return nil
	}})
	require.NoError(t, err)
	assert.NoError(t, stepErr)
}

func TestStepTimeout(t *testing.T) {
	err := NewRunner(20*time.Millisecond).Run(context.Background(), Effect{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNilRunIsSkipped(t *testing.T) {
	assert.NoError(t, NewRunner(0).Run(context.Background(), Effect{Name: "empty"}))
}

package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrigger_RunsImmediatelyAndRepeats(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &Trigger{
		Interval: 10 * time.Millisecond,
		Job: func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}

	err := tr.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestTrigger_FailuresDoNotStopLoop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &Trigger{
		Interval: 5 * time.Millisecond,
		Logger:   zap.New(core),
		Job: func(context.Context) error {
			switch calls.Add(1) {
			case 1:
				return errors.New("site unreachable")
			case 2:
				panic("boom")
			default:
				cancel()
				return nil
			}
		},
	}

	require.ErrorIs(t, tr.Run(ctx), context.Canceled)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
	assert.Equal(t, 1, logs.FilterMessage("scheduled run failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("scheduled run panicked").Len())
}

func TestTrigger_RunOnceReportsPanic(t *testing.T) {
	tr := &Trigger{Job: func(context.Context) error { panic("kaput") }}
	err := tr.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")
}

func TestTrigger_RequiresJob(t *testing.T) {
	require.Error(t, (&Trigger{}).Run(context.Background()))
}

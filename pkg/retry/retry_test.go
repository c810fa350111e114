package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xcp-ng/xenclean/pkg/logging"
)

var fast = RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, Multiplier: 2}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, logging.Discard(), func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	busy := errors.New("busy")
	calls := 0
	err := Retry(context.Background(), fast, logging.Discard(), func() error {
		calls++
		return busy
	})
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	denied := errors.New("denied")
	calls := 0
	err := Retry(context.Background(), fast, logging.Discard(), func() error {
		calls++
		return Permanent(denied)
	})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryStopsWaitingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := RetryConfig{MaxRetries: 3, InitialInterval: time.Hour, Multiplier: 1}
	calls := 0
	start := time.Now()
	err := Retry(ctx, slow, logging.Discard(), func() error {
		calls++
		cancel()
		return errors.New("busy")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

package listing

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/pkg/errors"
)

type flakyLookup struct {
	calls atomic.Int32
	err   error
	links map[string]string
}

func (f *flakyLookup) Links(_ context.Context, _ []string) (map[string]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.links, nil
}

func TestBreakerLookup_PassesThrough(t *testing.T) {
	src := &flakyLookup{links: map[string]string{"A": "https://a"}}
	b := NewBreakerLookup(src, BreakerConfig{}, nil)

	links, err := b.Links(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, "https://a", links["A"])
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerLookup_OpensAfterFailures(t *testing.T) {
	src := &flakyLookup{err: stderrors.New("connection refused")}

	var transitions []gobreaker.State
	b := NewBreakerLookup(src, BreakerConfig{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Minute}, nil,
		func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) })

	for i := 0; i < 3; i++ {
		_, err := b.Links(context.Background(), []string{"A"})
		require.Error(t, err)
		assert.False(t, errors.IsCode(err, errors.ErrCodeListingSourceUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := b.Links(context.Background(), []string{"A"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeListingSourceUnavailable))
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestBreakerLookup_CancellationIsNotAFailure(t *testing.T) {
	src := &flakyLookup{err: context.Canceled}
	b := NewBreakerLookup(src, BreakerConfig{MinRequests: 1, FailureRatio: 0.1}, nil)

	for i := 0; i < 5; i++ {
		_, _ = b.Links(context.Background(), nil)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, StateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, StateValue(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, StateValue(gobreaker.StateOpen))
}

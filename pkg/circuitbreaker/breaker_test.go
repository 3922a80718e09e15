package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := New[int]("test", Options{ConsecutiveFailures: 2, Timeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, errBackend })
		require.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.True(t, IsRejected(err))
}

func TestBreaker_IgnoresExcludedErrors(t *testing.T) {
	errMissing := errors.New("missing")
	cb := New[int]("test", Options{
		ConsecutiveFailures: 1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errMissing)
		},
	}, nil)

	_, err := cb.Execute(func() (int, error) { return 0, errMissing })
	require.ErrorIs(t, err, errMissing)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, IsRejected(err))
}

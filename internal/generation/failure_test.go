package generation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryDelay(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected time.Duration
		ok       bool
	}{
		{"3s", 3 * time.Second, true},
		{"43s", 43 * time.Second, true},
		{"1.5s", 1500 * time.Millisecond, true},
		{" 7s ", 7 * time.Second, true},
		{"0s", 0, true},
		{"abc", 0, false},
		{"3", 0, false},
		{"", 0, false},
		{"-2s", 0, false},
		{"0.000000001s", time.Nanosecond, true},
		{"2.25s", 2250 * time.Millisecond, true},
		{"500ms", 0, false},
		{"1m", 0, false},
		{"1h30m", 0, false},
		{"1h30s", 0, false},
		{"1e3s", 0, false},
		{"1.s", 0, false},
		{"1.0000000001s", 0, false},
		{"315576000000s", 0, false},
	}

	for _, tc := range testCases {
		d, ok := ParseRetryDelay(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		assert.Equal(t, tc.expected, d, "input %q", tc.input)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	t.Run("plain error is fatal", func(t *testing.T) {
		f := Classify(cause)
		assert.Equal(t, FailureFatal, f.Kind)
		assert.Same(t, cause, f.Cause)
	})

	t.Run("wrapped failure keeps its kind", func(t *testing.T) {
		wrapped := fmt.Errorf("adapter: %w", Transient(503, cause))
		f := Classify(wrapped)
		assert.Equal(t, FailureTransient, f.Kind)
		assert.Equal(t, 503, f.StatusCode)
		assert.ErrorIs(t, f, cause)
	})

	t.Run("rate limited carries retry after", func(t *testing.T) {
		d := 3 * time.Second
		f := Classify(RateLimited(cause, &d))
		assert.Equal(t, FailureRateLimited, f.Kind)
		require.NotNil(t, f.RetryAfter)
		assert.Equal(t, d, *f.RetryAfter)
	})
}

func TestFailureKind(t *testing.T) {
	t.Parallel()

	assert.True(t, FailureRateLimited.Retryable())
	assert.True(t, FailureTransient.Retryable())
	assert.False(t, FailureFatal.Retryable())
	assert.Equal(t, "rate_limited", FailureRateLimited.String())
	assert.Equal(t, "transient", FailureTransient.String())
	assert.Equal(t, "fatal", FailureFatal.String())
}

func TestFailureError(t *testing.T) {
	t.Parallel()

	f := Transient(502, errors.New("bad gateway"))
	assert.Equal(t, "transient (status 502): bad gateway", f.Error())
	assert.Equal(t, "fatal", (&Failure{}).Error())
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("busy"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("busy"), 429)), true},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"rate limit text", errors.New("Error 429: Rate limit reached for gpt-4.1"), true},
		{"gemini exhausted", errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{"bad request", errors.New("invalid argument: prompt empty"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("jina", 503, "unavailable")
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "jina: status 503")

	err = StatusError("jina", 401, "bad key")
	assert.False(t, IsTransient(err))

	assert.True(t, IsTransientHTTPStatus(529))
	assert.False(t, IsTransientHTTPStatus(404))
}

func TestDoVal_RetriesTransient(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(), func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry()
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("busy"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(_ context.Context) error {
			calls++
			return NewTransientError(errors.New("busy"), 503)
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}.withDefaults()
	cfg.JitterFraction = 0
	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 3*time.Second, cfg.backoff(5))
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("gemini", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	b.now = func() time.Time { return now }

	fail := func(_ context.Context) (int, error) { return 0, errors.New("boom") }
	ok := func(_ context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerClosed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerOpen, b.State())

	_, err := Call(context.Background(), b, ok)
	assert.True(t, errors.Is(err, ErrBreakerOpen))

	now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Failed probe reopens.
	_, err = Call(context.Background(), b, fail)
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(time.Minute)
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestGuard_RunCountsOneResultPerCall(t *testing.T) {
	g := NewGuard(fastRetry(), BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	calls := 0
	got, err := Run(context.Background(), g, "openai", "complete", func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, BreakerClosed, g.States()["openai"])

	_, err = Run(context.Background(), g, "openai", "complete", func(_ context.Context) (string, error) {
		return "", errors.New("invalid key")
	})
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, g.States()["openai"])

	_, err = Run(context.Background(), g, "openai", "complete", func(_ context.Context) (string, error) {
		t.Fatal("called through an open breaker")
		return "", nil
	})
	assert.True(t, errors.Is(err, ErrBreakerOpen))
}

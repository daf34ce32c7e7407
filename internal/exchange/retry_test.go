package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tradecap/conf"
)

func testPolicy() *RetryPolicy {
	return NewRetryPolicy(conf.RetryConf{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	})
}

func TestRetryTransientThenSuccess(t *testing.T) {
	p := testPolicy()
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("boom: %w", ErrTransient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	p := testPolicy()
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("boom %d: %w", calls, ErrTransient)
	})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

// 不可重试的错误立即返回
func TestRetryPermanentError(t *testing.T) {
	p := testPolicy()
	calls := 0
	permanent := errors.New("bad request")
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error must not retry, got %d calls", calls)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	p := testPolicy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func() error {
		return fmt.Errorf("boom: %w", ErrTransient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

package exchange

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"tradecap/conf"
)

// RetryPolicy 指数退避重试，只对可重试错误生效。
// 仓位管理器不感知重试次数，只拿到最终结果。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewRetryPolicy(cfg conf.RetryConf) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// Do 执行 fn，可重试错误按 base*2^n 退避后重试。
// 返回的错误聚合了每次尝试的失败原因。
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var errs error
	delay := p.BaseDelay
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, err)
		if !Transient(err) {
			return errs
		}
		if i == attempts-1 {
			break
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		select {
		case <-ctx.Done():
			return multierr.Append(errs, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return errs
}

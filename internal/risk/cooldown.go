package risk

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecap/internal/consts"
)

// 冷却记录：同币种平仓或开仓后的一段时间内不再重复开仓。
// 只在信号被接受时写入，被拒绝的信号不刷新冷却。

type CooldownStore interface {
	Active(ctx context.Context, symbol string) (bool, error)
	Start(ctx context.Context, symbol string, d time.Duration) error
}

// MemoryCooldown 进程内冷却，纸面模式和单测用
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryCooldown) Active(ctx context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.until[symbol]
	if !ok {
		return false, nil
	}
	if m.now().After(t) {
		delete(m.until, symbol)
		return false, nil
	}
	return true, nil
}

func (m *MemoryCooldown) Start(ctx context.Context, symbol string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until[symbol] = m.now().Add(d)
	return nil
}

// RedisCooldown 跨进程冷却，重启后仍然生效
type RedisCooldown struct {
	client *redis.Client
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{client: client}
}

func (r *RedisCooldown) key(symbol string) string {
	return consts.CooldownPrefix + symbol
}

func (r *RedisCooldown) Active(ctx context.Context, symbol string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(symbol)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisCooldown) Start(ctx context.Context, symbol string, d time.Duration) error {
	return r.client.Set(ctx, r.key(symbol), time.Now().Unix(), d).Err()
}

package account

import (
	"errors"
	"sync"
	"time"
)

// 账户资金状态。committed 恒等于所有在持仓位的保证金之和，
// capital 随已实现盈亏浮动，available + committed = capital。

var (
	ErrInsufficient = errors.New("insufficient available capital")
)

type State struct {
	Capital      float64 `json:"capital"`       // 当前权益 = 本金 + 累计已实现盈亏
	Available    float64 `json:"available"`     // 可用资金
	Committed    float64 `json:"committed"`     // 已占用保证金
	RealizedDay  float64 `json:"realized_day"`  // 当日已实现盈亏
	RealizedWeek float64 `json:"realized_week"` // 本周已实现盈亏
	OpenCount    int     `json:"open_count"`    // 在持仓位数
}

type Store struct {
	mu    sync.Mutex
	state State

	dayStart  time.Time // 当日零点
	weekStart time.Time // 本周一零点
	now       func() time.Time
}

func NewStore(capital float64) *Store {
	s := &Store{now: time.Now}
	s.state = State{Capital: capital, Available: capital}
	s.resetWindows(s.now())
	return s
}

// 测试用，注入时钟
func NewStoreWithClock(capital float64, now func() time.Time) *Store {
	s := NewStore(capital)
	s.now = now
	s.resetWindows(now())
	return s
}

func (s *Store) resetWindows(t time.Time) {
	y, m, d := t.Date()
	s.dayStart = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	s.weekStart = s.dayStart.AddDate(0, 0, -(wd - 1))
}

// 自然日/周切换时清零对应窗口，调用方须持锁
func (s *Store) rollover() {
	t := s.now()
	if t.Sub(s.dayStart) >= 24*time.Hour {
		s.state.RealizedDay = 0
		if t.Sub(s.weekStart) >= 7*24*time.Hour {
			s.state.RealizedWeek = 0
		}
		s.resetWindows(t)
	}
}

// Snapshot 返回当前状态副本
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	return s.state
}

// Reserve 原子占用保证金并登记一个仓位。
// 校验和扣减在同一临界区内完成，并发信号不会超占。
func (s *Store) Reserve(notional float64) error {
	if notional <= 0 {
		return errors.New("invalid notional")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Available < notional {
		return ErrInsufficient
	}
	s.state.Available -= notional
	s.state.Committed += notional
	s.state.OpenCount++
	return nil
}

// ReleasePartial 部分平仓后按比例释放保证金
func (s *Store) ReleasePartial(notional float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notional > s.state.Committed {
		notional = s.state.Committed
	}
	s.state.Committed -= notional
	s.state.Available += notional
}

// Release 仓位退出（或入场失败）后释放保证金并注销登记
func (s *Store) Release(notional float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notional > s.state.Committed {
		notional = s.state.Committed
	}
	s.state.Committed -= notional
	s.state.Available += notional
	if s.state.OpenCount > 0 {
		s.state.OpenCount--
	}
}

// ApplyRealized 记入已实现盈亏（可为负），同时滚动日/周窗口。
// 权益跟着变动，后续的仓位规模和亏损限额都按最新权益算。
func (s *Store) ApplyRealized(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	s.state.RealizedDay += pnl
	s.state.RealizedWeek += pnl
	s.state.Available += pnl
	s.state.Capital += pnl
}

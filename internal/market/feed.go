package market

import (
	"context"
	"sync"
	"time"

	"tradecap/internal/model"
)

// Feed 行情快照来源。快照一轮扫描构建一次，评估方只读。
type Feed interface {
	// Snapshot 单币种快照，数据不足时返回错误，调用方跳过该币种
	Snapshot(ctx context.Context, symbol string) (*model.Snapshot, error)
	// Context 大盘上下文（基准币种趋势）
	Context(ctx context.Context) (*model.MarketContext, error)
}

// ClassifyBenchmark 基准币种24小时涨跌 -> 大盘趋势
func ClassifyBenchmark(move float64) model.BenchmarkTrend {
	switch {
	case move > 0.02:
		return model.BenchmarkBullish
	case move < -0.05:
		return model.BenchmarkBearish
	default:
		return model.BenchmarkNeutral
	}
}

// StaticFeed 内存行情，单测和纸面联调用
type StaticFeed struct {
	mu        sync.Mutex
	snapshots map[string]*model.Snapshot
	benchMove float64
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{snapshots: make(map[string]*model.Snapshot)}
}

func (f *StaticFeed) Put(s *model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[s.Symbol] = s
}

func (f *StaticFeed) SetBenchmarkMove(move float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.benchMove = move
}

func (f *StaticFeed) Snapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[symbol]
	if !ok {
		return nil, ErrNoData
	}
	cp := *s
	return &cp, nil
}

func (f *StaticFeed) Context(ctx context.Context) (*model.MarketContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.MarketContext{
		Trend:         ClassifyBenchmark(f.benchMove),
		BenchmarkMove: f.benchMove,
		Timestamp:     time.Now(),
	}, nil
}

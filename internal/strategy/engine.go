package strategy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tradecap/conf"
	"tradecap/internal/consts"
	"tradecap/internal/market"
	"tradecap/internal/model"
	"tradecap/internal/position"
	"tradecap/internal/risk"
	"tradecap/internal/signal"
	"tradecap/pkg/logger"
)

// 调度引擎：扫描、仓位监控、风控巡检三条固定节奏的任务，
// 每类任务同一时刻最多一个实例在跑，上一轮没结束就跳过本轮。

type Engine struct {
	feed market.Feed
	eval *signal.Evaluator
	risk *risk.Engine
	pm   *position.Manager

	// 参数整体替换，各任务每轮取一次快照
	params atomic.Pointer[conf.Params]

	paused    atomic.Bool // 手动暂停准入
	crashHalt atomic.Bool // 大盘熔断暂停准入
	stopped   atomic.Bool // 紧急停止，不再恢复

	scanBusy    atomic.Bool
	monitorBusy atomic.Bool
	riskBusy    atomic.Bool

	// 开仓并发上限
	openSem chan struct{}
	wg      sync.WaitGroup
}

func NewEngine(feed market.Feed, eval *signal.Evaluator, riskEngine *risk.Engine, pm *position.Manager, p conf.Params) *Engine {
	e := &Engine{
		feed:    feed,
		eval:    eval,
		risk:    riskEngine,
		pm:      pm,
		openSem: make(chan struct{}, 3),
	}
	e.params.Store(&p)
	return e
}

// Params 当前参数快照
func (e *Engine) Params() conf.Params {
	return *e.params.Load()
}

// UpdateParams 热更新，整体替换，进行中的一轮继续用旧值
func (e *Engine) UpdateParams(p conf.Params) {
	p.FillDefaults()
	e.params.Store(&p)
	logger.Info("params updated")
}

// Run 启动三条定时任务，阻塞到ctx取消
func (e *Engine) Run(ctx context.Context) {
	p := e.Params()
	scanT := time.NewTicker(p.ScanInterval)
	monitorT := time.NewTicker(p.MonitorInterval)
	riskT := time.NewTicker(p.RiskCheckInterval)
	defer scanT.Stop()
	defer monitorT.Stop()
	defer riskT.Stop()

	logger.Info("engine running",
		logger.Pair("symbols", p.Symbols),
		logger.Pair("scan", p.ScanInterval.String()),
		logger.Pair("monitor", p.MonitorInterval.String()))

	// 启动先跑一轮扫描
	e.ScanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return
		case <-scanT.C:
			e.ScanOnce(ctx)
		case <-monitorT.C:
			e.MonitorOnce(ctx)
		case <-riskT.C:
			e.RiskCheckOnce(ctx)
		}
	}
}

// AdmissionOpen 是否接受新信号
func (e *Engine) AdmissionOpen() bool {
	return !e.paused.Load() && !e.crashHalt.Load() && !e.stopped.Load()
}

// Pause 暂停准入，在持仓位继续被监控
func (e *Engine) Pause() {
	e.paused.Store(true)
	logger.Info("admission paused")
}

func (e *Engine) Resume() {
	e.paused.Store(false)
	logger.Info("admission resumed")
}

// EmergencyStop 紧急停止：停止准入，可选强制平掉全部仓位。
// 进行中的tick自然结束，之后引擎只监控不再开仓。
func (e *Engine) EmergencyStop(ctx context.Context, closeAll bool) {
	e.stopped.Store(true)
	logger.Warn("emergency stop", logger.Pair("close_all", closeAll))
	e.wg.Wait()
	if closeAll {
		e.pm.ForceCloseAll(ctx, consts.ExitReasonEmergency)
	}
}

func (e *Engine) Stopped() bool {
	return e.stopped.Load()
}

// ScanOnce 一轮扫描：快照 -> 评估 -> 准入 -> 开仓
func (e *Engine) ScanOnce(ctx context.Context) {
	if !e.scanBusy.CompareAndSwap(false, true) {
		logger.Warn("scan still running, skip this round")
		return
	}
	defer e.scanBusy.Store(false)

	p := e.Params()

	mctx, err := e.feed.Context(ctx)
	if err != nil {
		logger.Warn("benchmark context unavailable", logger.Pair("err", err.Error()))
		mctx = nil
	}
	e.checkCrash(mctx, p)

	if !e.AdmissionOpen() {
		return
	}

	for _, symbol := range p.Symbols {
		if e.pm.HasOpen(symbol) {
			continue
		}
		snap, err := e.feed.Snapshot(ctx, symbol)
		if err != nil {
			// 数据不足跳过该币种，不是故障
			logger.Debug("snapshot unavailable", logger.Pair("symbol", symbol))
			continue
		}
		sig := e.eval.Evaluate(snap, mctx, p)
		if sig == nil {
			continue
		}

		order, err := e.risk.Admit(ctx, sig, snap, p)
		if err != nil {
			var rej *model.Rejection
			if errors.As(err, &rej) {
				logger.Info("signal rejected",
					logger.Pair("symbol", rej.Symbol), logger.Pair("reason", rej.Reason))
			} else {
				logger.Warn("admit failed", logger.Pair("symbol", symbol), logger.Pair("err", err.Error()))
			}
			continue
		}

		// 开仓走网关可能比较慢，放后台并限制并发
		e.wg.Add(1)
		e.openSem <- struct{}{}
		go func(order *model.SizedOrder) {
			defer e.wg.Done()
			defer func() { <-e.openSem }()
			if _, err := e.pm.Open(ctx, order, p); err != nil {
				logger.Warn("open failed",
					logger.Pair("symbol", order.Symbol), logger.Pair("err", err.Error()))
			}
		}(order)
	}
}

// MonitorOnce 一轮仓位监控
func (e *Engine) MonitorOnce(ctx context.Context) {
	if !e.monitorBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.monitorBusy.Store(false)
	e.pm.TickAll(ctx, e.Params())
}

// RiskCheckOnce 账户级巡检：熔断状态和卡死仓位
func (e *Engine) RiskCheckOnce(ctx context.Context) {
	if !e.riskBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.riskBusy.Store(false)

	p := e.Params()
	mctx, err := e.feed.Context(ctx)
	if err == nil {
		e.checkCrash(mctx, p)
	}

	if stuck := e.pm.ListStuck(); len(stuck) > 0 {
		for _, s := range stuck {
			logger.Warn("stuck position needs manual attention",
				logger.Pair("symbol", s.Symbol), logger.Pair("note", s.StuckNote))
		}
	}
}

// checkCrash 基准币种急跌时暂停准入，绝不自动清仓；
// 行情恢复后自动解除。
func (e *Engine) checkCrash(mctx *model.MarketContext, p conf.Params) {
	if mctx == nil {
		return
	}
	if mctx.BenchmarkMove <= p.CrashThreshold {
		if e.crashHalt.CompareAndSwap(false, true) {
			logger.Warn("benchmark crash, admission suspended",
				logger.Pair("move", mctx.BenchmarkMove))
		}
		return
	}
	if e.crashHalt.CompareAndSwap(true, false) {
		logger.Info("benchmark recovered, admission restored",
			logger.Pair("move", mctx.BenchmarkMove))
	}
}

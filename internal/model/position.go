package model

import "time"

// PositionStatus 仓位生命周期状态
type PositionStatus string

const (
	PositionPending         PositionStatus = "pending"          // 入场单已提交，等待成交确认
	PositionOpen            PositionStatus = "open"             // 已成交且保护单齐备
	PositionPartiallyClosed PositionStatus = "partially_closed" // 部分止盈后剩余仓位
	PositionClosed          PositionStatus = "closed"           // 已全部退出
	PositionFailed          PositionStatus = "failed"           // 入场失败，未持仓
	PositionStuck           PositionStatus = "stuck"            // 状态不一致，冻结待人工处理
)

// TakeProfitTarget 阶梯止盈目标
type TakeProfitTarget struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"` // 触发时平掉的比例（相对初始数量）
	Filled   bool    `json:"filled"`
}

// TrailingState 移动止损状态，只收紧不放松
type TrailingState struct {
	Armed      bool    `json:"armed"`
	ExtremePx  float64 `json:"extreme_px"` // 开仓以来最有利价格
	TrailPrice float64 `json:"trail_price"`
}

// Position 单币种唯一的持仓
type Position struct {
	Id        int64   `json:"id"` // snowflake
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Status    PositionStatus `json:"status"`
	Entry     float64 `json:"entry"`     // 成交均价
	Quantity  float64 `json:"quantity"`  // 剩余数量
	InitQty   float64 `json:"init_qty"`  // 初始数量
	Leverage  int     `json:"leverage"`
	Notional  float64 `json:"notional"`      // 当前占用保证金
	InitNotional float64 `json:"init_notional"` // 开仓时占用的保证金
	StopLoss  float64 `json:"stop_loss"`
	Targets   []TakeProfitTarget `json:"targets"`
	Trailing  TrailingState      `json:"trailing"`
	EntryId   string  `json:"entry_id"` // 入场单id
	StopId    string  `json:"stop_id"`  // 止损单id
	TpId      string  `json:"tp_id"`    // 交易所侧第一档止盈单id
	Confidence float64           `json:"confidence"`
	Rationale  []RationaleEntry  `json:"rationale"`
	Realized   float64           `json:"realized"` // 本仓位已实现盈亏
	Fees       float64           `json:"fees"`
	OpenedAt   time.Time         `json:"opened_at"`
	ExitPrice  float64           `json:"exit_price"`
	ExitReason string            `json:"exit_reason"`
	ClosedAt   time.Time         `json:"closed_at"`
	StuckNote  string            `json:"stuck_note,omitempty"`
}

// Live 是否仍有持仓
func (p *Position) Live() bool {
	return p.Status == PositionOpen || p.Status == PositionPartiallyClosed
}

// UnrealizedPnl 按最新价估算浮动盈亏
func (p *Position) UnrealizedPnl(lastPrice float64) float64 {
	if !p.Live() || lastPrice <= 0 {
		return 0
	}
	if p.Side == SideLong {
		return (lastPrice - p.Entry) * p.Quantity
	}
	return (p.Entry - lastPrice) * p.Quantity
}

// RemainingTargetFraction 未触发止盈的总比例
func (p *Position) RemainingTargetFraction() float64 {
	var sum float64
	for _, t := range p.Targets {
		if !t.Filled {
			sum += t.Fraction
		}
	}
	return sum
}

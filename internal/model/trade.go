package model

import "time"

// CompletedTrade 仓位完全退出后的成交记录
type CompletedTrade struct {
	TradeId    int64            `json:"trade_id"`
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Entry      float64          `json:"entry"`
	Exit       float64          `json:"exit"`
	Quantity   float64          `json:"quantity"` // 初始数量
	Notional   float64          `json:"notional"`
	Leverage   int              `json:"leverage"`
	GrossPnl   float64          `json:"gross_pnl"`
	Fees       float64          `json:"fees"`
	NetPnl     float64          `json:"net_pnl"`
	ExitReason string           `json:"exit_reason"`
	Confidence float64          `json:"confidence"`
	Rationale  []RationaleEntry `json:"rationale"`
	OpenedAt   time.Time        `json:"opened_at"`
	ClosedAt   time.Time        `json:"closed_at"`
	Duration   time.Duration    `json:"duration"`
}

package model

import "time"

// SizedOrder 风控放行后的下单指令
type SizedOrder struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`    // 期望成交价
	Quantity   float64   `json:"quantity"` // 币数量
	Notional   float64   `json:"notional"` // 占用保证金(USDT)
	Leverage   int       `json:"leverage"`
	Fraction   float64   `json:"fraction"` // 占本金比例
	Atr        float64   `json:"atr"`      // 评估时的ATR，止损定价用
	Confidence float64   `json:"confidence"`
	Rationale  []RationaleEntry `json:"rationale"`
	CreatedAt  time.Time `json:"created_at"`
}

// FillState 订单成交状态
type FillState string

const (
	FillPending  FillState = "pending"
	FillFilled   FillState = "filled"
	FillPartial  FillState = "partial"
	FillCanceled FillState = "canceled"
	FillUnknown  FillState = "unknown"
)

// OrderResult 网关返回的下单结果
type OrderResult struct {
	OrderId   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	State     FillState `json:"state"`
	AvgPrice  float64   `json:"avg_price"` // 实际成交均价
	FilledQty float64   `json:"filled_qty"`
	Fee       float64   `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

package model

import "time"

// Side 仓位方向
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// RationaleEntry 置信度构成里的一项依据
type RationaleEntry struct {
	Metric string  `json:"metric"` // 命中的指标
	Weight float64 `json:"weight"` // 贡献的权重
}

// Signal 评估产物，生成后不可修改，只被风控消费一次
type Signal struct {
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Confidence float64          `json:"confidence"` // [0,1]
	Price      float64          `json:"price"`      // 触发时的价格
	Rationale  []RationaleEntry `json:"rationale"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Rejection 风控拒绝，属于预期结果而非故障
type Rejection struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

func (r *Rejection) Error() string {
	return "signal rejected: " + r.Symbol + ": " + r.Reason
}

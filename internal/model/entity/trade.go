package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TradeRecord 映射数据库中的 trade_records 表。
// 仓位完全退出后写入一条，是绩效统计的唯一事实来源。
type TradeRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	TradeId int64  `gorm:"column:trade_id;not null;unique"` // snowflake
	Symbol  string `gorm:"type:varchar(30);not null;index:idx_symbol_closed"`
	Side    string `gorm:"type:varchar(10);not null"` // long/short

	EntryPrice float64 `gorm:"column:entry_price;type:decimal(18,8);not null"`
	ExitPrice  float64 `gorm:"column:exit_price;type:decimal(18,8);not null"`
	Quantity   float64 `gorm:"type:decimal(18,8);not null"`
	Notional   float64 `gorm:"type:decimal(18,4);not null"`
	Leverage   int     `gorm:"not null"`

	GrossPnl float64 `gorm:"column:gross_pnl;type:decimal(18,4);not null"`
	Fees     float64 `gorm:"type:decimal(18,4);not null"`
	NetPnl   float64 `gorm:"column:net_pnl;type:decimal(18,4);not null;index:idx_net_pnl"`

	ExitReason string  `gorm:"column:exit_reason;type:varchar(20);not null"`
	Confidence float64 `gorm:"type:decimal(5,4);not null"`

	// 信号依据，保留评估时的指标与权重
	Rationale datatypes.JSON `gorm:"column:rationale;type:json"`

	OpenedAt  time.Time `gorm:"column:opened_at;type:timestamp;not null"`
	ClosedAt  time.Time `gorm:"column:closed_at;type:timestamp;not null;index:idx_symbol_closed"`
	DurationS int64     `gorm:"column:duration_s;not null"` // 持仓时长(秒)

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

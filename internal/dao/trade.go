package dao

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"tradecap/internal/model"
	"tradecap/internal/model/entity"
)

type TradeDao struct {
	db *gorm.DB
}

func NewTradeDao(db *gorm.DB) *TradeDao {
	return &TradeDao{db: db}
}

// 插入成交记录
func (d *TradeDao) InsertTrade(ctx context.Context, t *model.CompletedTrade) error {
	rationale, err := json.Marshal(t.Rationale)
	if err != nil {
		return err
	}
	record := &entity.TradeRecord{
		TradeId:    t.TradeId,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		EntryPrice: t.Entry,
		ExitPrice:  t.Exit,
		Quantity:   t.Quantity,
		Notional:   t.Notional,
		Leverage:   t.Leverage,
		GrossPnl:   t.GrossPnl,
		Fees:       t.Fees,
		NetPnl:     t.NetPnl,
		ExitReason: t.ExitReason,
		Confidence: t.Confidence,
		Rationale:  rationale,
		OpenedAt:   t.OpenedAt,
		ClosedAt:   t.ClosedAt,
		DurationS:  int64(t.Duration / time.Second),
	}
	return d.db.WithContext(ctx).Create(record).Error
}

// 查找某币种最近的成交记录
func (d *TradeDao) TradesGetRecent(ctx context.Context, symbol string, limit int) (list []entity.TradeRecord, err error) {
	q := d.db.WithContext(ctx).Model(&entity.TradeRecord{}).
		Order("closed_at DESC").
		Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	err = q.Find(&list).Error
	return
}

// 统计一段时间内的已实现净盈亏
func (d *TradeDao) NetPnlSince(ctx context.Context, since time.Time) (total float64, err error) {
	err = d.db.WithContext(ctx).Model(&entity.TradeRecord{}).
		Where("closed_at >= ?", since).
		Select("COALESCE(SUM(net_pnl), 0)").
		Scan(&total).Error
	return
}

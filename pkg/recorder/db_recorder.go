package recorder

import (
	"context"

	"tradecap/internal/dao"
	"tradecap/internal/model"
)

// 数据库出口
type DBRecorder struct {
	dao *dao.TradeDao
}

func NewDBRecorder(d *dao.TradeDao) *DBRecorder {
	return &DBRecorder{dao: d}
}

func (r *DBRecorder) Record(ctx context.Context, trade *model.CompletedTrade) error {
	return r.dao.InsertTrade(ctx, trade)
}

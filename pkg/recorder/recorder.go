package recorder

import (
	"context"

	"tradecap/internal/model"
	"tradecap/pkg/logger"
)

// TradeSink 成交记录出口。落盘失败不影响交易流程，只记日志。
type TradeSink interface {
	Record(ctx context.Context, trade *model.CompletedTrade) error
}

// MultiSink 把一条记录扇出到多个出口
type MultiSink struct {
	sinks []TradeSink
}

func NewMultiSink(sinks ...TradeSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(ctx context.Context, trade *model.CompletedTrade) error {
	for _, s := range m.sinks {
		if err := s.Record(ctx, trade); err != nil {
			logger.Warn("trade sink failed",
				logger.Pair("symbol", trade.Symbol),
				logger.Pair("err", err.Error()))
		}
	}
	return nil
}

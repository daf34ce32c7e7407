package exchange

import (
	"context"
	"errors"

	"tradecap/internal/model"
)

// 抽象网关：订单提交、保护单、状态查询、兜底平仓。
// 上层只关心语义结果，重试和退避由 RetryPolicy 负责。

var (
	ErrOrderNotFound = errors.New("order not found")
	// Transient 标记可重试的网关错误
	ErrTransient = errors.New("transient gateway error")
)

type Gateway interface {
	// 提交市价入场单
	PlaceEntry(ctx context.Context, order *model.SizedOrder) (*model.OrderResult, error)
	// 挂止损单，返回订单id
	PlaceStopLoss(ctx context.Context, symbol string, side model.Side, qty, stopPrice float64) (string, error)
	// 挂限价止盈单
	PlaceTakeProfit(ctx context.Context, symbol string, side model.Side, qty, price float64) (string, error)
	// 撤单
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// 查询订单成交状态，用于超时后的对账
	QueryFillStatus(ctx context.Context, symbol, orderID string) (*model.OrderResult, error)
	// 市价平掉指定数量（qty<=0 表示全平）
	ClosePositionMarket(ctx context.Context, symbol string, side model.Side, qty float64) (*model.OrderResult, error)
	// 最新成交价
	LastPrice(symbol string) (float64, error)
}

// Transient 判断错误是否可重试
func Transient(err error) bool {
	return errors.Is(err, ErrTransient)
}

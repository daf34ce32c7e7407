package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gm "github.com/nntaoli-project/goex/v2/model"
)

// Kline 行情K线
type Kline struct {
	Timestamp time.Time
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Vol       float64
}

// GetKlineRecords 拉取K线，走和下单相同的重试策略
func (g *OkxGateway) GetKlineRecords(ctx context.Context, symbol string, period gm.KlinePeriod, size int) ([]Kline, error) {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}

	var opts []gm.OptionParameter
	if size > 0 {
		opts = append(opts, gm.OptionParameter{Key: "limit", Value: strconv.Itoa(size)})
	}

	var raw []gm.Kline
	err = g.retry.Do(ctx, func() error {
		var e error
		raw, _, e = g.pub.GetKline(pair, period, opts...)
		if e != nil {
			return fmt.Errorf("%w: get kline: %v", ErrTransient, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]Kline, 0, len(raw))
	for _, item := range raw {
		items = append(items, Kline{
			Timestamp: time.UnixMilli(item.Timestamp),
			Open:      item.Open,
			Close:     item.Close,
			High:      item.High,
			Low:       item.Low,
			Vol:       item.Vol,
		})
	}
	return items, nil
}

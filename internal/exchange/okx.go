package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	goexv2 "github.com/nntaoli-project/goex/v2"
	gm "github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/okx/futures"
	"github.com/nntaoli-project/goex/v2/options"

	"tradecap/conf"
	"tradecap/internal/model"
	"tradecap/pkg/logger"
)

// OKX 永续合约网关，统一走USDT本位逐仓
type OkxGateway struct {
	pub   *futures.Swap
	prv   *futures.PrvApi
	retry *RetryPolicy
}

// okxv5 api 如果要使用模拟交易，需要切换到模拟交易下创建apikey
func NewOkxGateway(cfg conf.Okx, retry *RetryPolicy) (*OkxGateway, error) {
	opts := []options.ApiOption{
		options.WithApiKey(cfg.ApiKey),
		options.WithApiSecretKey(cfg.SecretKey),
		options.WithPassphrase(cfg.Password),
	}
	pub := goexv2.OKx.Swap
	prv := pub.NewPrvApi(opts...)
	if retry == nil {
		retry = NewRetryPolicy(conf.RetryConf{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second})
	}

	// 测试连接，创建订单时需要调用GetExchangeInfo获取pair
	if _, _, err := pub.GetExchangeInfo(); err != nil {
		return nil, fmt.Errorf("okx GetExchangeInfo: %w", err)
	}
	return &OkxGateway{pub: pub, prv: prv, retry: retry}, nil
}

// symbol 格式转换: "BTC/USDT" -> goex 需要的 CurrencyPair
func (g *OkxGateway) toCurrencyPair(symbol string) (gm.CurrencyPair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 { // 防止BTC-USDT-SWAP
		parts = strings.Split(symbol, "-")
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return g.pub.NewCurrencyPair(parts[0], parts[1])
}

func (g *OkxGateway) PlaceEntry(ctx context.Context, order *model.SizedOrder) (*model.OrderResult, error) {
	pair, err := g.toCurrencyPair(order.Symbol)
	if err != nil {
		return nil, err
	}

	var side gm.OrderSide
	var posSide string
	switch order.Side {
	case model.SideLong:
		side = gm.Futures_OpenBuy
		posSide = "long"
	case model.SideShort:
		side = gm.Futures_OpenSell
		posSide = "short"
	default:
		return nil, errors.New("invalid order side")
	}

	// 统一使用逐仓模式
	if err := g.setLeverage(pair.Symbol, order.Leverage, posSide); err != nil {
		return nil, fmt.Errorf("%w: set leverage: %v", ErrTransient, err)
	}

	opts := []gm.OptionParameter{
		{Key: "tdMode", Value: "isolated"},
		{Key: "posSide", Value: posSide},
	}

	created, _, err := g.prv.CreateOrder(pair, order.Quantity, 0, side, gm.OrderType_Market, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrTransient, err)
	}

	// 市价单通常立即成交，但以QueryFillStatus的对账结果为准
	return &model.OrderResult{
		OrderId: created.Id,
		Symbol:  order.Symbol,
		State:   model.FillPending,
	}, nil
}

// 止盈止损走okx v5算法单接口
func (g *OkxGateway) placeAlgoOrder(symbol string, side model.Side, qty float64, params map[string]string) (string, error) {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return "", err
	}

	// 平仓方向与持仓相反
	orderSide := "sell"
	posSide := "long"
	if side == model.SideShort {
		orderSide = "buy"
		posSide = "short"
	}

	reqUrl := fmt.Sprintf("%s%s", g.prv.UriOpts.Endpoint, "/api/v5/trade/order-algo")
	values := url.Values{}
	values.Set("instId", pair.Symbol)
	values.Set("tdMode", "isolated")
	values.Set("side", orderSide)
	values.Set("posSide", posSide)
	values.Set("sz", strconv.FormatFloat(qty, 'f', -1, 64))
	for k, v := range params {
		values.Set(k, v)
	}

	_, resp, err := g.prv.DoAuthRequest(http.MethodPost, reqUrl, &values, nil)
	if err != nil {
		logger.Warn("okx algo order failed", logger.Pair("symbol", symbol), logger.Pair("resp", string(resp)))
		return "", fmt.Errorf("%w: algo order: %v", ErrTransient, err)
	}

	var body struct {
		Code string `json:"code"`
		Data []struct {
			AlgoId string `json:"algoId"`
		} `json:"data"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(resp, &body); err != nil {
		return "", err
	}
	if body.Code != "0" || len(body.Data) == 0 {
		return "", fmt.Errorf("okx algo order rejected: %s", body.Msg)
	}
	return body.Data[0].AlgoId, nil
}

func (g *OkxGateway) PlaceStopLoss(ctx context.Context, symbol string, side model.Side, qty, stopPrice float64) (string, error) {
	px := strconv.FormatFloat(stopPrice, 'f', -1, 64)
	return g.placeAlgoOrder(symbol, side, qty, map[string]string{
		"ordType":     "conditional",
		"slTriggerPx": px,
		"slOrdPx":     "-1", // -1 表示市价止损
	})
}

func (g *OkxGateway) PlaceTakeProfit(ctx context.Context, symbol string, side model.Side, qty, price float64) (string, error) {
	px := strconv.FormatFloat(price, 'f', -1, 64)
	return g.placeAlgoOrder(symbol, side, qty, map[string]string{
		"ordType":     "conditional",
		"tpTriggerPx": px,
		"tpOrdPx":     "-1", // -1 表示市价止盈
	})
}

func (g *OkxGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return err
	}
	_, err = g.prv.CancelOrder(pair, orderID)
	return err
}

func (g *OkxGateway) QueryFillStatus(ctx context.Context, symbol, orderID string) (*model.OrderResult, error) {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}
	info, _, err := g.prv.GetOrderInfo(pair, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order info: %v", ErrTransient, err)
	}
	if info == nil {
		return nil, ErrOrderNotFound
	}

	state := model.FillUnknown
	switch s := strings.ToLower(info.Status.String()); {
	case strings.Contains(s, "finish"), strings.Contains(s, "fill"):
		state = model.FillFilled
		if info.ExecutedQty < info.Qty {
			state = model.FillPartial
		}
	case strings.Contains(s, "cancel"):
		state = model.FillCanceled
	case strings.Contains(s, "pend"), strings.Contains(s, "live"):
		state = model.FillPending
	}

	return &model.OrderResult{
		OrderId:   info.Id,
		Symbol:    symbol,
		State:     state,
		AvgPrice:  info.PriceAvg,
		FilledQty: info.ExecutedQty,
		Fee:       info.Fee,
	}, nil
}

func (g *OkxGateway) ClosePositionMarket(ctx context.Context, symbol string, side model.Side, qty float64) (*model.OrderResult, error) {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}

	// 如果是多仓 -> 需要卖出来平仓；空仓反之
	var orderSide gm.OrderSide
	switch side {
	case model.SideLong:
		orderSide = gm.Futures_CloseBuy
	case model.SideShort:
		orderSide = gm.Futures_CloseSell
	default:
		return nil, fmt.Errorf("unknown side: %s", side)
	}

	opts := []gm.OptionParameter{
		{Key: "tdMode", Value: "isolated"},
	}
	created, resp, err := g.prv.CreateOrder(pair, qty, 0, orderSide, gm.OrderType_Market, opts...)
	if err != nil {
		logger.Warn("okx close position failed", logger.Pair("symbol", symbol), logger.Pair("resp", string(resp)))
		return nil, fmt.Errorf("%w: close position: %v", ErrTransient, err)
	}
	return &model.OrderResult{
		OrderId: created.Id,
		Symbol:  symbol,
		State:   model.FillPending,
	}, nil
}

func (g *OkxGateway) LastPrice(symbol string) (float64, error) {
	pair, err := g.toCurrencyPair(symbol)
	if err != nil {
		return 0, err
	}
	ticker, _, _ := g.pub.GetTicker(pair)
	if ticker == nil {
		return 0, errors.New("failed to get ticker")
	}
	return ticker.Last, nil
}

func (g *OkxGateway) setLeverage(instId string, leverage int, posSide string) error {
	opts := []gm.OptionParameter{
		{Key: "mgnMode", Value: "isolated"},
		{Key: "posSide", Value: posSide},
	}
	_, err := g.prv.SetLeverage(instId, strconv.Itoa(leverage), opts...)
	return err
}

package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecap/internal/model"
)

// 模拟网关，本地联调和纸面交易用
type SimulatedGateway struct {
	mu     sync.Mutex
	orders map[string]*model.OrderResult
	prices map[string]float64

	slippage  float64 // 成交滑点比例
	fluctuate bool    // 是否模拟价格波动

	// 注入故障，测试重试和强制平仓路径
	failNext map[string]int // 操作名 -> 剩余失败次数
	// 下一笔入场单只成交这么多数量，0表示全部成交
	partialQty float64
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		orders:    make(map[string]*model.OrderResult),
		prices:    make(map[string]float64),
		failNext:  make(map[string]int),
		slippage:  0.001,
		fluctuate: true,
	}
}

// 设置初始价格
func (s *SimulatedGateway) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// FreezePrices 关闭随机波动，单测里可控
func (s *SimulatedGateway) FreezePrices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fluctuate = false
}

// PartialFillNext 下一笔入场单只成交 qty，剩余保持挂单状态
func (s *SimulatedGateway) PartialFillNext(qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partialQty = qty
}

// FailNext 指定操作接下来 n 次返回可重试错误
func (s *SimulatedGateway) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = n
}

func (s *SimulatedGateway) shouldFail(op string) bool {
	if n := s.failNext[op]; n > 0 {
		s.failNext[op] = n - 1
		return true
	}
	return false
}

func (s *SimulatedGateway) PlaceEntry(ctx context.Context, order *model.SizedOrder) (*model.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldFail("PlaceEntry") {
		return nil, fmt.Errorf("simulated entry failure: %w", ErrTransient)
	}

	price, ok := s.prices[order.Symbol]
	if !ok {
		price = order.Price
		s.prices[order.Symbol] = price
	}
	// 市价单按滑点成交
	fill := price * (1 + s.slippage)
	if order.Side == model.SideShort {
		fill = price * (1 - s.slippage)
	}

	state := model.FillFilled
	qty := order.Quantity
	if s.partialQty > 0 && s.partialQty < order.Quantity {
		state = model.FillPartial
		qty = s.partialQty
		s.partialQty = 0
	}

	result := &model.OrderResult{
		OrderId:   uuid.NewString(),
		Symbol:    order.Symbol,
		State:     state,
		AvgPrice:  fill,
		FilledQty: qty,
		Fee:       fill * qty * 0.0005,
		Timestamp: time.Now(),
	}
	s.orders[result.OrderId] = result
	return result, nil
}

func (s *SimulatedGateway) PlaceStopLoss(ctx context.Context, symbol string, side model.Side, qty, stopPrice float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldFail("PlaceStopLoss") {
		return "", fmt.Errorf("simulated stop-loss failure: %w", ErrTransient)
	}

	id := uuid.NewString()
	s.orders[id] = &model.OrderResult{
		OrderId:   id,
		Symbol:    symbol,
		State:     model.FillPending,
		Timestamp: time.Now(),
	}
	return id, nil
}

func (s *SimulatedGateway) PlaceTakeProfit(ctx context.Context, symbol string, side model.Side, qty, price float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldFail("PlaceTakeProfit") {
		return "", fmt.Errorf("simulated take-profit failure: %w", ErrTransient)
	}

	id := uuid.NewString()
	s.orders[id] = &model.OrderResult{
		OrderId:   id,
		Symbol:    symbol,
		State:     model.FillPending,
		Timestamp: time.Now(),
	}
	return id, nil
}

func (s *SimulatedGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return ErrOrderNotFound
	}
	delete(s.orders, orderID)
	return nil
}

func (s *SimulatedGateway) QueryFillStatus(ctx context.Context, symbol, orderID string) (*model.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return result, nil
}

func (s *SimulatedGateway) ClosePositionMarket(ctx context.Context, symbol string, side model.Side, qty float64) (*model.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldFail("ClosePositionMarket") {
		return nil, fmt.Errorf("simulated close failure: %w", ErrTransient)
	}

	price := s.prices[symbol]
	// 平仓方向与持仓相反，滑点反向
	fill := price * (1 - s.slippage)
	if side == model.SideShort {
		fill = price * (1 + s.slippage)
	}
	return &model.OrderResult{
		OrderId:   uuid.NewString(),
		Symbol:    symbol,
		State:     model.FillFilled,
		AvgPrice:  fill,
		FilledQty: qty,
		Fee:       fill * qty * 0.0005,
		Timestamp: time.Now(),
	}, nil
}

// 模拟版，返回本地价格并做小幅浮动，适合本地联调
func (s *SimulatedGateway) LastPrice(symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		// 如果没有初始化，随机一个价格并记录
		price = 10000 + rand.Float64()*2000
		s.prices[symbol] = price
	}

	if s.fluctuate {
		// 模拟价格波动 ±0.5%
		fluctuation := (rand.Float64()*0.01 - 0.005) * price
		price += fluctuation
		s.prices[symbol] = price
	}
	return price, nil
}

package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

// FillResolver 成交均价回填器
//
// 优先用订单关联成交直接匹配；关联列表缺失时按 taker/maker 订单 ID
// 兜底扫描市场成交。任何查询失败都退化为限价，不向上冒错
type FillResolver struct {
	gateway   domain.ExchangeGateway
	auditRepo domain.OrderEventRepository
	metrics   *metrics.Metrics
}

// NewFillResolver 创建成交均价回填器
func NewFillResolver(gateway domain.ExchangeGateway, auditRepo domain.OrderEventRepository, m *metrics.Metrics) *FillResolver {
	return &FillResolver{
		gateway:   gateway,
		auditRepo: auditRepo,
		metrics:   m,
	}
}

// Resolve 解析订单的实际成交均价
func (r *FillResolver) Resolve(ctx context.Context, orderID, market string, limitPrice decimal.Decimal) *domain.FillPriceResolution {
	resolution := r.resolve(ctx, orderID, market, limitPrice)
	r.metrics.FillResolutions.WithLabelValues(string(resolution.Method)).Inc()
	return resolution
}

// ResolveAndRecord 解析成交均价并回填到审计记录
func (r *FillResolver) ResolveAndRecord(ctx context.Context, intentID, orderID, market string, limitPrice decimal.Decimal) *domain.FillPriceResolution {
	resolution := r.Resolve(ctx, orderID, market, limitPrice)

	if err := r.auditRepo.UpdateFillPrice(ctx, intentID, resolution.FillPrice, resolution.Method); err != nil {
		logger.Error(ctx, "failed to record fill price", "intent_id", intentID, "error", err)
	}

	logger.Info(ctx, "fill price resolved",
		"intent_id", intentID,
		"order_id", orderID,
		"fill_price", resolution.FillPrice,
		"fill_count", resolution.FillCount,
		"method", resolution.Method,
	)
	return resolution
}

func (r *FillResolver) resolve(ctx context.Context, orderID, market string, limitPrice decimal.Decimal) *domain.FillPriceResolution {
	order, err := r.gateway.GetOrder(ctx, orderID)
	if err != nil {
		logger.Warn(ctx, "order lookup failed, falling back to limit price", "order_id", orderID, "error", err)
		return fallback(limitPrice, domain.FillMethodNoMatchingFills)
	}

	if len(order.AssociateTrades) == 0 {
		return fallback(limitPrice, domain.FillMethodNoAssociateTrades)
	}

	// 订单自带的市场标识更可靠，调用方传入的值只作兜底
	if order.Market != "" {
		market = order.Market
	}

	trades, err := r.gateway.GetTrades(ctx, market)
	if err != nil {
		logger.Warn(ctx, "trade lookup failed, falling back to limit price", "market", market, "error", err)
		return fallback(limitPrice, domain.FillMethodNoMatchingFills)
	}

	if fills := matchByTradeID(trades, order.AssociateTrades); len(fills) > 0 {
		if vwap, ok := domain.VWAP(fills); ok {
			return &domain.FillPriceResolution{
				FillPrice: vwap,
				FillCount: len(fills),
				Method:    domain.FillMethodClobTrades,
			}
		}
	}

	if fills := matchByOrderID(trades, orderID); len(fills) > 0 {
		if vwap, ok := domain.VWAP(fills); ok {
			return &domain.FillPriceResolution{
				FillPrice: vwap,
				FillCount: len(fills),
				Method:    domain.FillMethodOrderMatch,
			}
		}
	}

	return fallback(limitPrice, domain.FillMethodNoMatchingFills)
}

func fallback(limitPrice decimal.Decimal, method domain.FillMethod) *domain.FillPriceResolution {
	return &domain.FillPriceResolution{
		FillPrice: limitPrice,
		Method:    method,
	}
}

// matchByTradeID 按关联成交 ID 直接匹配
func matchByTradeID(trades []domain.ClobTrade, associateTrades []string) []domain.Fill {
	wanted := make(map[string]struct{}, len(associateTrades))
	for _, id := range associateTrades {
		wanted[id] = struct{}{}
	}

	var fills []domain.Fill
	for _, tr := range trades {
		if _, ok := wanted[tr.ID]; ok {
			fills = append(fills, domain.Fill{
				TradeID:   tr.ID,
				Price:     tr.Price,
				Size:      tr.Size,
				MatchTime: tr.MatchTime,
			})
		}
	}
	return fills
}

// matchByOrderID 按 taker/maker 订单 ID 兜底匹配
func matchByOrderID(trades []domain.ClobTrade, orderID string) []domain.Fill {
	var fills []domain.Fill
	for _, tr := range trades {
		if !tradeInvolvesOrder(&tr, orderID) {
			continue
		}
		fills = append(fills, domain.Fill{
			TradeID:   tr.ID,
			Price:     tr.Price,
			Size:      tr.Size,
			MatchTime: tr.MatchTime,
		})
	}
	return fills
}

func tradeInvolvesOrder(tr *domain.ClobTrade, orderID string) bool {
	if tr.TakerOrderID == orderID {
		return true
	}
	for _, makerID := range tr.MakerOrderIDs {
		if makerID == orderID {
			return true
		}
	}
	return false
}

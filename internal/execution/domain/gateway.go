package domain

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

// ExchangeGateway 交易所 CLOB 访问接口
type ExchangeGateway interface {
	// GetTickSize 查询市场最小价格步长
	GetTickSize(ctx context.Context, tokenID string) (decimal.Decimal, error)
	// GetOrderBook 拉取订单簿快照
	GetOrderBook(ctx context.Context, tokenID string) (*OrderBook, error)
	// PostOrder 提交已签名订单，返回原始响应体与传输层状态码
	// 响应体的业务判读交给调用方，传输失败时 body 可能为空
	PostOrder(ctx context.Context, order *SignedOrder, orderType OrderType) (body []byte, statusCode int, err error)
	// GetOrder 查询交易所侧订单
	GetOrder(ctx context.Context, orderID string) (*ClobOrder, error)
	// GetTrades 拉取市场成交记录
	GetTrades(ctx context.Context, market string) ([]ClobTrade, error)
}

// OrderSigner 订单签名接口
type OrderSigner interface {
	// SignOrder 对订单做 EIP-712 签名，返回 0x 前缀十六进制签名
	SignOrder(ctx context.Context, order *OrderPayload) (string, error)
}

// EgressRotator 出口代理轮换
// 命中反爬拦截后切换出口，Current 返回 nil 表示直连
type EgressRotator interface {
	Current() *url.URL
	Rotate(ctx context.Context, reason string)
}

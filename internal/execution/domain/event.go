package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventStatus 审计状态机
// attempted 为初始态，终态只能是 submitted 或 rejected 之一
type OrderEventStatus string

const (
	OrderEventAttempted OrderEventStatus = "attempted"
	OrderEventSubmitted OrderEventStatus = "submitted"
	OrderEventRejected  OrderEventStatus = "rejected"
)

// 订单生命周期事件主题
const (
	TopicOrderSubmitted = "execution.order.submitted"
	TopicOrderRejected  = "execution.order.rejected"
)

// OrderEvent 订单提交审计记录
// 每个订单意图恰好一条，重试不产生新记录
type OrderEvent struct {
	ID              uint64
	IntentID        string
	RequestID       string
	UserID          string
	WalletAddress   string
	TokenID         string
	ConditionID     string
	Outcome         string
	Side            OrderSide
	OrderType       OrderType
	InputMode       InputMode
	RawInputUSD     decimal.Decimal
	RawInputSize    decimal.Decimal
	LimitPrice      decimal.Decimal
	Size            decimal.Decimal
	TickSize        decimal.Decimal
	SlippageBps     decimal.Decimal
	BestBid         decimal.Decimal
	BestAsk         decimal.Decimal
	Status          OrderEventStatus
	ExchangeOrderID string
	FillPrice       decimal.Decimal
	FillMethod      string
	HTTPStatus      int
	ErrorKind       string
	ErrorMessage    string
	RawError        string
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderEventRepository 审计记录仓储
type OrderEventRepository interface {
	// CreateAttempt 写入 attempted 初始记录
	CreateAttempt(ctx context.Context, event *OrderEvent) error
	// MarkSubmitted 将记录置为 submitted 并回填交易所订单 ID
	MarkSubmitted(ctx context.Context, intentID, exchangeOrderID string, attempts int) error
	// MarkRejected 将记录置为 rejected 并回填错误信息
	MarkRejected(ctx context.Context, intentID string, eval *OrderEvaluation, attempts int) error
	// UpdateFillPrice 回填成交均价与匹配方式
	UpdateFillPrice(ctx context.Context, intentID string, fillPrice decimal.Decimal, method FillMethod) error
	// FindByIntentID 按意图 ID 查询
	FindByIntentID(ctx context.Context, intentID string) (*OrderEvent, error)
}

// EventPublisher 生命周期事件发布
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

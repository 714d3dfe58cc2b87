// Package mysql 提供订单审计记录的 MySQL 持久化
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
)

// OrderEventModel 订单审计表
type OrderEventModel struct {
	ID              uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	IntentID        string          `gorm:"column:intent_id;type:varchar(64);uniqueIndex;not null"`
	RequestID       string          `gorm:"column:request_id;type:varchar(64);index"`
	UserID          string          `gorm:"column:user_id;type:varchar(64);index;not null"`
	WalletAddress   string          `gorm:"column:wallet_address;type:varchar(64)"`
	TokenID         string          `gorm:"column:token_id;type:varchar(128);index;not null"`
	ConditionID     string          `gorm:"column:condition_id;type:varchar(128)"`
	Outcome         string          `gorm:"column:outcome;type:varchar(32)"`
	Side            string          `gorm:"column:side;type:varchar(8);not null"`
	OrderType       string          `gorm:"column:order_type;type:varchar(8);not null"`
	InputMode       string          `gorm:"column:input_mode;type:varchar(16);not null"`
	RawInputUSD     decimal.Decimal `gorm:"column:raw_input_usd;type:decimal(20,8)"`
	RawInputSize    decimal.Decimal `gorm:"column:raw_input_size;type:decimal(20,8)"`
	LimitPrice      decimal.Decimal `gorm:"column:limit_price;type:decimal(20,8)"`
	Size            decimal.Decimal `gorm:"column:size;type:decimal(20,8)"`
	TickSize        decimal.Decimal `gorm:"column:tick_size;type:decimal(20,8)"`
	SlippageBps     decimal.Decimal `gorm:"column:slippage_bps;type:decimal(10,2)"`
	BestBid         decimal.Decimal `gorm:"column:best_bid;type:decimal(20,8)"`
	BestAsk         decimal.Decimal `gorm:"column:best_ask;type:decimal(20,8)"`
	Status          string          `gorm:"column:status;type:varchar(16);index;not null"`
	ExchangeOrderID string          `gorm:"column:exchange_order_id;type:varchar(128);index"`
	FillPrice       decimal.Decimal `gorm:"column:fill_price;type:decimal(20,8)"`
	FillMethod      string          `gorm:"column:fill_method;type:varchar(32)"`
	HTTPStatus      int             `gorm:"column:http_status"`
	ErrorKind       string          `gorm:"column:error_kind;type:varchar(32)"`
	ErrorMessage    string          `gorm:"column:error_message;type:varchar(512)"`
	RawError        string          `gorm:"column:raw_error;type:text"`
	Attempts        int             `gorm:"column:attempts;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 返回表名
func (OrderEventModel) TableName() string {
	return "order_events"
}

type orderEventRepository struct {
	db *gorm.DB
}

// NewOrderEventRepository 创建并返回一个新的 orderEventRepository 实例。
func NewOrderEventRepository(db *gorm.DB) domain.OrderEventRepository {
	return &orderEventRepository{db: db}
}

func (r *orderEventRepository) CreateAttempt(ctx context.Context, event *domain.OrderEvent) error {
	model := toModel(event)
	model.Status = string(domain.OrderEventAttempted)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create order event: %w", err)
	}
	event.ID = model.ID
	return nil
}

func (r *orderEventRepository) MarkSubmitted(ctx context.Context, intentID, exchangeOrderID string, attempts int) error {
	result := r.db.WithContext(ctx).Model(&OrderEventModel{}).
		Where("intent_id = ? AND status = ?", intentID, string(domain.OrderEventAttempted)).
		Updates(map[string]interface{}{
			"status":            string(domain.OrderEventSubmitted),
			"exchange_order_id": exchangeOrderID,
			"attempts":          attempts,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order submitted: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no attempted order event for intent %s", intentID)
	}
	return nil
}

func (r *orderEventRepository) MarkRejected(ctx context.Context, intentID string, eval *domain.OrderEvaluation, attempts int) error {
	result := r.db.WithContext(ctx).Model(&OrderEventModel{}).
		Where("intent_id = ? AND status = ?", intentID, string(domain.OrderEventAttempted)).
		Updates(map[string]interface{}{
			"status":        string(domain.OrderEventRejected),
			"http_status":   eval.HTTPStatus,
			"error_kind":    string(eval.ErrorKind),
			"error_message": eval.ErrorMessage,
			"raw_error":     eval.Raw,
			"attempts":      attempts,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order rejected: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no attempted order event for intent %s", intentID)
	}
	return nil
}

func (r *orderEventRepository) UpdateFillPrice(ctx context.Context, intentID string, fillPrice decimal.Decimal, method domain.FillMethod) error {
	return r.db.WithContext(ctx).Model(&OrderEventModel{}).
		Where("intent_id = ?", intentID).
		Updates(map[string]interface{}{
			"fill_price":  fillPrice,
			"fill_method": string(method),
		}).Error
}

func (r *orderEventRepository) FindByIntentID(ctx context.Context, intentID string) (*domain.OrderEvent, error) {
	var model OrderEventModel
	if err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toEntity(&model), nil
}

func toModel(e *domain.OrderEvent) *OrderEventModel {
	return &OrderEventModel{
		ID:              e.ID,
		IntentID:        e.IntentID,
		RequestID:       e.RequestID,
		UserID:          e.UserID,
		WalletAddress:   e.WalletAddress,
		TokenID:         e.TokenID,
		ConditionID:     e.ConditionID,
		Outcome:         e.Outcome,
		Side:            string(e.Side),
		OrderType:       string(e.OrderType),
		InputMode:       string(e.InputMode),
		RawInputUSD:     e.RawInputUSD,
		RawInputSize:    e.RawInputSize,
		LimitPrice:      e.LimitPrice,
		Size:            e.Size,
		TickSize:        e.TickSize,
		SlippageBps:     e.SlippageBps,
		BestBid:         e.BestBid,
		BestAsk:         e.BestAsk,
		Status:          string(e.Status),
		ExchangeOrderID: e.ExchangeOrderID,
		FillPrice:       e.FillPrice,
		FillMethod:      e.FillMethod,
		HTTPStatus:      e.HTTPStatus,
		ErrorKind:       e.ErrorKind,
		ErrorMessage:    e.ErrorMessage,
		RawError:        e.RawError,
		Attempts:        e.Attempts,
	}
}

func toEntity(m *OrderEventModel) *domain.OrderEvent {
	return &domain.OrderEvent{
		ID:              m.ID,
		IntentID:        m.IntentID,
		RequestID:       m.RequestID,
		UserID:          m.UserID,
		WalletAddress:   m.WalletAddress,
		TokenID:         m.TokenID,
		ConditionID:     m.ConditionID,
		Outcome:         m.Outcome,
		Side:            domain.OrderSide(m.Side),
		OrderType:       domain.OrderType(m.OrderType),
		InputMode:       domain.InputMode(m.InputMode),
		RawInputUSD:     m.RawInputUSD,
		RawInputSize:    m.RawInputSize,
		LimitPrice:      m.LimitPrice,
		Size:            m.Size,
		TickSize:        m.TickSize,
		SlippageBps:     m.SlippageBps,
		BestBid:         m.BestBid,
		BestAsk:         m.BestAsk,
		Status:          domain.OrderEventStatus(m.Status),
		ExchangeOrderID: m.ExchangeOrderID,
		FillPrice:       m.FillPrice,
		FillMethod:      m.FillMethod,
		HTTPStatus:      m.HTTPStatus,
		ErrorKind:       m.ErrorKind,
		ErrorMessage:    m.ErrorMessage,
		RawError:        m.RawError,
		Attempts:        m.Attempts,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

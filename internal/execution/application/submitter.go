package application

import (
	"context"
	"time"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/metrics"
	"github.com/wyfcoding/copytrading/pkg/utils"
)

// SubmitterConfig 订单提交参数
type SubmitterConfig struct {
	// 单个意图的最大提交次数，仅反爬拦截触发重试
	MaxAttempts int
	// 审计错误描述的最大长度
	ErrorMessageLimit int
}

// SubmitResult 订单提交结果
type SubmitResult struct {
	// 终态，submitted 或 rejected
	Status domain.OrderEventStatus
	// 交易所订单 ID
	OrderID string
	// 实际提交次数
	Attempts int
	// 最后一次响应的判读结果
	Evaluation *domain.OrderEvaluation
}

// OrderSubmitter 订单提交器
//
// 状态机：每个意图写一条 attempted 审计记录，提交后恰好推进到
// submitted 或 rejected 之一。只有反爬拦截会触发重试，重试前轮换
// 出口代理；其余失败立即终止。审计、日志与事件发布失败不影响
// 提交结果。
type OrderSubmitter struct {
	gateway   domain.ExchangeGateway
	rotator   domain.EgressRotator
	auditRepo domain.OrderEventRepository
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
	cfg       SubmitterConfig
}

// NewOrderSubmitter 创建订单提交器
func NewOrderSubmitter(
	gateway domain.ExchangeGateway,
	rotator domain.EgressRotator,
	auditRepo domain.OrderEventRepository,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	cfg SubmitterConfig,
) *OrderSubmitter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.ErrorMessageLimit <= 0 {
		cfg.ErrorMessageLimit = 500
	}
	return &OrderSubmitter{
		gateway:   gateway,
		rotator:   rotator,
		auditRepo: auditRepo,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
	}
}

// Submit 提交已签名订单并推进审计状态机
func (s *OrderSubmitter) Submit(ctx context.Context, intent *domain.OrderIntent, prepared *PreparedOrder) *SubmitResult {
	start := time.Now()

	s.recordAttempt(ctx, intent, prepared)

	var eval *domain.OrderEvaluation
	attempts := 0

	for attempts < s.cfg.MaxAttempts {
		attempts++

		body, statusCode, err := s.gateway.PostOrder(ctx, prepared.Signed, intent.OrderType)
		if err != nil {
			// 传输层失败没有响应体可判读，合成一个业务错误
			eval = &domain.OrderEvaluation{
				ErrorKind:    domain.ErrorKindAPIError,
				ErrorMessage: err.Error(),
				HTTPStatus:   500,
			}
		} else {
			eval = domain.EvaluateOrderResponse(body)
			if eval.HTTPStatus == 0 {
				eval.HTTPStatus = statusCode
			}
		}

		if eval.Success {
			break
		}

		if eval.ErrorKind != domain.ErrorKindBlockedByMitigation {
			break
		}

		s.metrics.MitigationBlocks.Inc()
		logger.Warn(ctx, "order blocked by mitigation",
			"intent_id", intent.IntentID,
			"attempt", attempts,
			"ray_id", eval.RayID,
		)

		if attempts >= s.cfg.MaxAttempts {
			break
		}
		s.rotator.Rotate(ctx, "mitigation block, ray_id="+eval.RayID)
		s.metrics.ProxyRotations.Inc()
	}

	s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())

	if eval.Success {
		s.finishSubmitted(ctx, intent, prepared, eval, attempts)
		return &SubmitResult{
			Status:     domain.OrderEventSubmitted,
			OrderID:    eval.OrderID,
			Attempts:   attempts,
			Evaluation: eval,
		}
	}

	s.finishRejected(ctx, intent, eval, attempts)
	return &SubmitResult{
		Status:     domain.OrderEventRejected,
		Attempts:   attempts,
		Evaluation: eval,
	}
}

// RejectPreparation 为准备阶段失败的意图落审计终态
// 不产生交易所请求，但同样保持 attempted 到 rejected 的状态机轨迹
func (s *OrderSubmitter) RejectPreparation(ctx context.Context, intent *domain.OrderIntent, kind domain.ErrorKind, message string) *SubmitResult {
	s.recordAttempt(ctx, intent, &PreparedOrder{})

	eval := &domain.OrderEvaluation{
		ErrorKind:    kind,
		ErrorMessage: message,
	}
	s.finishRejected(ctx, intent, eval, 0)

	return &SubmitResult{
		Status:     domain.OrderEventRejected,
		Evaluation: eval,
	}
}

// recordAttempt 写入初始审计记录，失败只记日志
func (s *OrderSubmitter) recordAttempt(ctx context.Context, intent *domain.OrderIntent, prepared *PreparedOrder) {
	event := &domain.OrderEvent{
		IntentID:      intent.IntentID,
		UserID:        intent.UserID,
		WalletAddress: intent.WalletAddress,
		TokenID:       intent.TokenID,
		ConditionID:   intent.ConditionID,
		Outcome:       intent.Outcome,
		Side:          intent.Side,
		OrderType:     intent.OrderType,
		InputMode:     intent.InputMode,
		RawInputUSD:   intent.AmountUSD,
		RawInputSize:  intent.Contracts,
		LimitPrice:    prepared.Params.Price,
		Size:          prepared.Params.Size,
		TickSize:      prepared.Params.TickSize,
		SlippageBps:   intent.SlippageBps,
		BestBid:       prepared.BestBid,
		BestAsk:       prepared.BestAsk,
		Status:        domain.OrderEventAttempted,
	}

	if err := s.auditRepo.CreateAttempt(ctx, event); err != nil {
		logger.Error(ctx, "failed to record order attempt", "intent_id", intent.IntentID, "error", err)
	}
}

func (s *OrderSubmitter) finishSubmitted(ctx context.Context, intent *domain.OrderIntent, prepared *PreparedOrder, eval *domain.OrderEvaluation, attempts int) {
	s.metrics.OrdersSubmitted.Inc()

	if err := s.auditRepo.MarkSubmitted(ctx, intent.IntentID, eval.OrderID, attempts); err != nil {
		logger.Error(ctx, "failed to mark order submitted", "intent_id", intent.IntentID, "error", err)
	}

	s.publish(ctx, domain.TopicOrderSubmitted, intent.IntentID, map[string]interface{}{
		"intent_id":         intent.IntentID,
		"user_id":           intent.UserID,
		"token_id":          intent.TokenID,
		"side":              intent.Side,
		"price":             prepared.Params.Price,
		"size":              prepared.Params.Size,
		"exchange_order_id": eval.OrderID,
		"attempts":          attempts,
	})

	logger.Info(ctx, "order submitted",
		"intent_id", intent.IntentID,
		"exchange_order_id", eval.OrderID,
		"attempts", attempts,
	)
}

func (s *OrderSubmitter) finishRejected(ctx context.Context, intent *domain.OrderIntent, eval *domain.OrderEvaluation, attempts int) {
	s.metrics.OrdersRejected.WithLabelValues(string(eval.ErrorKind)).Inc()

	sanitized := *eval
	sanitized.ErrorMessage = utils.Truncate(sanitized.ErrorMessage, s.cfg.ErrorMessageLimit)
	sanitized.Raw = utils.Truncate(sanitized.Raw, s.cfg.ErrorMessageLimit)

	if err := s.auditRepo.MarkRejected(ctx, intent.IntentID, &sanitized, attempts); err != nil {
		logger.Error(ctx, "failed to mark order rejected", "intent_id", intent.IntentID, "error", err)
	}

	s.publish(ctx, domain.TopicOrderRejected, intent.IntentID, map[string]interface{}{
		"intent_id":  intent.IntentID,
		"user_id":    intent.UserID,
		"token_id":   intent.TokenID,
		"error_kind": eval.ErrorKind,
		"error":      sanitized.ErrorMessage,
		"attempts":   attempts,
	})

	logger.Warn(ctx, "order rejected",
		"intent_id", intent.IntentID,
		"error_kind", eval.ErrorKind,
		"http_status", eval.HTTPStatus,
		"attempts", attempts,
	)
}

// publish 发布生命周期事件，失败只记日志
func (s *OrderSubmitter) publish(ctx context.Context, topic, key string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, payload); err != nil {
		logger.Error(ctx, "failed to publish order event", "topic", topic, "key", key, "error", err)
	}
}

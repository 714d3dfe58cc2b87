package application

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/utils"
)

// PlaceOrderCommand 下单命令
// 金额字段使用十进制字符串，解析失败按输入错误处理
type PlaceOrderCommand struct {
	IntentID      string `json:"intent_id"`
	UserID        string `json:"user_id" binding:"required"`
	WalletAddress string `json:"wallet_address"`
	TokenID       string `json:"token_id" binding:"required"`
	ConditionID   string `json:"condition_id"`
	Outcome       string `json:"outcome"`
	Side          string `json:"side" binding:"required"`
	InputMode     string `json:"input_mode" binding:"required"`
	AmountUSD     string `json:"amount_usd"`
	Contracts     string `json:"contracts"`
	LimitPrice    string `json:"limit_price" binding:"required"`
	SlippageBps   string `json:"slippage_bps"`
	OrderType     string `json:"order_type"`
	Expiration    int64  `json:"expiration"`
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	IntentID        string          `json:"intent_id"`
	Status          string          `json:"status"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Size            decimal.Decimal `json:"size"`
	Attempts        int             `json:"attempts"`
	ErrorKind       string          `json:"error_kind,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// ExecutionService 订单执行应用服务
type ExecutionService struct {
	preparer  *OrderPreparer
	submitter *OrderSubmitter
	resolver  *FillResolver
	auditRepo domain.OrderEventRepository
	gateway   domain.ExchangeGateway
	idGen     *utils.SnowflakeID

	// 提交成功后等待撮合落库的时间，再去回填成交价
	fillResolveDelay time.Duration
	fillResolveWait  time.Duration
}

// NewExecutionService 创建订单执行服务
func NewExecutionService(
	preparer *OrderPreparer,
	submitter *OrderSubmitter,
	resolver *FillResolver,
	auditRepo domain.OrderEventRepository,
	gateway domain.ExchangeGateway,
	idGen *utils.SnowflakeID,
) *ExecutionService {
	return &ExecutionService{
		preparer:         preparer,
		submitter:        submitter,
		resolver:         resolver,
		auditRepo:        auditRepo,
		gateway:          gateway,
		idGen:            idGen,
		fillResolveDelay: 2 * time.Second,
		fillResolveWait:  10 * time.Second,
	}
}

// PlaceOrder 执行一次完整的下单流程
// 输入解析、准备、提交依次推进；准备阶段的失败同样落审计终态
func (s *ExecutionService) PlaceOrder(ctx context.Context, cmd *PlaceOrderCommand) (*PlaceOrderResult, error) {
	intent, err := s.buildIntent(cmd)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "placing order",
		"intent_id", intent.IntentID,
		"token_id", intent.TokenID,
		"side", intent.Side,
		"input_mode", intent.InputMode,
	)

	prepared, err := s.preparer.Prepare(ctx, intent)
	if err != nil {
		execErr, ok := err.(*ExecutionError)
		if !ok {
			execErr = &ExecutionError{Kind: domain.ErrorKindAPIError, Message: err.Error()}
		}
		result := s.submitter.RejectPreparation(ctx, intent, execErr.Kind, execErr.Message)
		return &PlaceOrderResult{
			IntentID:     intent.IntentID,
			Status:       string(result.Status),
			Attempts:     result.Attempts,
			ErrorKind:    string(execErr.Kind),
			ErrorMessage: execErr.Message,
		}, nil
	}

	result := s.submitter.Submit(ctx, intent, prepared)

	if result.Status == domain.OrderEventSubmitted {
		s.scheduleFillResolution(ctx, intent, prepared, result.OrderID)
	}

	out := &PlaceOrderResult{
		IntentID:        intent.IntentID,
		Status:          string(result.Status),
		ExchangeOrderID: result.OrderID,
		Price:           prepared.Params.Price,
		Size:            prepared.Params.Size,
		Attempts:        result.Attempts,
	}
	if result.Evaluation != nil && !result.Evaluation.Success {
		out.ErrorKind = string(result.Evaluation.ErrorKind)
		out.ErrorMessage = result.Evaluation.ErrorMessage
	}
	return out, nil
}

// GetOrderBook 查询订单簿快照
func (s *ExecutionService) GetOrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	return s.gateway.GetOrderBook(ctx, tokenID)
}

// GetFillPrice 查询订单成交均价
func (s *ExecutionService) GetFillPrice(ctx context.Context, orderID, market string, limitPrice decimal.Decimal) *domain.FillPriceResolution {
	return s.resolver.Resolve(ctx, orderID, market, limitPrice)
}

// GetOrderEvent 按意图 ID 查询审计记录
func (s *ExecutionService) GetOrderEvent(ctx context.Context, intentID string) (*domain.OrderEvent, error) {
	return s.auditRepo.FindByIntentID(ctx, intentID)
}

func (s *ExecutionService) buildIntent(cmd *PlaceOrderCommand) (*domain.OrderIntent, error) {
	intentID := cmd.IntentID
	if intentID == "" {
		intentID = strconv.FormatInt(s.idGen.Generate(), 10)
	}

	limitPrice, err := decimal.NewFromString(cmd.LimitPrice)
	if err != nil {
		return nil, NewInputError("invalid limit price: " + cmd.LimitPrice)
	}

	amountUSD := decimal.Zero
	if cmd.AmountUSD != "" {
		if amountUSD, err = decimal.NewFromString(cmd.AmountUSD); err != nil {
			return nil, NewInputError("invalid usd amount: " + cmd.AmountUSD)
		}
	}

	contracts := decimal.Zero
	if cmd.Contracts != "" {
		if contracts, err = decimal.NewFromString(cmd.Contracts); err != nil {
			return nil, NewInputError("invalid contract size: " + cmd.Contracts)
		}
	}

	slippage := decimal.Zero
	if cmd.SlippageBps != "" {
		if slippage, err = decimal.NewFromString(cmd.SlippageBps); err != nil {
			return nil, NewInputError("invalid slippage: " + cmd.SlippageBps)
		}
	}

	orderType := domain.OrderType(cmd.OrderType)
	if orderType == "" {
		orderType = domain.OrderTypeGTC
	}
	switch orderType {
	case domain.OrderTypeGTC, domain.OrderTypeGTD, domain.OrderTypeFAK, domain.OrderTypeFOK:
	default:
		return nil, NewInputError("invalid order type: " + cmd.OrderType)
	}

	return &domain.OrderIntent{
		IntentID:      intentID,
		UserID:        cmd.UserID,
		WalletAddress: cmd.WalletAddress,
		TokenID:       cmd.TokenID,
		ConditionID:   cmd.ConditionID,
		Outcome:       cmd.Outcome,
		Side:          domain.OrderSide(cmd.Side),
		InputMode:     domain.InputMode(cmd.InputMode),
		AmountUSD:     amountUSD,
		Contracts:     contracts,
		LimitPrice:    limitPrice,
		SlippageBps:   slippage,
		OrderType:     orderType,
		Expiration:    cmd.Expiration,
	}, nil
}

// scheduleFillResolution 异步回填成交价，不阻塞下单响应
func (s *ExecutionService) scheduleFillResolution(ctx context.Context, intent *domain.OrderIntent, prepared *PreparedOrder, orderID string) {
	requestID := logger.RequestIDFrom(ctx)

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), s.fillResolveDelay+s.fillResolveWait)
		defer cancel()
		if requestID != "" {
			bg = logger.WithRequestID(bg, requestID)
		}

		select {
		case <-time.After(s.fillResolveDelay):
		case <-bg.Done():
			return
		}

		s.resolver.ResolveAndRecord(bg, intent.IntentID, orderID, intent.ConditionID, prepared.Params.Price)
	}()
}

package application

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/domain"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/utils"
)

// 公开订单的吃单方占位地址
const zeroAddress = "0x0000000000000000000000000000000000000000"

var one = decimal.NewFromInt(1)

// PreparerConfig 订单准备参数
type PreparerConfig struct {
	// tick size 查询失败时的兜底值
	DefaultTickSize decimal.Decimal
	// 数量小数位数
	SizeDecimals int32
	// 名义金额允许的最大小数位数
	MaxImpliedDecimals int32
	// 最小下单数量
	MinOrderSize decimal.Decimal
	// 资金地址
	FunderAddress string
	// 签名地址
	SignerAddress string
	// 签名类型
	SignatureType int
	// 手续费率（基点）
	FeeRateBps int
}

// PreparedOrder 准备完成的订单
type PreparedOrder struct {
	// 归一化后的下单参数
	Params domain.NormalizedOrderParams
	// 已签名订单
	Signed *domain.SignedOrder
	// 快照时的最优买价，空盘为零值
	BestBid decimal.Decimal
	// 快照时的最优卖价，空盘为零值
	BestAsk decimal.Decimal
}

// OrderPreparer 订单准备器
// 负责价格对齐、数量归一化与订单签名，产出可直接提交的订单
type OrderPreparer struct {
	gateway domain.ExchangeGateway
	signer  domain.OrderSigner
	saltGen *utils.SnowflakeID
	cfg     PreparerConfig
}

// NewOrderPreparer 创建订单准备器
func NewOrderPreparer(gateway domain.ExchangeGateway, signer domain.OrderSigner, saltGen *utils.SnowflakeID, cfg PreparerConfig) *OrderPreparer {
	return &OrderPreparer{
		gateway: gateway,
		signer:  signer,
		saltGen: saltGen,
		cfg:     cfg,
	}
}

// Prepare 将订单意图转换为已签名订单
func (p *OrderPreparer) Prepare(ctx context.Context, intent *domain.OrderIntent) (*PreparedOrder, error) {
	if err := p.validate(intent); err != nil {
		return nil, err
	}

	var bestBid, bestAsk decimal.Decimal
	book, err := p.gateway.GetOrderBook(ctx, intent.TokenID)
	if err != nil {
		// 订单簿只用于审计快照与 tick size 兜底，失败不阻断下单
		logger.Warn(ctx, "failed to fetch order book", "token_id", intent.TokenID, "error", err)
		book = nil
	} else {
		if lv := book.BestBid(); lv != nil {
			bestBid = lv.Price
		}
		if lv := book.BestAsk(); lv != nil {
			bestAsk = lv.Price
		}
	}

	tickSize := p.resolveTickSize(ctx, intent.TokenID, book)

	price, err := p.resolvePrice(intent, tickSize)
	if err != nil {
		return nil, err
	}

	adjustment := domain.AdjustSizeForImpliedAmount(price, intent.CandidateSize(), tickSize, intent.Side == domain.OrderSideBuy, domain.NormalizeOptions{
		SizeDecimals:       p.cfg.SizeDecimals,
		MaxImpliedDecimals: p.cfg.MaxImpliedDecimals,
		MinOrderSize:       p.cfg.MinOrderSize,
	})
	if adjustment == nil {
		return nil, NewInputError("order size normalizes to zero")
	}
	if adjustment.AdjustedToMinimum && intent.Side == domain.OrderSideSell {
		// 卖出数量不能凭空放大到最小量，可能超出实际持仓
		return nil, NewInputError(fmt.Sprintf("sell size below exchange minimum %s", p.cfg.MinOrderSize))
	}

	payload := p.buildPayload(intent, price, adjustment.Size)

	signature, err := p.signer.SignOrder(ctx, payload)
	if err != nil {
		logger.Error(ctx, "order signing failed", "intent_id", intent.IntentID, "error", err)
		return nil, NewSigningError(err.Error())
	}

	return &PreparedOrder{
		Params: domain.NormalizedOrderParams{
			Price:             price,
			Size:              adjustment.Size,
			TickSize:          tickSize,
			AdjustedToMinimum: adjustment.AdjustedToMinimum,
		},
		Signed: &domain.SignedOrder{
			OrderPayload: *payload,
			Signature:    signature,
		},
		BestBid: bestBid,
		BestAsk: bestAsk,
	}, nil
}

func (p *OrderPreparer) validate(intent *domain.OrderIntent) error {
	if intent.TokenID == "" {
		return NewInputError("token id is required")
	}
	if intent.Side != domain.OrderSideBuy && intent.Side != domain.OrderSideSell {
		return NewInputError(fmt.Sprintf("invalid side %q", intent.Side))
	}
	if intent.LimitPrice.Sign() <= 0 || intent.LimitPrice.GreaterThanOrEqual(one) {
		return NewInputError("limit price must be inside (0, 1)")
	}
	switch intent.InputMode {
	case domain.InputModeUSD:
		if intent.AmountUSD.Sign() <= 0 {
			return NewInputError("usd amount must be positive")
		}
	case domain.InputModeContracts:
		if intent.Contracts.Sign() <= 0 {
			return NewInputError("contract size must be positive")
		}
	default:
		return NewInputError(fmt.Sprintf("invalid input mode %q", intent.InputMode))
	}
	if intent.SlippageBps.Sign() < 0 {
		return NewInputError("slippage must not be negative")
	}
	return nil
}

// resolveTickSize 解析市场 tick size
// 优先专用查询，其次订单簿响应携带的值，最后落到配置缺省值
func (p *OrderPreparer) resolveTickSize(ctx context.Context, tokenID string, book *domain.OrderBook) decimal.Decimal {
	tickSize, err := p.gateway.GetTickSize(ctx, tokenID)
	if err == nil && tickSize.Sign() > 0 {
		return tickSize
	}

	if book != nil && book.TickSize.Sign() > 0 {
		return book.TickSize
	}

	logger.Warn(ctx, "tick size lookup failed, using default",
		"token_id", tokenID,
		"default", p.cfg.DefaultTickSize,
		"error", err,
	)
	return p.cfg.DefaultTickSize
}

// resolvePrice 按滑点预算推算限价并对齐到 tick
// BUY 上浮后向下取整，SELL 下浮后向上取整，保证不突破预算；
// 结果钳制在 [tick, 1-tick] 的合法报价区间内
func (p *OrderPreparer) resolvePrice(intent *domain.OrderIntent, tickSize decimal.Decimal) (decimal.Decimal, error) {
	slippage := intent.SlippageBps.Div(decimal.NewFromInt(10000))

	var price decimal.Decimal
	if intent.Side == domain.OrderSideBuy {
		budget := intent.LimitPrice.Mul(one.Add(slippage))
		price = domain.RoundDownToStep(budget, tickSize)
	} else {
		floor := intent.LimitPrice.Mul(one.Sub(slippage))
		price = domain.RoundUpToStep(floor, tickSize)
	}

	maxPrice := one.Sub(tickSize)
	if price.LessThan(tickSize) {
		price = tickSize
	}
	if price.GreaterThan(maxPrice) {
		price = maxPrice
	}
	if price.Sign() <= 0 {
		return decimal.Zero, NewInputError("resolved price is not positive")
	}
	return price, nil
}

func (p *OrderPreparer) buildPayload(intent *domain.OrderIntent, price, size decimal.Decimal) *domain.OrderPayload {
	makerAmount, takerAmount := domain.MicroAmounts(price, size, intent.Side)

	expiration := "0"
	if intent.OrderType == domain.OrderTypeGTD && intent.Expiration > 0 {
		expiration = strconv.FormatInt(intent.Expiration, 10)
	}

	return &domain.OrderPayload{
		Salt:          p.saltGen.Generate(),
		Maker:         p.cfg.FunderAddress,
		Signer:        p.cfg.SignerAddress,
		Taker:         zeroAddress,
		TokenID:       intent.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    expiration,
		Nonce:         "0",
		FeeRateBps:    strconv.Itoa(p.cfg.FeeRateBps),
		Side:          intent.Side,
		SignatureType: p.cfg.SignatureType,
	}
}

package domain

import (
	"github.com/shopspring/decimal"
)

// FillMethod 成交价回填的匹配方式
type FillMethod string

const (
	// FillMethodClobTrades 通过订单关联成交直接匹配
	FillMethodClobTrades FillMethod = "clob_trades"
	// FillMethodOrderMatch 关联成交缺失，按 taker/maker 订单 ID 兜底匹配
	FillMethodOrderMatch FillMethod = "clob_trades_order_match"
	// FillMethodNoAssociateTrades 订单无关联成交，回退限价
	FillMethodNoAssociateTrades FillMethod = "no_associate_trades"
	// FillMethodNoMatchingFills 成交列表里找不到对应记录，回退限价
	FillMethodNoMatchingFills FillMethod = "no_matching_fills"
)

// Fill 单笔成交
type Fill struct {
	// 成交 ID
	TradeID string
	// 成交价
	Price decimal.Decimal
	// 成交数量
	Size decimal.Decimal
	// 撮合时间（Unix 秒）
	MatchTime int64
}

// ClobOrder 交易所侧订单视图
type ClobOrder struct {
	// 订单 ID
	ID string
	// 订单状态
	Status string
	// 条件市场标识
	Market string
	// 关联成交 ID 列表
	AssociateTrades []string
	// 下单价
	Price decimal.Decimal
	// 原始数量
	OriginalSize decimal.Decimal
	// 已撮合数量
	SizeMatched decimal.Decimal
}

// ClobTrade 交易所侧成交记录
type ClobTrade struct {
	// 成交 ID
	ID string
	// 吃单方订单 ID
	TakerOrderID string
	// 挂单方订单 ID 列表
	MakerOrderIDs []string
	// 条件市场标识
	Market string
	// 成交价
	Price decimal.Decimal
	// 成交数量
	Size decimal.Decimal
	// 撮合时间（Unix 秒）
	MatchTime int64
}

// FillPriceResolution 成交价回填结果
type FillPriceResolution struct {
	// 成交均价，无法回填时为限价
	FillPrice decimal.Decimal
	// 参与计算的成交笔数
	FillCount int
	// 匹配方式
	Method FillMethod
}

// VWAP 按数量加权计算成交均价，保留 8 位小数
// 列表为空或总量为零时返回零值与 false
func VWAP(fills []Fill) (decimal.Decimal, bool) {
	notional := decimal.Zero
	volume := decimal.Zero
	for _, f := range fills {
		if f.Price.Sign() <= 0 || f.Size.Sign() <= 0 {
			continue
		}
		notional = notional.Add(f.Price.Mul(f.Size))
		volume = volume.Add(f.Size)
	}
	if volume.Sign() <= 0 {
		return decimal.Zero, false
	}
	return notional.DivRound(volume, 8), true
}

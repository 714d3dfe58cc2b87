// Package domain 包含订单执行核心的领域模型
package domain

import (
	"github.com/shopspring/decimal"
)

// OrderSide 买卖方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType 订单有效期类型
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel
	OrderTypeGTD OrderType = "GTD" // Good Till Date
	OrderTypeFAK OrderType = "FAK" // Fill And Kill
	OrderTypeFOK OrderType = "FOK" // Fill Or Kill
)

// InputMode 用户输入模式
type InputMode string

const (
	InputModeUSD       InputMode = "USD"       // 按美元金额下单
	InputModeContracts InputMode = "CONTRACTS" // 按合约数量下单
)

// OrderIntent 订单意图
// 调用方给出的完整交易意图，构造后不可变；一次提交尝试期间由调用方持有
type OrderIntent struct {
	// 意图 ID，调用方提供的稳定标识，审计表主键
	IntentID string
	// 用户 ID
	UserID string
	// 钱包地址
	WalletAddress string
	// 市场 token 标识
	TokenID string
	// 条件市场标识
	ConditionID string
	// 结果标签（如 "Yes"/"No"）
	Outcome string
	// 买卖方向
	Side OrderSide
	// 输入模式
	InputMode InputMode
	// 美元金额（InputModeUSD 时有效）
	AmountUSD decimal.Decimal
	// 合约数量（InputModeContracts 时有效）
	Contracts decimal.Decimal
	// 限价或参考价
	LimitPrice decimal.Decimal
	// 滑点预算（基点）
	SlippageBps decimal.Decimal
	// 订单类型
	OrderType OrderType
	// 过期时间（Unix 秒，0 表示不过期）
	Expiration int64
}

// CandidateSize 根据输入模式计算候选合约数量
// USD 模式用金额除以价格；价格非正时返回零值
func (i *OrderIntent) CandidateSize() decimal.Decimal {
	if i.InputMode == InputModeUSD {
		if i.LimitPrice.Sign() <= 0 {
			return decimal.Zero
		}
		return i.AmountUSD.DivRound(i.LimitPrice, 8)
	}
	return i.Contracts
}

// NormalizedOrderParams 归一化后的下单参数
// 不变式：Price 是 TickSize 的整数倍；Size 是数量步长的整数倍；
// 隐含名义金额在限定精度内无多余小数位。构造后不可变
type NormalizedOrderParams struct {
	// 下单价格
	Price decimal.Decimal
	// 下单数量（合约数）
	Size decimal.Decimal
	// 市场 tick size
	TickSize decimal.Decimal
	// 数量被替换为最小下单量
	AdjustedToMinimum bool
}

// OrderPayload 待签名的交易所订单
type OrderPayload struct {
	// 随机盐
	Salt int64 `json:"salt"`
	// 资金地址
	Maker string `json:"maker"`
	// 签名地址
	Signer string `json:"signer"`
	// 吃单方地址，公开订单使用零地址
	Taker string `json:"taker"`
	// 市场 token 标识
	TokenID string `json:"tokenId"`
	// maker 侧金额（微单位，1e6）
	MakerAmount string `json:"makerAmount"`
	// taker 侧金额（微单位，1e6）
	TakerAmount string `json:"takerAmount"`
	// 过期时间（Unix 秒字符串）
	Expiration string `json:"expiration"`
	// 交易所 nonce
	Nonce string `json:"nonce"`
	// 手续费率（基点）
	FeeRateBps string `json:"feeRateBps"`
	// 买卖方向
	Side OrderSide `json:"side"`
	// 签名类型：0=EOA, 1=代理钱包, 2=安全多签
	SignatureType int `json:"signatureType"`
}

// SignedOrder 已签名的交易所订单
type SignedOrder struct {
	OrderPayload
	// EIP-712 签名（0x 前缀十六进制）
	Signature string `json:"signature"`
}

// MicroAmounts 计算订单的 maker/taker 微单位金额
// BUY：maker 付出名义金额，taker 收到合约数量；SELL 相反
func MicroAmounts(price, size decimal.Decimal, side OrderSide) (makerAmount, takerAmount string) {
	notional := price.Mul(size).Shift(6).Truncate(0)
	contracts := size.Shift(6).Truncate(0)
	if side == OrderSideBuy {
		return notional.String(), contracts.String()
	}
	return contracts.String(), notional.String()
}

package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceLevel 订单簿单个价位
type PriceLevel struct {
	// 价格
	Price decimal.Decimal
	// 该价位的挂单数量
	Size decimal.Decimal
}

// OrderBook 订单簿快照
// 交易所返回的档位顺序不保证，读取时按需排序
type OrderBook struct {
	// 市场 token 标识
	TokenID string
	// 市场 tick size，部分响应携带，缺失时为零值
	TickSize decimal.Decimal
	// 买盘档位
	Bids []PriceLevel
	// 卖盘档位
	Asks []PriceLevel
}

// VolumeQuote 深度查询结果
type VolumeQuote struct {
	// 达到目标量时的价格
	Price decimal.Decimal
	// 实际可达的累计数量
	FilledVolume decimal.Decimal
}

// BestBid 返回最高买价档位，空盘返回 nil
func (b *OrderBook) BestBid() *PriceLevel {
	return bestLevel(b.Bids, true)
}

// BestAsk 返回最低卖价档位，空盘返回 nil
func (b *OrderBook) BestAsk() *PriceLevel {
	return bestLevel(b.Asks, false)
}

func bestLevel(levels []PriceLevel, highest bool) *PriceLevel {
	var best *PriceLevel
	for i := range levels {
		lv := &levels[i]
		if lv.Price.Sign() <= 0 || lv.Size.Sign() <= 0 {
			continue
		}
		if best == nil {
			best = lv
			continue
		}
		if highest && lv.Price.GreaterThan(best.Price) {
			best = lv
		}
		if !highest && lv.Price.LessThan(best.Price) {
			best = lv
		}
	}
	return best
}

// VolumeAtPrice 统计给定限价内可成交的累计数量
// BUY 汇总价格不高于 limit 的卖盘；SELL 汇总价格不低于 limit 的买盘
func (b *OrderBook) VolumeAtPrice(side OrderSide, limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lv := range b.sideLevels(side) {
		if lv.Price.Sign() <= 0 || lv.Size.Sign() <= 0 {
			continue
		}
		if side == OrderSideBuy && lv.Price.GreaterThan(limit) {
			continue
		}
		if side == OrderSideSell && lv.Price.LessThan(limit) {
			continue
		}
		total = total.Add(lv.Size)
	}
	return total
}

// PriceForVolume 返回吃满目标数量所需触及的价格
// 沿对手盘从优到劣累计，首次达到目标量的价位即为结果价；
// 深度不足时返回最深价位与实际可达量；空盘返回 nil
func (b *OrderBook) PriceForVolume(side OrderSide, targetVolume decimal.Decimal) *VolumeQuote {
	levels := sortedLevels(b.sideLevels(side), side == OrderSideSell)
	if len(levels) == 0 {
		return nil
	}

	cum := decimal.Zero
	var last PriceLevel
	for _, lv := range levels {
		cum = cum.Add(lv.Size)
		last = lv
		if cum.GreaterThanOrEqual(targetVolume) {
			return &VolumeQuote{Price: lv.Price, FilledVolume: targetVolume}
		}
	}
	return &VolumeQuote{Price: last.Price, FilledVolume: cum}
}

// sideLevels 返回给定方向的对手盘档位
func (b *OrderBook) sideLevels(side OrderSide) []PriceLevel {
	if side == OrderSideBuy {
		return b.Asks
	}
	return b.Bids
}

func sortedLevels(levels []PriceLevel, descending bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lv := range levels {
		if lv.Price.Sign() > 0 && lv.Size.Sign() > 0 {
			out = append(out, lv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

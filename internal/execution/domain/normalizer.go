package domain

import (
	"github.com/shopspring/decimal"
)

// NormalizeOptions 数量归一化选项
type NormalizeOptions struct {
	// 数量小数位数
	SizeDecimals int32
	// 名义金额允许的最大小数位数
	MaxImpliedDecimals int32
	// 最小下单数量，零表示不限制
	MinOrderSize decimal.Decimal
}

// SizeAdjustment 数量归一化结果
type SizeAdjustment struct {
	// 调整后的数量
	Size decimal.Decimal
	// 数量被替换为最小下单量
	AdjustedToMinimum bool
}

// AdjustSizeForImpliedAmount 调整数量使 price*size 的小数位数不超过限制
//
// 把价格与数量放大为整数单位后，计算超出允许精度的位数 excess；
// 数量必须是 lot = 10^excess / gcd(priceUnits, 10^excess) 的整数倍
// 才能保证名义金额落在允许精度内。roundUp 为 true 时向上取整到
// lot 倍数（买单），否则向下（卖单）。调整结果低于最小下单量时
// 替换为对齐后的最小量并置 AdjustedToMinimum。
// 输入非法或无法得到正数量时返回 nil。
func AdjustSizeForImpliedAmount(price, size, tickSize decimal.Decimal, roundUp bool, opts NormalizeOptions) *SizeAdjustment {
	if price.Sign() <= 0 || size.Sign() <= 0 {
		return nil
	}

	priceDecimals := StepDecimals(tickSize)
	if tickSize.Sign() <= 0 {
		priceDecimals = StepDecimals(price)
	}

	priceUnits := price.Shift(priceDecimals).IntPart()
	if priceUnits <= 0 {
		return nil
	}

	scaled := size.Shift(opts.SizeDecimals)
	var sizeUnits int64
	if roundUp {
		sizeUnits = scaled.Ceil().IntPart()
	} else {
		sizeUnits = scaled.Floor().IntPart()
	}

	lot := int64(1)
	excess := priceDecimals + opts.SizeDecimals - opts.MaxImpliedDecimals
	if excess > 0 {
		modulus := pow10(excess)
		lot = modulus / gcd(priceUnits, modulus)
	}

	adjusted := alignToLot(sizeUnits, lot, roundUp)

	result := decimal.New(adjusted, -opts.SizeDecimals)
	if opts.MinOrderSize.Sign() > 0 && result.LessThan(opts.MinOrderSize) {
		minUnits := opts.MinOrderSize.Shift(opts.SizeDecimals).Ceil().IntPart()
		// 最小量本身也要对齐到 lot 倍数
		minUnits = alignToLot(minUnits, lot, true)
		return &SizeAdjustment{
			Size:              decimal.New(minUnits, -opts.SizeDecimals),
			AdjustedToMinimum: true,
		}
	}

	if adjusted <= 0 {
		return nil
	}

	return &SizeAdjustment{Size: result}
}

func alignToLot(units, lot int64, roundUp bool) int64 {
	if lot <= 1 {
		return units
	}
	rem := units % lot
	if rem == 0 {
		return units
	}
	if roundUp {
		return units - rem + lot
	}
	return units - rem
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func pow10(n int32) int64 {
	result := int64(1)
	for i := int32(0); i < n; i++ {
		result *= 10
	}
	return result
}

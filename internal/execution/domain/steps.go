package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RoundDownToStep 将 value 向下对齐到 step 的整数倍
// step 非正时原样返回；基于整数缩放计算，不产生二进制浮点误差
func RoundDownToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	rem := value.Mod(step)
	if rem.IsZero() {
		return value
	}
	res := value.Sub(rem)
	// Mod 结果与被除数同号，负值时需再退一个步长
	if value.Sign() < 0 {
		res = res.Sub(step)
	}
	return res
}

// RoundUpToStep 将 value 向上对齐到 step 的整数倍
// step 非正时原样返回；已对齐的值保持不变
func RoundUpToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	down := RoundDownToStep(value, step)
	if down.Equal(value) {
		return value
	}
	return down.Add(step)
}

// StepDecimals 返回 step 的有效小数位数
// 尾随零不计入；0.1 返回 1，0.010 返回 2，整数与非正值返回 0
func StepDecimals(step decimal.Decimal) int32 {
	if step.Sign() <= 0 {
		return 0
	}
	exp := step.Exponent()
	if exp >= 0 {
		return 0
	}
	coef := new(big.Int).Set(step.Coefficient())
	ten := big.NewInt(10)
	mod := new(big.Int)
	for exp < 0 {
		q, m := new(big.Int).QuoRem(coef, ten, mod)
		if m.Sign() != 0 {
			break
		}
		coef = q
		exp++
	}
	if exp >= 0 {
		return 0
	}
	return -exp
}

package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// takeProfitPrice 返回强制止盈触发价：avg * (1 + pct)。
func takeProfitPrice(avg, pct decimal.Decimal) decimal.Decimal {
	return avg.Mul(decOne.Add(pct))
}

// stopLossPrice 返回强制止损触发价：avg * (1 - pct)。
func stopLossPrice(avg, pct decimal.Decimal) decimal.Decimal {
	return avg.Mul(decOne.Sub(pct))
}

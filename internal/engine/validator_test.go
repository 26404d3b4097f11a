package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestValidator_T1Settlement(t *testing.T) {
	v := NewValidator()
	sell := Trade{Symbol: "600519.SH", Action: ActionSell, Quantity: 100}

	t.Run("买入当日卖出被拒", func(t *testing.T) {
		v.RecordBuy("600519.SH", day("2023-03-01"))
		err := v.Validate(sell, day("2023-03-01"))
		assert.Error(t, err)
		viol, ok := AsViolation(err)
		assert.True(t, ok)
		assert.Equal(t, ViolationSettlement, viol.Kind)
	})

	t.Run("次日卖出放行", func(t *testing.T) {
		assert.NoError(t, v.Validate(sell, day("2023-03-02")))
	})

	t.Run("日内时刻不影响自然日比较", func(t *testing.T) {
		v2 := NewValidator()
		v2.RecordBuy("600519.SH", day("2023-03-01").Add(9*time.Hour+30*time.Minute))
		err := v2.Validate(sell, day("2023-03-01").Add(14*time.Hour))
		assert.Error(t, err)
		assert.NoError(t, v2.Validate(sell, day("2023-03-02").Add(9*time.Hour)))
	})
}

func TestValidator_RebuyResetsClock(t *testing.T) {
	v := NewValidator()
	v.RecordBuy("000858.SZ", day("2023-03-01"))
	// 3 月 2 日加仓：整个持仓的 T+1 时钟重置到 3 月 2 日。
	v.RecordBuy("000858.SZ", day("2023-03-02"))

	sell := Trade{Symbol: "000858.SZ", Action: ActionSell, Quantity: 100}
	err := v.Validate(sell, day("2023-03-02"))
	assert.Error(t, err)
	assert.NoError(t, v.Validate(sell, day("2023-03-03")))
}

func TestValidator_RecordSellClearsTracking(t *testing.T) {
	v := NewValidator()
	v.RecordBuy("601318.SH", day("2023-03-01"))
	v.RecordSell("601318.SH")

	_, ok := v.LastBuyDate("601318.SH")
	assert.False(t, ok)
	// 清仓后重新买入，时钟从新日期起算。
	v.RecordBuy("601318.SH", day("2023-03-05"))
	sell := Trade{Symbol: "601318.SH", Action: ActionSell, Quantity: 100}
	assert.Error(t, v.Validate(sell, day("2023-03-05")))
}

func TestValidator_UnknownSymbolSellable(t *testing.T) {
	v := NewValidator()
	sell := Trade{Symbol: "300750.SZ", Action: ActionSell, Quantity: 200}
	assert.NoError(t, v.Validate(sell, day("2023-03-01")))
}

func TestValidator_InvalidQuantity(t *testing.T) {
	v := NewValidator()
	for _, qty := range []int64{0, -100} {
		err := v.Validate(Trade{Symbol: "600036.SH", Action: ActionBuy, Quantity: qty}, day("2023-03-01"))
		viol, ok := AsViolation(err)
		assert.True(t, ok)
		assert.Equal(t, ViolationInvalidQuantity, viol.Kind)
	}
}

func TestValidator_Unsellable(t *testing.T) {
	v := NewValidator()
	v.RecordBuy("600519.SH", day("2023-03-02"))
	v.RecordBuy("000001.SZ", day("2023-03-01"))

	assert.Equal(t, []string{"600519.SH"}, v.Unsellable(day("2023-03-02")))
	assert.Empty(t, v.Unsellable(day("2023-03-03")))
}

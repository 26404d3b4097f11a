package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"huice/internal/engine"
	"huice/internal/market"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func barsFrom(closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = market.Bar{Date: base.AddDate(0, 0, i).Unix(),
			Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func position(avgCost string) engine.Position {
	return engine.Position{Symbol: "600519.SH", Shares: 100, AvgCost: dec(avgCost)}
}

func TestBuild_CoversAllPatterns(t *testing.T) {
	strategies := Build(Profiles{})
	for _, pattern := range []string{engine.PatternNormal, engine.PatternBull,
		engine.PatternBear, engine.PatternVolatile} {
		strat, ok := strategies[pattern]
		assert.True(t, ok, pattern)
		assert.Equal(t, pattern, strat.Name())
	}
}

func TestProfiles_DefaultPattern(t *testing.T) {
	assert.Equal(t, engine.PatternNormal, Profiles{}.DefaultPattern())
	assert.Equal(t, engine.PatternBull, Profiles{Default: "bull"}.DefaultPattern())
}

func TestNormal_BuyAboveMAWithoutOverbought(t *testing.T) {
	s := NewNormal(NormalParams{MAPeriod: 3, RSIPeriod: 3, BuyRSIMax: 70, SellRSI: 78})

	// 震荡小涨：价格站上均线且 RSI 未超买。
	assert.True(t, s.ShouldBuy("600519.SH", barsFrom(100, 98, 101, 99, 102)))
	// 单边急涨 RSI 打满，拒绝追高。
	assert.False(t, s.ShouldBuy("600519.SH", barsFrom(100, 104, 108, 112, 116)))
	// 历史不足直接观望。
	assert.False(t, s.ShouldBuy("600519.SH", barsFrom(100, 101)))
}

func TestNormal_SellBelowMA(t *testing.T) {
	s := NewNormal(NormalParams{MAPeriod: 3, RSIPeriod: 3})
	pos := position("100")
	assert.True(t, s.ShouldSell("600519.SH", barsFrom(100, 102, 99, 97, 95), pos))
	assert.False(t, s.ShouldSell("600519.SH", barsFrom(100, 98, 101, 99, 102), pos))
}

func TestBull_EMACross(t *testing.T) {
	s := NewBull(BullParams{FastEMA: 2, SlowEMA: 3})
	assert.True(t, s.ShouldBuy("000858.SZ", barsFrom(100, 103, 106, 109, 112)))
	assert.False(t, s.ShouldBuy("000858.SZ", barsFrom(112, 109, 106, 103, 100)))

	pos := position("110")
	assert.True(t, s.ShouldSell("000858.SZ", barsFrom(112, 109, 106, 103, 100), pos))
	assert.False(t, s.ShouldSell("000858.SZ", barsFrom(100, 103, 106, 109, 112), pos))
}

func TestBear_OversoldBounce(t *testing.T) {
	s := NewBear(BearParams{RSIPeriod: 3, OversoldRSI: 30, ExitRSI: 55, TakeProfit: 0.03})

	// 连续下跌深度超跌，允许抢反弹。
	assert.True(t, s.ShouldBuy("601318.SH", barsFrom(100, 97, 94, 91, 88)))
	assert.False(t, s.ShouldBuy("601318.SH", barsFrom(100, 103, 106, 109, 112)))

	// 反弹 3% 即落袋：均价 100，现价 103。
	assert.True(t, s.ShouldSell("601318.SH", barsFrom(100, 101, 102, 102.5, 103), position("100")))
	// 未达标且 RSI 仍弱则继续持有。
	assert.False(t, s.ShouldSell("601318.SH", barsFrom(100, 99, 98, 97, 96), position("100")))
}

func TestVolatile_MeanReversion(t *testing.T) {
	s := NewVolatile(VolatileParams{RSIPeriod: 3, BuyRSI: 25, SellRSI: 60, TakeProfit: 0.05})

	assert.True(t, s.ShouldBuy("300750.SZ", barsFrom(100, 96, 92, 88, 84)))
	assert.False(t, s.ShouldBuy("300750.SZ", barsFrom(100, 101, 100, 102, 101)))

	// 达到 5% 目标即离场。
	assert.True(t, s.ShouldSell("300750.SZ", barsFrom(100, 102, 103, 104, 105), position("100")))
	// RSI 回到强势区也离场。
	assert.True(t, s.ShouldSell("300750.SZ", barsFrom(100, 101, 102, 103, 104), position("103")))
}

func TestGainPct(t *testing.T) {
	assert.InDelta(t, 0.05, gainPct(position("100"), 105), 1e-9)
	assert.InDelta(t, -0.08, gainPct(position("100"), 92), 1e-9)
	assert.Zero(t, gainPct(engine.Position{}, 100))
	assert.Zero(t, gainPct(position("100"), 0))
}

package picker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"huice/internal/market"
)

type fakeHistory struct {
	bars map[string][]market.Bar
}

func (f *fakeHistory) TradingCalendar(context.Context, time.Time, time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeHistory) Bar(context.Context, string, time.Time) (market.Bar, error) {
	return market.Bar{}, fmt.Errorf("unused")
}

func (f *fakeHistory) History(_ context.Context, symbol string, _ time.Time, lookback int) ([]market.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: 无数据", symbol)
	}
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	return bars, nil
}

// series 生成 days 根日线，收盘价从 start 线性走到 end，最后一根落在 asOf。
func series(symbol string, asOf time.Time, days int, start, end, turnover float64) []market.Bar {
	bars := make([]market.Bar, days)
	step := (end - start) / float64(days-1)
	for i := 0; i < days; i++ {
		d := asOf.AddDate(0, 0, i-days+1)
		c := start + step*float64(i)
		bars[i] = market.Bar{Symbol: symbol, Date: market.DayTS(d),
			Open: c, High: c, Low: c, Close: c, Turnover: turnover}
	}
	return bars
}

func TestPicker_RanksByMomentum(t *testing.T) {
	asOf := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	data := &fakeHistory{bars: map[string][]market.Bar{
		"600519.SH": series("600519.SH", asOf, 6, 100, 110, 1e8), // +10%
		"000858.SZ": series("000858.SZ", asOf, 6, 100, 130, 1e8), // +30%
		"601318.SH": series("601318.SH", asOf, 6, 100, 90, 1e8),  // 负动量出局
	}}
	p, err := NewPicker(Config{Universe: []string{"600519.SH", "000858.SZ", "601318.SH"},
		TopN: 5, MomentumDays: 5}, data)
	assert.NoError(t, err)

	got, err := p.PickCandidates(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Equal(t, []string{"000858.SZ", "600519.SH"}, got)
}

func TestPicker_TopNCutoff(t *testing.T) {
	asOf := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	data := &fakeHistory{bars: map[string][]market.Bar{
		"600519.SH": series("600519.SH", asOf, 6, 100, 120, 1e8),
		"000858.SZ": series("000858.SZ", asOf, 6, 100, 130, 1e8),
	}}
	p, err := NewPicker(Config{Universe: []string{"600519.SH", "000858.SZ"},
		TopN: 1, MomentumDays: 5}, data)
	assert.NoError(t, err)

	got, err := p.PickCandidates(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Equal(t, []string{"000858.SZ"}, got)
}

func TestPicker_FiltersSuspendedAndIlliquid(t *testing.T) {
	asOf := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	// 600900.SH 最后一根停在前一日：当日停牌。
	stale := series("600900.SH", asOf.AddDate(0, 0, -1), 6, 100, 120, 1e8)
	thin := series("300750.SZ", asOf, 6, 100, 120, 1e5)
	data := &fakeHistory{bars: map[string][]market.Bar{
		"600900.SH": stale,
		"300750.SZ": thin,
	}}
	p, err := NewPicker(Config{Universe: []string{"600900.SH", "300750.SZ"},
		TopN: 5, MomentumDays: 5, MinTurnover: 1e7}, data)
	assert.NoError(t, err)

	got, err := p.PickCandidates(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestPicker_SkipsSymbolsWithMissingHistory(t *testing.T) {
	asOf := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	data := &fakeHistory{bars: map[string][]market.Bar{
		"600519.SH": series("600519.SH", asOf, 6, 100, 110, 1e8),
		"000001.SZ": series("000001.SZ", asOf, 3, 100, 110, 1e8), // 不足回看窗口
	}}
	p, err := NewPicker(Config{Universe: []string{"600519.SH", "000001.SZ", "888888.SH"},
		TopN: 5, MomentumDays: 5}, data)
	assert.NoError(t, err)

	got, err := p.PickCandidates(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Equal(t, []string{"600519.SH"}, got)
}

func TestPicker_EmptyUniverse(t *testing.T) {
	p, err := NewPicker(Config{}, &fakeHistory{})
	assert.NoError(t, err)
	got, err := p.PickCandidates(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Empty(t, got)
}

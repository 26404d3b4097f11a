package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"huice/internal/market"
)

type fakeData struct {
	calendar []time.Time
	bars     map[string]map[int64]market.Bar
}

func (f *fakeData) TradingCalendar(_ context.Context, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range f.calendar {
		if !d.Before(market.Day(start)) && !d.After(market.Day(end)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeData) Bar(_ context.Context, symbol string, date time.Time) (market.Bar, error) {
	if bar, ok := f.bars[symbol][market.DayTS(date)]; ok {
		return bar, nil
	}
	return market.Bar{}, fmt.Errorf("%s@%s: 无行情", symbol, market.Day(date).Format("2006-01-02"))
}

func (f *fakeData) History(_ context.Context, symbol string, until time.Time, lookback int) ([]market.Bar, error) {
	var out []market.Bar
	for _, d := range f.calendar {
		if d.After(market.Day(until)) {
			break
		}
		if bar, ok := f.bars[symbol][market.DayTS(d)]; ok {
			out = append(out, bar)
		}
	}
	if len(out) > lookback {
		out = out[len(out)-lookback:]
	}
	return out, nil
}

func (f *fakeData) addBar(symbol string, date time.Time, close float64) {
	if f.bars == nil {
		f.bars = make(map[string]map[int64]market.Bar)
	}
	if f.bars[symbol] == nil {
		f.bars[symbol] = make(map[int64]market.Bar)
	}
	f.bars[symbol][market.DayTS(date)] = market.Bar{
		Symbol: symbol, Date: market.DayTS(date),
		Open: close, High: close, Low: close, Close: close, PrevClose: close,
	}
}

type stubDetector struct {
	result PatternResult
	err    error
}

func (d stubDetector) DetectPattern([]market.Bar, time.Time) (PatternResult, error) {
	return d.result, d.err
}

type stubPicker struct {
	candidates []string
}

func (p stubPicker) PickCandidates(context.Context, time.Time) ([]string, error) {
	return p.candidates, nil
}

func calendar(days ...string) []time.Time {
	out := make([]time.Time, len(days))
	for i, d := range days {
		out[i] = day(d)
	}
	return out
}

func newFakeData(cal []time.Time, symbols map[string][]float64) *fakeData {
	f := &fakeData{calendar: cal}
	for sym, closes := range symbols {
		for i, c := range closes {
			if i >= len(cal) {
				break
			}
			if c > 0 {
				f.addBar(sym, cal[i], c)
			}
		}
	}
	return f
}

func orchestratorConfig() Config {
	cfg := testConfig()
	cfg.IndexSymbol = "000300.SH"
	cfg.HistoryLookback = 10
	cfg.DefaultPattern = PatternNormal
	return cfg
}

func TestOrchestrator_FullCycle(t *testing.T) {
	cal := calendar("2023-03-01", "2023-03-02", "2023-03-03")
	data := newFakeData(cal, map[string][]float64{
		"000300.SH": {4000, 4010, 4020},
		"600519.SH": {100, 102, 104},
	})
	strategies := map[string]Strategy{PatternNormal: stubStrategy{buy: true}}
	orch, err := NewOrchestrator(orchestratorConfig(), data,
		stubDetector{result: PatternResult{Pattern: PatternNormal, Confidence: 0.9}},
		stubPicker{candidates: []string{"600519.SH"}}, strategies)
	assert.NoError(t, err)

	result, err := orch.Run(context.Background(), day("2023-03-01"), day("2023-03-03"))
	assert.NoError(t, err)
	assert.Len(t, result.Snapshots, 3)

	// 首日建仓：100000/5 槽 = 20000，20000/100 = 200 股。
	first := result.Snapshots[0]
	assert.Len(t, first.Executed, 1)
	assert.EqualValues(t, 200, first.Executed[0].Quantity)

	// 每日估值 = 现金 + 份额 × 当日收盘。
	for i, want := range []float64{100, 102, 104} {
		snap := result.Snapshots[i]
		pos := snap.Positions["600519.SH"]
		expect := snap.Cash.Add(decimal.NewFromFloat(want).Mul(decimal.NewFromInt(pos.Shares)))
		assert.True(t, snap.Value.Equal(expect), "day %d value=%s want=%s", i, snap.Value, expect)
		assert.False(t, snap.Cash.IsNegative())
	}

	assert.True(t, result.FinalValue.Equal(result.Snapshots[2].Value))
	assert.InDelta(t, 0.008, result.TotalReturn, 0.002)
	assert.Equal(t, 1.0, result.Compliance.ComplianceRate)
}

func TestOrchestrator_PatternFallbackToNormal(t *testing.T) {
	cal := calendar("2023-03-01")
	data := newFakeData(cal, map[string][]float64{"000300.SH": {4000}})
	strategies := map[string]Strategy{PatternNormal: stubStrategy{}}

	t.Run("低置信度回退", func(t *testing.T) {
		orch, err := NewOrchestrator(orchestratorConfig(), data,
			stubDetector{result: PatternResult{Pattern: PatternBull, Confidence: 0.3}},
			stubPicker{}, strategies)
		assert.NoError(t, err)
		result, err := orch.Run(context.Background(), cal[0], cal[0])
		assert.NoError(t, err)
		assert.Equal(t, PatternNormal, result.Snapshots[0].Pattern)
	})

	t.Run("识别失败回退", func(t *testing.T) {
		orch, err := NewOrchestrator(orchestratorConfig(), data,
			stubDetector{err: errors.New("数据不足")}, stubPicker{}, strategies)
		assert.NoError(t, err)
		result, err := orch.Run(context.Background(), cal[0], cal[0])
		assert.NoError(t, err)
		assert.Equal(t, PatternNormal, result.Snapshots[0].Pattern)
	})

	t.Run("无识别器按 normal 处理", func(t *testing.T) {
		orch, err := NewOrchestrator(orchestratorConfig(), data, nil, nil, strategies)
		assert.NoError(t, err)
		result, err := orch.Run(context.Background(), cal[0], cal[0])
		assert.NoError(t, err)
		assert.Equal(t, PatternNormal, result.Snapshots[0].Pattern)
	})
}

func TestOrchestrator_StrategyResolution(t *testing.T) {
	cal := calendar("2023-03-01")
	data := newFakeData(cal, map[string][]float64{"000300.SH": {4000}})
	detector := stubDetector{result: PatternResult{Pattern: PatternBull, Confidence: 0.9}}

	t.Run("未映射形态使用缺省策略", func(t *testing.T) {
		orch, err := NewOrchestrator(orchestratorConfig(), data, detector, stubPicker{},
			map[string]Strategy{PatternNormal: stubStrategy{}})
		assert.NoError(t, err)
		_, err = orch.Run(context.Background(), cal[0], cal[0])
		assert.NoError(t, err)
	})

	t.Run("缺省也不存在时中止", func(t *testing.T) {
		orch, err := NewOrchestrator(orchestratorConfig(), data, detector, stubPicker{},
			map[string]Strategy{PatternVolatile: stubStrategy{}})
		assert.NoError(t, err)
		result, err := orch.Run(context.Background(), cal[0], cal[0])
		assert.ErrorIs(t, err, ErrNoUsableStrategy)
		assert.NotNil(t, result)
	})

	t.Run("没有任何策略是配置错误", func(t *testing.T) {
		_, err := NewOrchestrator(orchestratorConfig(), data, detector, stubPicker{}, nil)
		assert.ErrorIs(t, err, ErrNoUsableStrategy)
	})
}

func TestOrchestrator_EmptyCalendarFatal(t *testing.T) {
	data := &fakeData{}
	orch, err := NewOrchestrator(orchestratorConfig(), data, nil, nil,
		map[string]Strategy{PatternNormal: stubStrategy{}})
	assert.NoError(t, err)

	result, err := orch.Run(context.Background(), day("2023-03-01"), day("2023-03-03"))
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
	assert.NotNil(t, result)
	assert.Empty(t, result.Snapshots)
}

func TestOrchestrator_SuspensionCarriesLastClose(t *testing.T) {
	cal := calendar("2023-03-01", "2023-03-02", "2023-03-03")
	// 600900.SH 3 月 2 日停牌（无行情），3 日复牌。
	data := newFakeData(cal, map[string][]float64{
		"000300.SH": {4000, 4010, 4020},
		"600900.SH": {20, 0, 21},
	})
	strategies := map[string]Strategy{PatternNormal: stubStrategy{buy: true}}
	orch, err := NewOrchestrator(orchestratorConfig(), data, nil,
		stubPicker{candidates: []string{"600900.SH"}}, strategies)
	assert.NoError(t, err)

	result, err := orch.Run(context.Background(), cal[0], cal[2])
	assert.NoError(t, err)
	assert.Len(t, result.Snapshots, 3)

	// 停牌日留一条缺行情拒单，估值沿用前一日收盘。
	suspended := result.Snapshots[1]
	assert.Len(t, suspended.Rejected, 1)
	assert.Equal(t, ViolationMissingQuotation, suspended.Rejected[0].Violation)
	pos := suspended.Positions["600900.SH"]
	expect := suspended.Cash.Add(decimal.NewFromInt(20).Mul(decimal.NewFromInt(pos.Shares)))
	assert.True(t, suspended.Value.Equal(expect), "value=%s want=%s", suspended.Value, expect)

	// 复牌日恢复用当日收盘估值。
	resumed := result.Snapshots[2]
	pos = resumed.Positions["600900.SH"]
	expect = resumed.Cash.Add(decimal.NewFromInt(21).Mul(decimal.NewFromInt(pos.Shares)))
	assert.True(t, resumed.Value.Equal(expect))
}

func TestOrchestrator_MaxHoldingDaysCountsTradingDays(t *testing.T) {
	cfg := orchestratorConfig()
	cfg.MaxHoldingDays = 2
	cal := calendar("2023-03-01", "2023-03-02", "2023-03-03", "2023-03-06", "2023-03-07")
	closes := []float64{10, 10, 10, 10, 10}
	data := newFakeData(cal, map[string][]float64{
		"000300.SH": {4000, 4000, 4000, 4000, 4000},
		"000001.SZ": closes,
	})
	// 只买不卖的策略：离场只能靠硬性持有期限。
	strategies := map[string]Strategy{PatternNormal: stubStrategy{buy: true}}
	orch, err := NewOrchestrator(cfg, data, nil,
		stubPicker{candidates: []string{"000001.SZ"}}, strategies)
	assert.NoError(t, err)

	result, err := orch.Run(context.Background(), cal[0], cal[4])
	assert.NoError(t, err)

	var exits []Trade
	for _, tr := range result.Trades {
		if tr.Action == ActionSell && !tr.Rejected {
			exits = append(exits, tr)
		}
	}
	assert.NotEmpty(t, exits)
	assert.Equal(t, "max_holding_days", exits[0].Reason)
	// 3 月 1 日建仓，持有 1、2 个交易日后于第 4 个交易日（3 月 6 日）触发。
	assert.Equal(t, day("2023-03-06"), market.Day(exits[0].Date))
}

func TestOrchestrator_ContextCancelKeepsPartialResult(t *testing.T) {
	cal := calendar("2023-03-01", "2023-03-02")
	data := newFakeData(cal, map[string][]float64{"000300.SH": {4000, 4010}})
	orch, err := NewOrchestrator(orchestratorConfig(), data, nil, nil,
		map[string]Strategy{PatternNormal: stubStrategy{}})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := orch.Run(ctx, cal[0], cal[1])
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, result)
	assert.True(t, result.FinalValue.Equal(result.InitialCash))
}

func TestOrchestrator_ComplianceAuditIdempotent(t *testing.T) {
	cal := calendar("2023-03-01", "2023-03-02")
	data := newFakeData(cal, map[string][]float64{
		"000300.SH": {4000, 4010},
		"600519.SH": {100, 102},
	})
	strategies := map[string]Strategy{PatternNormal: stubStrategy{buy: true}}
	orch, err := NewOrchestrator(orchestratorConfig(), data, nil,
		stubPicker{candidates: []string{"600519.SH"}}, strategies)
	assert.NoError(t, err)

	result, err := orch.Run(context.Background(), cal[0], cal[1])
	assert.NoError(t, err)

	again := Audit(result.Trades)
	assert.Equal(t, result.Compliance, again)
	assert.Equal(t, again, Audit(result.Trades))
}

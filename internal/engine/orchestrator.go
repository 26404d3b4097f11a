package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"huice/internal/logger"
	"huice/internal/market"
)

// Orchestrator 按交易日历推进模拟：识别形态 → 选股 → 解析策略 →
// 单日交易 → 快照。核心是严格串行的状态机，一天完整结束才进入下一天。
type Orchestrator struct {
	cfg        Config
	data       MarketData
	detector   PatternDetector
	picker     Picker
	strategies map[string]Strategy

	validator *Validator
	ledger    *Ledger
	phase     *Phase

	lastClose map[string]decimal.Decimal // 持仓股票最近已知收盘价，停牌日沿用
	buyDayIdx map[string]int             // 建仓日在日历中的下标，用于持有天数
}

// NewOrchestrator 构建编排器。detector/picker 允许为空（分别降级为
// normal 形态与空候选），但没有任何策略是致命配置错误。
func NewOrchestrator(cfg Config, data MarketData, detector PatternDetector, picker Picker, strategies map[string]Strategy) (*Orchestrator, error) {
	if data == nil {
		return nil, fmt.Errorf("market data 不能为空")
	}
	if len(strategies) == 0 {
		return nil, ErrNoUsableStrategy
	}
	cfg.Normalize()
	validator := NewValidator()
	ledger := NewLedger(cfg.InitialCash, cfg.CommissionRate)
	return &Orchestrator{
		cfg:        cfg,
		data:       data,
		detector:   detector,
		picker:     picker,
		strategies: strategies,
		validator:  validator,
		ledger:     ledger,
		phase:      NewPhase(cfg, validator, ledger),
		lastClose:  make(map[string]decimal.Decimal),
		buyDayIdx:  make(map[string]int),
	}, nil
}

// Run 执行 [start, end] 区间的完整模拟。致命错误（日历缺失、无可用策略）
// 中止回测，但已产出的快照与流水保留在返回值里供排查。
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	result := &Result{InitialCash: o.cfg.InitialCash, FinalValue: o.cfg.InitialCash}
	calendar, err := o.data.TradingCalendar(ctx, start, end)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}
	if len(calendar) == 0 {
		return result, fmt.Errorf("%w: %s ~ %s 无交易日", ErrCalendarUnavailable,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	logger.Infof("[sim] 回测开始: %s ~ %s，共 %d 个交易日",
		market.Day(calendar[0]).Format("2006-01-02"),
		market.Day(calendar[len(calendar)-1]).Format("2006-01-02"), len(calendar))

	for i, date := range calendar {
		// 交易日是天然的原子单位，天与天之间允许协作式取消。
		select {
		case <-ctx.Done():
			return o.finish(result), ctx.Err()
		default:
		}
		pattern := o.detectPattern(ctx, date)
		candidates := o.pickCandidates(ctx, date)
		strat, err := o.resolveStrategy(pattern)
		if err != nil {
			return o.finish(result), err
		}
		trades := o.phase.Run(o.dayContext(ctx, i, date, pattern, strat, candidates))
		o.bookkeep(ctx, i, date, trades)

		snap, err := o.snapshot(date, pattern, trades)
		if err != nil {
			return o.finish(result), err
		}
		result.Snapshots = append(result.Snapshots, snap)
		result.Trades = append(result.Trades, trades...)
	}
	return o.finish(result), nil
}

// detectPattern 识别当日大盘形态。任何失败或低置信都降级为 normal：
// 单日的识别问题不允许打断整段回测。
func (o *Orchestrator) detectPattern(ctx context.Context, date time.Time) string {
	if o.detector == nil {
		return PatternNormal
	}
	history, err := o.data.History(ctx, o.cfg.IndexSymbol, date, o.cfg.HistoryLookback)
	if err != nil {
		logger.Warnf("[sim] %s 指数历史读取失败，按 normal 处理: %v", market.Day(date).Format("2006-01-02"), err)
		return PatternNormal
	}
	res, err := o.detector.DetectPattern(history, date)
	if err != nil {
		logger.Warnf("[sim] %s 形态识别失败，按 normal 处理: %v", market.Day(date).Format("2006-01-02"), err)
		return PatternNormal
	}
	if res.Confidence < o.cfg.MinConfidence {
		logger.Debugf("[sim] %s 形态 %s 置信度 %.2f 过低，回退 normal",
			market.Day(date).Format("2006-01-02"), res.Pattern, res.Confidence)
		return PatternNormal
	}
	return res.Pattern
}

func (o *Orchestrator) pickCandidates(ctx context.Context, date time.Time) []string {
	if o.picker == nil {
		return nil
	}
	candidates, err := o.picker.PickCandidates(ctx, date)
	if err != nil {
		logger.Warnf("[sim] %s 选股失败，当日不买入: %v", market.Day(date).Format("2006-01-02"), err)
		return nil
	}
	return candidates
}

// resolveStrategy 按形态取策略；未映射的形态回退到配置的缺省策略。
// 连缺省都不存在时无交易逻辑可用，中止回测。
func (o *Orchestrator) resolveStrategy(pattern string) (Strategy, error) {
	if strat, ok := o.strategies[pattern]; ok {
		return strat, nil
	}
	if strat, ok := o.strategies[o.cfg.DefaultPattern]; ok {
		logger.Debugf("[sim] 形态 %s 无对应策略，使用缺省 %s", pattern, o.cfg.DefaultPattern)
		return strat, nil
	}
	return nil, fmt.Errorf("%w: 形态 %s 且缺省 %s 均未配置", ErrNoUsableStrategy, pattern, o.cfg.DefaultPattern)
}

func (o *Orchestrator) dayContext(ctx context.Context, dayIdx int, date time.Time, pattern string, strat Strategy, candidates []string) DayContext {
	return DayContext{
		Date:       date,
		Pattern:    pattern,
		Strategy:   strat,
		Candidates: candidates,
		Quote: func(symbol string) (market.Bar, error) {
			return o.data.Bar(ctx, symbol, date)
		},
		History: func(symbol string) []market.Bar {
			bars, err := o.data.History(ctx, symbol, date, o.cfg.HistoryLookback)
			if err != nil {
				logger.Debugf("[sim] %s 历史读取失败: %v", symbol, err)
				return nil
			}
			return bars
		},
		HeldDays: func(symbol string) int {
			if idx, ok := o.buyDayIdx[symbol]; ok {
				return dayIdx - idx
			}
			// 校验器之外建立的持仓按模拟起点起算。
			return dayIdx
		},
	}
}

// bookkeep 维护建仓日下标与最近收盘价缓存。
func (o *Orchestrator) bookkeep(ctx context.Context, dayIdx int, date time.Time, trades []Trade) {
	for _, t := range trades {
		if t.Rejected {
			continue
		}
		switch t.Action {
		case ActionBuy:
			if _, ok := o.buyDayIdx[t.Symbol]; !ok {
				o.buyDayIdx[t.Symbol] = dayIdx
			}
			o.lastClose[t.Symbol] = t.Price
		case ActionSell:
			// 卖出段只会整仓卖出；同日先卖后买的股票随后由买入分支重置。
			delete(o.buyDayIdx, t.Symbol)
			delete(o.lastClose, t.Symbol)
		}
	}
	// 仍在持仓的股票刷新当日收盘价；停牌缺数据时沿用上一个已知价。
	for _, sym := range o.ledger.Symbols() {
		bar, err := o.data.Bar(ctx, sym, date)
		if err != nil {
			continue
		}
		o.lastClose[sym] = decFromFloat(bar.Close)
	}
}

func (o *Orchestrator) snapshot(date time.Time, pattern string, trades []Trade) (DailySnapshot, error) {
	prices := make(map[string]decimal.Decimal, o.ledger.OpenCount())
	for _, sym := range o.ledger.Symbols() {
		if price, ok := o.lastClose[sym]; ok {
			prices[sym] = price
		}
	}
	value, err := o.ledger.Value(prices)
	if err != nil {
		return DailySnapshot{}, fmt.Errorf("%s 估值失败: %w", market.Day(date).Format("2006-01-02"), err)
	}
	snap := DailySnapshot{
		Date:      market.Day(date),
		Pattern:   pattern,
		Cash:      o.ledger.Cash(),
		Positions: o.ledger.Positions(),
		Value:     value,
	}
	for _, t := range trades {
		if t.Rejected {
			snap.Rejected = append(snap.Rejected, t)
		} else {
			snap.Executed = append(snap.Executed, t)
		}
	}
	return snap, nil
}

// finish 结算收益标量并生成合规报告；无论正常结束还是中途失败都会执行，
// 保证部分结果可检视。
func (o *Orchestrator) finish(result *Result) *Result {
	if n := len(result.Snapshots); n > 0 {
		result.FinalValue = result.Snapshots[n-1].Value
	}
	if result.InitialCash.IsPositive() {
		result.TotalReturn = decToFloat(result.FinalValue.Div(result.InitialCash).Sub(decOne))
	}
	result.Compliance = Audit(result.Trades)
	return result
}

// Ledger 暴露只读入口，供服务层查询最终持仓。
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Validator 暴露只读入口，供诊断查询 T+1 锁定列表。
func (o *Orchestrator) Validator() *Validator {
	return o.validator
}

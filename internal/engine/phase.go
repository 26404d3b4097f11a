package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"huice/internal/logger"
	"huice/internal/market"
)

// DayContext 汇集单个交易日需要的外部输入，全部以闭包形式注入，
// 让交易阶段保持可独立测试。
type DayContext struct {
	Date       time.Time
	Pattern    string
	Strategy   Strategy
	Candidates []string // 选股器给出的候选，按打分降序

	Quote    func(symbol string) (market.Bar, error)
	History  func(symbol string) []market.Bar
	HeldDays func(symbol string) int // 已持有的交易日数
}

// Phase 执行单日交易：先卖后买，两段严格有序。
// 卖出段遍历全部持仓（按代码升序），买入段按候选排名消耗剩余仓位槽。
type Phase struct {
	cfg       Config
	validator *Validator
	ledger    *Ledger
}

func NewPhase(cfg Config, v *Validator, l *Ledger) *Phase {
	cfg.Normalize()
	return &Phase{cfg: cfg, validator: v, ledger: l}
}

// Run 产生并入账当日全部委托，返回按提出顺序排列的流水（含拒单）。
func (p *Phase) Run(day DayContext) []Trade {
	trades := p.sellPass(day)
	trades = append(trades, p.buyPass(day)...)
	return trades
}

func (p *Phase) sellPass(day DayContext) []Trade {
	var trades []Trade
	for _, sym := range p.ledger.Symbols() {
		pos, _ := p.ledger.Position(sym)
		bar, err := day.Quote(sym)
		if err != nil {
			// 停牌/缺数据：今天跳过这只股票，拒单入账以便审计。
			trades = append(trades, Trade{
				Date: day.Date, Symbol: sym, Action: ActionSell, Quantity: pos.Shares,
				Reason: "exit_check", Rejected: true, Violation: ViolationMissingQuotation,
				Note: err.Error(),
			})
			continue
		}
		price := decFromFloat(bar.Close)
		reason := p.exitReason(day, sym, pos, price)
		if reason == "" {
			continue
		}
		t := Trade{Date: day.Date, Symbol: sym, Action: ActionSell,
			Quantity: pos.Shares, Price: price, Reason: reason}
		trades = append(trades, p.submitSell(day.Date, t))
	}
	return trades
}

// submitSell 校验并入账一笔卖出委托。持仓不足即构成卖空企图，
// 与 T+1 违规一样记拒单后继续。
func (p *Phase) submitSell(asOf time.Time, t Trade) Trade {
	pos, ok := p.ledger.Position(t.Symbol)
	if !ok || pos.Shares < t.Quantity {
		t.Rejected = true
		t.Violation = ViolationShortSell
		t.Note = fmt.Sprintf("held=%d want=%d", pos.Shares, t.Quantity)
		return t
	}
	if err := p.validator.Validate(t, asOf); err != nil {
		return rejected(t, err)
	}
	if err := p.ledger.Apply(&t); err != nil {
		return rejected(t, err)
	}
	if t.Quantity >= pos.Shares {
		// 整仓卖出，清除 T+1 跟踪；部分卖出保留原时钟。
		p.validator.RecordSell(t.Symbol)
	}
	return t
}

// exitReason 返回触发卖出的原因标签，空串表示继续持有。
// 硬性风控（止盈/止损/持有超限）与策略信号取「或」：
// 策略再保守也不能把组合困在无界回撤里。
func (p *Phase) exitReason(day DayContext, sym string, pos Position, price decimal.Decimal) string {
	switch {
	case price.GreaterThanOrEqual(takeProfitPrice(pos.AvgCost, p.cfg.HardTakeProfit)):
		return "hard_take_profit"
	case price.LessThanOrEqual(stopLossPrice(pos.AvgCost, p.cfg.HardStopLoss)):
		return "hard_stop_loss"
	case day.HeldDays(sym) > p.cfg.MaxHoldingDays:
		return "max_holding_days"
	case day.Strategy.ShouldSell(sym, day.History(sym), pos):
		return "strategy_exit"
	}
	return ""
}

func (p *Phase) buyPass(day DayContext) []Trade {
	open := p.ledger.OpenCount()
	if open >= p.cfg.MaxPositions || len(day.Candidates) == 0 {
		return nil
	}
	var trades []Trade
	slots := p.cfg.MaxPositions - open
	remaining := p.ledger.Cash()
	for _, sym := range day.Candidates {
		if slots <= 0 {
			break
		}
		if _, held := p.ledger.Position(sym); held {
			continue
		}
		bar, err := day.Quote(sym)
		if err != nil {
			// 无行情无法定价定量，流水里的 quantity=0 表示委托未成形。
			trades = append(trades, Trade{
				Date: day.Date, Symbol: sym, Action: ActionBuy,
				Reason: "rank_entry", Rejected: true, Violation: ViolationMissingQuotation,
				Note: fmt.Sprintf("无行情，委托未定量（quantity=0）: %v", err),
			})
			continue
		}
		// 入场缺口过滤：开盘低于昨收的候选当日出局，不占用仓位槽。
		if bar.Open < bar.PrevClose {
			logger.Debugf("[phase] %s %s 低开缺口，放弃入场", day.Date.Format("2006-01-02"), sym)
			continue
		}
		signal := day.Strategy.ShouldBuy(sym, day.History(sym))
		price := decFromFloat(bar.Close)
		if !price.IsPositive() {
			continue
		}
		// 剩余资金对剩余槽位等权分配，向下取整到一手（100 股）。
		allocation := remaining.Div(decimal.NewFromInt(int64(slots)))
		shares := allocation.Div(price).Floor().IntPart()
		shares -= shares % p.cfg.LotSize
		if shares < p.cfg.LotSize {
			logger.Debugf("[phase] %s %s 资金不足一手，跳过", day.Date.Format("2006-01-02"), sym)
			continue
		}
		t := Trade{Date: day.Date, Symbol: sym, Action: ActionBuy,
			Quantity: shares, Price: price, Reason: "rank_entry",
			Note: fmt.Sprintf("pattern=%s should_buy=%v", day.Pattern, signal)}
		if err := p.validator.Validate(t, day.Date); err != nil {
			trades = append(trades, rejected(t, err))
			continue
		}
		if err := p.ledger.Apply(&t); err != nil {
			trades = append(trades, rejected(t, err))
			continue
		}
		p.validator.RecordBuy(sym, day.Date)
		slots--
		remaining = p.ledger.Cash()
		trades = append(trades, t)
	}
	return trades
}

func rejected(t Trade, err error) Trade {
	t.Rejected = true
	if v, ok := AsViolation(err); ok {
		t.Violation = v.Kind
		t.Note = v.Detail
	} else {
		t.Note = err.Error()
	}
	return t
}

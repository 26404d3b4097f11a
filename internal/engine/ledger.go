package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger 独占持有现金与持仓表。只信任已通过校验的委托，
// 自身只保证记账算术：全有或全无，现金不为负，份额清零即删仓。
type Ledger struct {
	cash           decimal.Decimal
	positions      map[string]*Position
	commissionRate decimal.Decimal
}

func NewLedger(initialCash, commissionRate decimal.Decimal) *Ledger {
	return &Ledger{
		cash:           initialCash,
		positions:      make(map[string]*Position),
		commissionRate: commissionRate,
	}
}

// Apply 将一笔已被校验器接受的委托入账，并回填佣金（与卖出的成本均价）。
// 买入现金不足时返回 InsufficientCash 且不改动任何状态。
func (l *Ledger) Apply(t *Trade) error {
	switch t.Action {
	case ActionBuy:
		return l.applyBuy(t)
	case ActionSell:
		return l.applySell(t)
	default:
		panic(fmt.Sprintf("ledger: 未知交易方向 %q", t.Action))
	}
}

func (l *Ledger) applyBuy(t *Trade) error {
	cost := t.Amount()
	commission := decimal.Max(cost.Mul(l.commissionRate), decimal.Zero)
	total := cost.Add(commission)
	if total.GreaterThan(l.cash) {
		return &Violation{Kind: ViolationInsufficientCash, Symbol: t.Symbol,
			Detail: fmt.Sprintf("need=%s cash=%s", total.String(), l.cash.String())}
	}
	l.cash = l.cash.Sub(total)
	t.Commission = commission

	qty := decimal.NewFromInt(t.Quantity)
	if pos, ok := l.positions[t.Symbol]; ok {
		// 加权平均合并。建仓日期不覆盖：T+1 时钟由校验器独立记账。
		oldShares := decimal.NewFromInt(pos.Shares)
		newShares := pos.Shares + t.Quantity
		pos.AvgCost = oldShares.Mul(pos.AvgCost).Add(qty.Mul(t.Price)).
			Div(decimal.NewFromInt(newShares))
		pos.Shares = newShares
		return nil
	}
	l.positions[t.Symbol] = &Position{
		Symbol:     t.Symbol,
		Shares:     t.Quantity,
		AvgCost:    t.Price,
		AcquiredAt: t.Date,
	}
	return nil
}

func (l *Ledger) applySell(t *Trade) error {
	pos, ok := l.positions[t.Symbol]
	if !ok || pos.Shares < t.Quantity {
		// 超卖只可能来自调用方的选股/校验逻辑失误，立即失败。
		panic(fmt.Sprintf("ledger: %s 超卖 %d 股", t.Symbol, t.Quantity))
	}
	proceeds := t.Amount()
	commission := decimal.Max(proceeds.Mul(l.commissionRate), decimal.Zero)
	l.cash = l.cash.Add(proceeds.Sub(commission))
	t.Commission = commission
	t.CostBasis = pos.AvgCost

	pos.Shares -= t.Quantity
	if pos.Shares <= 0 {
		delete(l.positions, t.Symbol)
	}
	return nil
}

// Cash 返回当前现金余额。
func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

// Position 返回某只股票的持仓副本。
func (l *Ledger) Position(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions 返回持仓表的副本，调用方不可能绕过记账方法改动状态。
func (l *Ledger) Positions() map[string]Position {
	out := make(map[string]Position, len(l.positions))
	for sym, pos := range l.positions {
		out[sym] = *pos
	}
	return out
}

// Symbols 返回持仓股票代码（升序，保证遍历顺序可复现）。
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// OpenCount 返回在持仓位数。
func (l *Ledger) OpenCount() int {
	return len(l.positions)
}

// Value 按给定价格表计算组合市值：现金 + Σ 份额×价格。
// 持仓股票缺价是致命的查价错误，调用方必须提供完整价格表。
func (l *Ledger) Value(prices map[string]decimal.Decimal) (decimal.Decimal, error) {
	total := l.cash
	for sym, pos := range l.positions {
		price, ok := prices[sym]
		if !ok {
			return decimal.Zero, fmt.Errorf("%s: %w", sym, ErrPriceMissing)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(pos.Shares)))
	}
	return total, nil
}

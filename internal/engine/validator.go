package engine

import (
	"fmt"
	"sort"
	"time"

	"huice/internal/market"
)

// Validator 是 T+1 交收规则的状态机：按股票记录最近一次未平的买入日期。
// 这张表是「这只股票何时建仓」的唯一记忆，独占持有，只通过下面的方法变更。
type Validator struct {
	lastBuy map[string]time.Time
}

func NewValidator() *Validator {
	return &Validator{lastBuy: make(map[string]time.Time)}
}

// Validate 校验一笔委托。规则按序：数量非法 → T+1 交收。
// 校验本身无副作用；接受后的状态变更由调用方通过 RecordBuy/RecordSell 完成。
func (v *Validator) Validate(t Trade, asOf time.Time) error {
	if t.Quantity <= 0 {
		return &Violation{Kind: ViolationInvalidQuantity, Symbol: t.Symbol,
			Detail: fmt.Sprintf("quantity=%d", t.Quantity)}
	}
	switch t.Action {
	case ActionBuy:
		return nil
	case ActionSell:
		// 没有买入记录的股票永远可卖（覆盖在校验器之外建立的持仓）。
		last, ok := v.lastBuy[t.Symbol]
		if !ok {
			return nil
		}
		// 按自然日比较：买入当日及之前不可卖出。
		if !market.Day(asOf).After(market.Day(last)) {
			return &Violation{Kind: ViolationSettlement, Symbol: t.Symbol,
				Detail: fmt.Sprintf("last_buy=%s", market.Day(last).Format("2006-01-02"))}
		}
		return nil
	default:
		// 未知方向属于调用方编程错误，直接失败而不是静默放行。
		panic(fmt.Sprintf("validator: 未知交易方向 %q", t.Action))
	}
}

// RecordBuy 记录买入，覆盖旧日期：新买入总是重置该股票的 T+1 时钟。
func (v *Validator) RecordBuy(symbol string, date time.Time) {
	v.lastBuy[symbol] = market.Day(date)
}

// RecordSell 在仓位完全平掉后清除跟踪。部分卖出不调用本方法：
// 剩余份额仍受原 T+1 时钟约束。
func (v *Validator) RecordSell(symbol string) {
	delete(v.lastBuy, symbol)
}

// LastBuyDate 返回某只股票最近的买入日期。
func (v *Validator) LastBuyDate(symbol string) (time.Time, bool) {
	d, ok := v.lastBuy[symbol]
	return d, ok
}

// Unsellable 返回截至 asOf 仍被 T+1 锁定的股票（升序），仅作诊断查询。
func (v *Validator) Unsellable(asOf time.Time) []string {
	day := market.Day(asOf)
	var out []string
	for sym, last := range v.lastBuy {
		if !day.After(market.Day(last)) {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

package strategy

import (
	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/market"
)

// BullParams 是趋势市策略的参数。
type BullParams struct {
	FastEMA int `json:"fast_ema"`
	SlowEMA int `json:"slow_ema"`
}

func (p *BullParams) normalize() {
	if p.FastEMA <= 0 {
		p.FastEMA = 10
	}
	if p.SlowEMA <= 0 {
		p.SlowEMA = 30
	}
}

// Bull 是牛市顺势策略：快线在慢线上方持有，死叉离场。
type Bull struct {
	p BullParams
}

func NewBull(p BullParams) *Bull {
	p.normalize()
	return &Bull{p: p}
}

func (s *Bull) Name() string { return "bull" }

func (s *Bull) ShouldBuy(symbol string, history []market.Bar) bool {
	if len(history) < s.p.SlowEMA+1 {
		return false
	}
	closes := market.Closes(history)
	fast := talib.Ema(closes, s.p.FastEMA)
	slow := talib.Ema(closes, s.p.SlowEMA)
	last := len(closes) - 1
	return fast[last] > slow[last]
}

func (s *Bull) ShouldSell(symbol string, history []market.Bar, pos engine.Position) bool {
	if len(history) < s.p.SlowEMA+1 {
		return false
	}
	closes := market.Closes(history)
	fast := talib.Ema(closes, s.p.FastEMA)
	slow := talib.Ema(closes, s.p.SlowEMA)
	last := len(closes) - 1
	return fast[last] < slow[last]
}

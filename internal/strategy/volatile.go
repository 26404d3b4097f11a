package strategy

import (
	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/market"
)

// VolatileParams 是高波动市均值回归策略的参数。
type VolatileParams struct {
	RSIPeriod  int     `json:"rsi_period"`
	BuyRSI     float64 `json:"buy_rsi"`
	SellRSI    float64 `json:"sell_rsi"`
	TakeProfit float64 `json:"take_profit"`
}

func (p *VolatileParams) normalize() {
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.BuyRSI <= 0 {
		p.BuyRSI = 25
	}
	if p.SellRSI <= 0 {
		p.SellRSI = 60
	}
	if p.TakeProfit <= 0 {
		p.TakeProfit = 0.05
	}
}

// Volatile 是高波动市均值回归策略：深度超卖才进场，回到中性区或达标即离场。
type Volatile struct {
	p VolatileParams
}

func NewVolatile(p VolatileParams) *Volatile {
	p.normalize()
	return &Volatile{p: p}
}

func (s *Volatile) Name() string { return "volatile" }

func (s *Volatile) ShouldBuy(symbol string, history []market.Bar) bool {
	if len(history) < s.p.RSIPeriod+1 {
		return false
	}
	rsi := talib.Rsi(market.Closes(history), s.p.RSIPeriod)
	return rsi[len(rsi)-1] < s.p.BuyRSI
}

func (s *Volatile) ShouldSell(symbol string, history []market.Bar, pos engine.Position) bool {
	if gainPct(pos, lastClose(history)) >= s.p.TakeProfit {
		return true
	}
	if len(history) < s.p.RSIPeriod+1 {
		return false
	}
	rsi := talib.Rsi(market.Closes(history), s.p.RSIPeriod)
	return rsi[len(rsi)-1] > s.p.SellRSI
}

package strategy

import (
	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/market"
)

// BearParams 是熊市防御策略的参数。
type BearParams struct {
	RSIPeriod   int     `json:"rsi_period"`
	OversoldRSI float64 `json:"oversold_rsi"`
	ExitRSI     float64 `json:"exit_rsi"`
	TakeProfit  float64 `json:"take_profit"` // 反弹目标，达到即落袋
}

func (p *BearParams) normalize() {
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.OversoldRSI <= 0 {
		p.OversoldRSI = 30
	}
	if p.ExitRSI <= 0 {
		p.ExitRSI = 55
	}
	if p.TakeProfit <= 0 {
		p.TakeProfit = 0.03
	}
}

// Bear 是熊市防御策略：只做超跌反弹，小利即走。
type Bear struct {
	p BearParams
}

func NewBear(p BearParams) *Bear {
	p.normalize()
	return &Bear{p: p}
}

func (s *Bear) Name() string { return "bear" }

func (s *Bear) ShouldBuy(symbol string, history []market.Bar) bool {
	if len(history) < s.p.RSIPeriod+1 {
		return false
	}
	rsi := talib.Rsi(market.Closes(history), s.p.RSIPeriod)
	return rsi[len(rsi)-1] < s.p.OversoldRSI
}

func (s *Bear) ShouldSell(symbol string, history []market.Bar, pos engine.Position) bool {
	if gainPct(pos, lastClose(history)) >= s.p.TakeProfit {
		return true
	}
	if len(history) < s.p.RSIPeriod+1 {
		return false
	}
	rsi := talib.Rsi(market.Closes(history), s.p.RSIPeriod)
	return rsi[len(rsi)-1] > s.p.ExitRSI
}

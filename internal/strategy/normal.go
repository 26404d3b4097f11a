package strategy

import (
	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/market"
)

// NormalParams 是震荡市缺省策略的参数。
type NormalParams struct {
	MAPeriod  int     `json:"ma_period"`
	RSIPeriod int     `json:"rsi_period"`
	BuyRSIMax float64 `json:"buy_rsi_max"`
	SellRSI   float64 `json:"sell_rsi"`
}

func (p *NormalParams) normalize() {
	if p.MAPeriod <= 0 {
		p.MAPeriod = 20
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.BuyRSIMax <= 0 {
		p.BuyRSIMax = 70
	}
	if p.SellRSI <= 0 {
		p.SellRSI = 78
	}
}

// Normal 是震荡市策略：价格站上均线且未超买才买，跌破均线或超买即卖。
type Normal struct {
	p NormalParams
}

func NewNormal(p NormalParams) *Normal {
	p.normalize()
	return &Normal{p: p}
}

func (s *Normal) Name() string { return "normal" }

func (s *Normal) ShouldBuy(symbol string, history []market.Bar) bool {
	need := s.p.MAPeriod
	if s.p.RSIPeriod+1 > need {
		need = s.p.RSIPeriod + 1
	}
	if len(history) < need {
		return false
	}
	closes := market.Closes(history)
	ma := talib.Ma(closes, s.p.MAPeriod, talib.SMA)
	rsi := talib.Rsi(closes, s.p.RSIPeriod)
	last := len(closes) - 1
	return closes[last] > ma[last] && rsi[last] < s.p.BuyRSIMax
}

func (s *Normal) ShouldSell(symbol string, history []market.Bar, pos engine.Position) bool {
	if len(history) < s.p.MAPeriod {
		return false
	}
	closes := market.Closes(history)
	ma := talib.Ma(closes, s.p.MAPeriod, talib.SMA)
	last := len(closes) - 1
	if closes[last] < ma[last] {
		return true
	}
	if len(history) > s.p.RSIPeriod {
		rsi := talib.Rsi(closes, s.p.RSIPeriod)
		if rsi[last] > s.p.SellRSI {
			return true
		}
	}
	return false
}

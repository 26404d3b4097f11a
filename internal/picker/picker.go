package picker

import (
	"context"
	"fmt"
	"sort"
	"time"

	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/logger"
	"huice/internal/market"
)

// Config 描述动量选股器：在固定股票池内按 N 日动量排序取前 TopN。
type Config struct {
	Universe     []string `json:"universe"`
	TopN         int      `json:"top_n"`
	MomentumDays int      `json:"momentum_days"`
	MinTurnover  float64  `json:"min_turnover"` // 当日成交额下限，过滤流动性差的票
}

func (c *Config) normalize() {
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.MomentumDays <= 0 {
		c.MomentumDays = 20
	}
}

// Picker 是缺省的候选股生成器。打分内部刻意简单：
// 引擎只依赖「按排名给出的候选序列」这一边界。
type Picker struct {
	cfg  Config
	data engine.MarketData
}

func NewPicker(cfg Config, data engine.MarketData) (*Picker, error) {
	if data == nil {
		return nil, fmt.Errorf("market data 不能为空")
	}
	cfg.normalize()
	return &Picker{cfg: cfg, data: data}, nil
}

type scored struct {
	symbol string
	score  float64
}

// PickCandidates 返回当日候选（按动量降序，同分按代码升序保证可复现）。
func (p *Picker) PickCandidates(ctx context.Context, date time.Time) ([]string, error) {
	if len(p.cfg.Universe) == 0 {
		return nil, nil
	}
	lookback := p.cfg.MomentumDays + 1
	var ranked []scored
	for _, sym := range p.cfg.Universe {
		history, err := p.data.History(ctx, sym, date, lookback)
		if err != nil {
			logger.Debugf("[picker] %s 历史读取失败: %v", sym, err)
			continue
		}
		if len(history) < lookback {
			continue
		}
		latest := history[len(history)-1]
		if !market.SameDay(latest.Time(), date) {
			// 当日停牌的票不做候选。
			continue
		}
		if p.cfg.MinTurnover > 0 && latest.Turnover < p.cfg.MinTurnover {
			continue
		}
		roc := talib.Roc(market.Closes(history), p.cfg.MomentumDays)
		score := roc[len(roc)-1]
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{symbol: sym, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].symbol < ranked[j].symbol
	})
	if len(ranked) > p.cfg.TopN {
		ranked = ranked[:p.cfg.TopN]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.symbol
	}
	return out, nil
}

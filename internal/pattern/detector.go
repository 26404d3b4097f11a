package pattern

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"huice/internal/engine"
	"huice/internal/market"
)

// Config 控制大盘形态分类的各项阈值。
type Config struct {
	FastMA      int     `json:"fast_ma"`
	SlowMA      int     `json:"slow_ma"`
	ATRPeriod   int     `json:"atr_period"`
	TrendMargin float64 `json:"trend_margin"`  // 快慢线偏离比例，超过即认定趋势
	VolatilePct float64 `json:"volatile_pct"`  // ATR/收盘价高于此值判为高波动
}

func (c *Config) normalize() {
	if c.FastMA <= 0 {
		c.FastMA = 20
	}
	if c.SlowMA <= 0 {
		c.SlowMA = 60
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.TrendMargin <= 0 {
		c.TrendMargin = 0.02
	}
	if c.VolatilePct <= 0 {
		c.VolatilePct = 0.025
	}
}

// Detector 用指数均线与 ATR 把大盘分类为 {normal, bull, bear, volatile}。
// 置信度随信号偏离阈值的幅度增长，由引擎决定是否采信。
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	cfg.normalize()
	return &Detector{cfg: cfg}
}

func (d *Detector) DetectPattern(history []market.Bar, date time.Time) (engine.PatternResult, error) {
	need := d.cfg.SlowMA + 1
	if len(history) < need {
		return engine.PatternResult{}, fmt.Errorf("指数历史不足: 有 %d 根，需要 %d", len(history), need)
	}
	closes := market.Closes(history)
	fast := talib.Ma(closes, d.cfg.FastMA, talib.SMA)
	slow := talib.Ma(closes, d.cfg.SlowMA, talib.SMA)
	atr := talib.Atr(market.Highs(history), market.Lows(history), closes, d.cfg.ATRPeriod)

	last := len(closes) - 1
	price := closes[last]
	if price <= 0 || slow[last] <= 0 {
		return engine.PatternResult{}, fmt.Errorf("指数价格异常: close=%.4f", price)
	}
	volatility := atr[last] / price
	if volatility >= d.cfg.VolatilePct {
		conf := clamp(volatility/d.cfg.VolatilePct-1, 0, 1)
		return engine.PatternResult{Pattern: engine.PatternVolatile, Confidence: 0.5 + conf/2}, nil
	}
	spread := (fast[last] - slow[last]) / slow[last]
	switch {
	case spread >= d.cfg.TrendMargin:
		conf := clamp(spread/d.cfg.TrendMargin-1, 0, 1)
		return engine.PatternResult{Pattern: engine.PatternBull, Confidence: 0.5 + conf/2}, nil
	case spread <= -d.cfg.TrendMargin:
		conf := clamp(math.Abs(spread)/d.cfg.TrendMargin-1, 0, 1)
		return engine.PatternResult{Pattern: engine.PatternBear, Confidence: 0.5 + conf/2}, nil
	}
	// 趋势不明朗时 normal 的置信度随偏离收窄而提高。
	conf := clamp(1-math.Abs(spread)/d.cfg.TrendMargin, 0, 1)
	return engine.PatternResult{Pattern: engine.PatternNormal, Confidence: 0.5 + conf/2}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

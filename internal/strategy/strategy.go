// Package strategy 提供按市场形态切换的缺省买卖策略。
// 形态集合封闭（normal/bull/bear/volatile），每种策略携带自己的参数结构，
// 统一通过 engine.Strategy 接口分发。
package strategy

import (
	"github.com/shopspring/decimal"

	"huice/internal/engine"
	"huice/internal/market"
)

var decOne = decimal.NewFromInt(1)

// Profiles 汇集四种形态的策略参数与缺省形态键，由配置文件加载。
type Profiles struct {
	Default  string         `json:"default"`
	Normal   NormalParams   `json:"normal"`
	Bull     BullParams     `json:"bull"`
	Bear     BearParams     `json:"bear"`
	Volatile VolatileParams `json:"volatile"`
}

// Build 按 Profiles 构建形态→策略映射，供编排器解析。
func Build(p Profiles) map[string]engine.Strategy {
	return map[string]engine.Strategy{
		engine.PatternNormal:   NewNormal(p.Normal),
		engine.PatternBull:     NewBull(p.Bull),
		engine.PatternBear:     NewBear(p.Bear),
		engine.PatternVolatile: NewVolatile(p.Volatile),
	}
}

// DefaultPattern 返回配置的缺省形态键，空配置回退 normal。
func (p Profiles) DefaultPattern() string {
	if p.Default == "" {
		return engine.PatternNormal
	}
	return p.Default
}

// gainPct 计算现价相对持仓均价的涨跌幅（精确小数算后转 float 比较）。
func gainPct(pos engine.Position, price float64) float64 {
	if !pos.AvgCost.IsPositive() || price <= 0 {
		return 0
	}
	gain := decimal.NewFromFloat(price).Div(pos.AvgCost).Sub(decOne)
	f, _ := gain.Float64()
	return f
}

// lastClose 返回历史序列的最新收盘价，数据不足时返回 0。
func lastClose(history []market.Bar) float64 {
	if len(history) == 0 {
		return 0
	}
	return history[len(history)-1].Close
}

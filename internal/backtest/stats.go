package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"huice/internal/engine"
)

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// buildStats 从引擎结果计算展示用指标。胜负按卖出成交价对持仓均价比较，
// 最大回撤按每日净值序列的峰值回撤计。
func buildStats(result *engine.Result, initialCash float64) RunStats {
	stats := RunStats{FinishedAt: time.Now()}
	if result == nil {
		return stats
	}
	stats.FinalValue = result.FinalValue.InexactFloat64()
	stats.TotalReturn = result.TotalReturn
	stats.Snapshots = len(result.Snapshots)
	stats.ComplianceRate = result.Compliance.ComplianceRate
	stats.T1Violations = result.Compliance.SettlementViolations
	stats.ShortSellBlocks = result.Compliance.ShortSellViolations

	for _, t := range result.Trades {
		if t.Rejected {
			stats.RejectedTrades++
			continue
		}
		stats.Trades++
		if t.Action != engine.ActionSell {
			continue
		}
		if t.Price.GreaterThan(t.CostBasis) {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	if closed := stats.Wins + stats.Losses; closed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(closed)
	}

	peak := initialCash
	for _, snap := range result.Snapshots {
		value := snap.Value.InexactFloat64()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > stats.MaxDrawdownPct {
				stats.MaxDrawdownPct = dd
			}
		}
	}
	return stats
}

package engine

// Audit 对完整流水做一次只读合规统计。不触碰任何在线状态，
// 对同一份流水重复执行结果完全一致。
func Audit(trades []Trade) ComplianceReport {
	report := ComplianceReport{TotalTrades: len(trades), ComplianceRate: 1.0}
	for _, t := range trades {
		if !t.Rejected {
			continue
		}
		switch t.Violation {
		case ViolationSettlement:
			report.SettlementViolations++
		case ViolationShortSell:
			report.ShortSellViolations++
		default:
			// 资金不足、缺行情等不属于监管违规，不计入合规率。
			continue
		}
		report.Violations = append(report.Violations, ViolationRecord{Trade: t, Kind: t.Violation})
	}
	if report.TotalTrades > 0 {
		violations := report.SettlementViolations + report.ShortSellViolations
		report.ComplianceRate = float64(report.TotalTrades-violations) / float64(report.TotalTrades)
	}
	return report
}

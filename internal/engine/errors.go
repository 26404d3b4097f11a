package engine

import (
	"errors"
	"fmt"
)

// ViolationKind 区分可恢复的拒单原因。拒单只丢弃当笔委托，回测继续。
type ViolationKind string

const (
	ViolationInvalidQuantity  ViolationKind = "invalid_quantity"
	ViolationSettlement       ViolationKind = "settlement_violation" // T+1
	ViolationShortSell        ViolationKind = "short_sell_attempt"
	ViolationInsufficientCash ViolationKind = "insufficient_cash"
	ViolationMissingQuotation ViolationKind = "missing_quotation"
)

// Violation 是校验/记账层的可恢复错误，携带拒单原因。
type Violation struct {
	Kind   ViolationKind
	Symbol string
	Detail string
}

func (v *Violation) Error() string {
	if v.Detail == "" {
		return fmt.Sprintf("%s: %s", v.Symbol, v.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", v.Symbol, v.Kind, v.Detail)
}

// AsViolation 提取错误链中的 Violation。
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// 配置层的致命错误：没有日历或没有任何可用策略时整个回测无法进行。
var (
	ErrCalendarUnavailable = errors.New("交易日历不可用")
	ErrNoUsableStrategy    = errors.New("没有任何可用策略")
	ErrPriceMissing        = errors.New("持仓股票缺少估值价格")
)

package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"huice/internal/market"
)

// Action 表示交易方向。A 股禁止卖空，方向只有买入与卖出。
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// 市场形态标签，策略按形态切换（封闭集合）。
const (
	PatternNormal   = "normal"
	PatternBull     = "bull"
	PatternBear     = "bear"
	PatternVolatile = "volatile"
)

// Trade 是交易流水中的一条记录。被拒绝的委托同样入账（Rejected=true），
// 但绝不会改变资金与持仓。
type Trade struct {
	Date       time.Time       `json:"date"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	CostBasis  decimal.Decimal `json:"cost_basis"` // 卖出时的持仓均价，买入为零
	Reason     string          `json:"reason"`
	Rejected   bool            `json:"rejected"`
	Violation  ViolationKind   `json:"violation,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Amount 返回成交金额（价格 × 数量，不含佣金）。
func (t Trade) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Position 表示一笔在持仓位。份额恒为正，清零即从持仓表删除。
type Position struct {
	Symbol     string          `json:"symbol"`
	Shares     int64           `json:"shares"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	AcquiredAt time.Time       `json:"acquired_at"`
}

// DailySnapshot 是某个交易日收盘后的组合快照，追加后不再修改。
type DailySnapshot struct {
	Date      time.Time           `json:"date"`
	Pattern   string              `json:"pattern"`
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Executed  []Trade             `json:"executed"`
	Rejected  []Trade             `json:"rejected"`
	Value     decimal.Decimal     `json:"value"`
}

// ViolationRecord 是合规报告中的一条明细。
type ViolationRecord struct {
	Trade Trade         `json:"trade"`
	Kind  ViolationKind `json:"kind"`
}

// ComplianceReport 汇总整段流水的监管合规情况。
type ComplianceReport struct {
	TotalTrades          int               `json:"total_trades"`
	SettlementViolations int               `json:"settlement_violations"`
	ShortSellViolations  int               `json:"short_sell_violations"`
	Violations           []ViolationRecord `json:"violations"`
	ComplianceRate       float64           `json:"compliance_rate"`
}

// Result 是一次完整模拟的输出：快照序列、完整流水、合规报告与收益标量。
// 模拟中途失败时快照与流水保留到失败点。
type Result struct {
	Snapshots   []DailySnapshot  `json:"snapshots"`
	Trades      []Trade          `json:"trades"`
	Compliance  ComplianceReport `json:"compliance"`
	InitialCash decimal.Decimal  `json:"initial_cash"`
	FinalValue  decimal.Decimal  `json:"final_value"`
	TotalReturn float64          `json:"total_return"`
}

// PatternResult 是形态识别的输出。置信度过低时引擎回退为 normal。
type PatternResult struct {
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
}

// Strategy 是按形态切换的买卖决策接口。
type Strategy interface {
	Name() string
	ShouldBuy(symbol string, history []market.Bar) bool
	ShouldSell(symbol string, history []market.Bar, pos Position) bool
}

// PatternDetector 识别大盘形态。失败不会中断回测，引擎降级为 normal。
type PatternDetector interface {
	DetectPattern(history []market.Bar, date time.Time) (PatternResult, error)
}

// Picker 给出当日候选股票（按打分降序）。
type Picker interface {
	PickCandidates(ctx context.Context, date time.Time) ([]string, error)
}

// MarketData 是引擎消费的行情边界。
type MarketData interface {
	TradingCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error)
	Bar(ctx context.Context, symbol string, date time.Time) (market.Bar, error)
	History(ctx context.Context, symbol string, until time.Time, lookback int) ([]market.Bar, error)
}

// Config 汇集模拟引擎的全部阈值，构造时显式传入，不依赖任何全局状态。
type Config struct {
	InitialCash     decimal.Decimal
	CommissionRate  decimal.Decimal
	LotSize         int64
	MaxPositions    int
	HardTakeProfit  decimal.Decimal // 比例，如 0.15 表示 +15% 强制止盈
	HardStopLoss    decimal.Decimal // 比例，如 0.08 表示 -8% 强制止损
	MaxHoldingDays  int             // 按交易日计
	HistoryLookback int
	MinConfidence   float64
	IndexSymbol     string
	DefaultPattern  string // 未映射形态回退到的策略键
}

// Normalize 填补零值字段的缺省值。
func (c *Config) Normalize() {
	if c.LotSize <= 0 {
		c.LotSize = 100
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 5
	}
	if c.MaxHoldingDays <= 0 {
		c.MaxHoldingDays = 30
	}
	if c.HistoryLookback <= 0 {
		c.HistoryLookback = 60
	}
	if c.HardTakeProfit.IsZero() {
		c.HardTakeProfit = decimal.NewFromFloat(0.15)
	}
	if c.HardStopLoss.IsZero() {
		c.HardStopLoss = decimal.NewFromFloat(0.08)
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	if c.DefaultPattern == "" {
		c.DefaultPattern = PatternNormal
	}
}

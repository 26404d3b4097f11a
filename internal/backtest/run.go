package backtest

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 记录本次模拟的参数快照，便于复现。
type RunConfig struct {
	Start          string   `json:"start"`
	End            string   `json:"end"`
	InitialCash    float64  `json:"initial_cash"`
	CommissionRate float64  `json:"commission_rate"`
	LotSize        int64    `json:"lot_size"`
	MaxPositions   int      `json:"max_positions"`
	HardTakeProfit float64  `json:"hard_take_profit"`
	HardStopLoss   float64  `json:"hard_stop_loss"`
	MaxHoldingDays int      `json:"max_holding_days"`
	IndexSymbol    string   `json:"index_symbol"`
	Universe       []string `json:"universe"`
	DefaultPattern string   `json:"default_pattern"`
}

// RunStats 汇总收益与合规指标，供前端展示。
type RunStats struct {
	FinalValue      float64   `json:"final_value"`
	TotalReturn     float64   `json:"total_return"`
	MaxDrawdownPct  float64   `json:"max_drawdown_pct"`
	WinRate         float64   `json:"win_rate"`
	Trades          int       `json:"trades"`
	RejectedTrades  int       `json:"rejected_trades"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	Snapshots       int       `json:"snapshots"`
	ComplianceRate  float64   `json:"compliance_rate"`
	T1Violations    int       `json:"t1_violations"`
	ShortSellBlocks int       `json:"short_sell_blocks"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Run 表示一次模拟任务。
type Run struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	StartTS     int64     `json:"start_ts"`
	EndTS       int64     `json:"end_ts"`
	InitialCash float64   `json:"initial_cash"`
	FinalValue  float64   `json:"final_value"`
	TotalReturn float64   `json:"total_return"`
	Message     string    `json:"message"`
	Config      RunConfig `json:"config"`
	Stats       RunStats  `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarshalConfig 返回 config JSON。
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest 为 HTTP 提交使用，零值字段回落到服务配置。
type RunRequest struct {
	Start       string  `json:"start" binding:"required"`
	End         string  `json:"end" binding:"required"`
	InitialCash float64 `json:"initial_cash"`
}

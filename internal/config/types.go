package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"huice/internal/engine"
)

// Config 是回测服务的主配置载体。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Data       DataConfig       `mapstructure:"data"`
	Server     ServerConfig     `mapstructure:"server"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Pattern    PatternConfig    `mapstructure:"pattern"`
	Picker     PickerConfig     `mapstructure:"picker"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Report     ReportConfig     `mapstructure:"report"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type DataConfig struct {
	Root        string `mapstructure:"root"`         // 日线 SQLite 数据目录
	ResultsRoot string `mapstructure:"results_root"` // 回测结果库目录
	IndexSymbol string `mapstructure:"index_symbol"` // 日历与大盘形态的基准指数
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SimulationConfig 汇集引擎阈值（佣金、一手股数、仓位数、硬性风控）。
// 进程内没有任何全局可变配置，全部经此结构显式传入。
type SimulationConfig struct {
	InitialCash     float64 `mapstructure:"initial_cash"`
	CommissionRate  float64 `mapstructure:"commission_rate"`
	LotSize         int64   `mapstructure:"lot_size"`
	MaxPositions    int     `mapstructure:"max_positions"`
	HardTakeProfit  float64 `mapstructure:"hard_take_profit"`
	HardStopLoss    float64 `mapstructure:"hard_stop_loss"`
	MaxHoldingDays  int     `mapstructure:"max_holding_days"`
	HistoryLookback int     `mapstructure:"history_lookback"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
}

type PatternConfig struct {
	FastMA      int     `mapstructure:"fast_ma"`
	SlowMA      int     `mapstructure:"slow_ma"`
	ATRPeriod   int     `mapstructure:"atr_period"`
	TrendMargin float64 `mapstructure:"trend_margin"`
	VolatilePct float64 `mapstructure:"volatile_pct"`
}

type PickerConfig struct {
	Universe     []string `mapstructure:"universe"`
	TopN         int      `mapstructure:"top_n"`
	MomentumDays int      `mapstructure:"momentum_days"`
	MinTurnover  float64  `mapstructure:"min_turnover"`
}

type BacktestConfig struct {
	Start         string `mapstructure:"start"` // 2006-01-02
	End           string `mapstructure:"end"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	ProfilesPath  string `mapstructure:"profiles_path"` // 策略参数 profile 文件
}

type ReportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
}

// EngineConfig 把模拟配置换算为引擎配置（金额转精确小数）。
func (s SimulationConfig) EngineConfig(indexSymbol, defaultPattern string) engine.Config {
	cfg := engine.Config{
		InitialCash:     decimal.NewFromFloat(s.InitialCash),
		CommissionRate:  decimal.NewFromFloat(s.CommissionRate),
		LotSize:         s.LotSize,
		MaxPositions:    s.MaxPositions,
		HardTakeProfit:  decimal.NewFromFloat(s.HardTakeProfit),
		HardStopLoss:    decimal.NewFromFloat(s.HardStopLoss),
		MaxHoldingDays:  s.MaxHoldingDays,
		HistoryLookback: s.HistoryLookback,
		MinConfidence:   s.MinConfidence,
		IndexSymbol:     indexSymbol,
		DefaultPattern:  defaultPattern,
	}
	cfg.Normalize()
	return cfg
}

// Range 解析回测起止日期。
func (b BacktestConfig) Range() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", b.Start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start 非法: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", b.End, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end 非法: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end 早于 start")
	}
	return start, end, nil
}

package config

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultDataRoot        = "data/bars"
	defaultResultsRoot     = "data/results"
	defaultIndexSymbol     = "000300.SH"
	defaultServerAddr      = ":9991"
	defaultInitialCash     = 1_000_000
	defaultCommissionRate  = 0.0003
	defaultLotSize         = 100
	defaultMaxPositions    = 5
	defaultHardTakeProfit  = 0.15
	defaultHardStopLoss    = 0.08
	defaultMaxHoldingDays  = 30
	defaultHistoryLookback = 60
	defaultMinConfidence   = 0.5
	defaultMaxConcurrent   = 1
	defaultProfilesPath    = "configs/strategies.yaml"
	defaultReportDir       = "data/reports"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.Data.Root == "" {
		c.Data.Root = defaultDataRoot
	}
	if c.Data.ResultsRoot == "" {
		c.Data.ResultsRoot = defaultResultsRoot
	}
	if c.Data.IndexSymbol == "" {
		c.Data.IndexSymbol = defaultIndexSymbol
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Simulation.InitialCash <= 0 {
		c.Simulation.InitialCash = defaultInitialCash
	}
	if c.Simulation.CommissionRate == 0 {
		c.Simulation.CommissionRate = defaultCommissionRate
	}
	if c.Simulation.LotSize <= 0 {
		c.Simulation.LotSize = defaultLotSize
	}
	if c.Simulation.MaxPositions <= 0 {
		c.Simulation.MaxPositions = defaultMaxPositions
	}
	if c.Simulation.HardTakeProfit <= 0 {
		c.Simulation.HardTakeProfit = defaultHardTakeProfit
	}
	if c.Simulation.HardStopLoss <= 0 {
		c.Simulation.HardStopLoss = defaultHardStopLoss
	}
	if c.Simulation.MaxHoldingDays <= 0 {
		c.Simulation.MaxHoldingDays = defaultMaxHoldingDays
	}
	if c.Simulation.HistoryLookback <= 0 {
		c.Simulation.HistoryLookback = defaultHistoryLookback
	}
	if c.Simulation.MinConfidence <= 0 {
		c.Simulation.MinConfidence = defaultMinConfidence
	}
	if c.Backtest.MaxConcurrent <= 0 {
		c.Backtest.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Backtest.ProfilesPath == "" {
		c.Backtest.ProfilesPath = defaultProfilesPath
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = defaultReportDir
	}
}

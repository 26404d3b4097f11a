package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"huice/internal/config"
	"huice/internal/config/loader"
	"huice/internal/engine"
	"huice/internal/logger"
	"huice/internal/pattern"
	"huice/internal/picker"
	"huice/internal/strategy"
)

// Service 负责回测任务的全生命周期：登记、组装引擎、执行、落库。
// 每次运行都从策略 profile 的最新快照组装一套全新的引擎实例，
// 运行之间互不共享可变状态。
type Service struct {
	cfg      config.Config
	data     engine.MarketData
	profiles *loader.ProfileLoader
	store    *ResultStore

	sem chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewService(cfg config.Config, data engine.MarketData, profiles *loader.ProfileLoader, store *ResultStore) (*Service, error) {
	if data == nil {
		return nil, fmt.Errorf("backtest service 需要行情数据源")
	}
	if profiles == nil {
		return nil, fmt.Errorf("backtest service 需要策略 profile loader")
	}
	if store == nil {
		return nil, fmt.Errorf("backtest service 需要结果存储")
	}
	maxConcurrent := cfg.Backtest.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		cfg:      cfg,
		data:     data,
		profiles: profiles,
		store:    store,
		sem:      make(chan struct{}, maxConcurrent),
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// StartRun 登记任务并在后台执行，立即返回 pending 状态的 Run。
func (s *Service) StartRun(ctx context.Context, req RunRequest) (Run, error) {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return Run{}, err
	}
	run := s.newRun(start, end, req.InitialCash)
	if err := s.store.InsertRun(ctx, run); err != nil {
		return Run{}, err
	}
	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		s.track(run.ID, cancel)
		defer s.untrack(run.ID)
		s.execute(runCtx, run, start, end)
	}()
	return run, nil
}

// RunOnce 同步执行一次回测（批处理模式），区间取自主配置。
func (s *Service) RunOnce(ctx context.Context) (Run, *engine.Result, error) {
	start, end, err := s.cfg.Backtest.Range()
	if err != nil {
		return Run{}, nil, err
	}
	run := s.newRun(start, end, 0)
	if err := s.store.InsertRun(ctx, run); err != nil {
		return Run{}, nil, err
	}
	result := s.execute(ctx, run, start, end)
	done, err := s.store.GetRun(ctx, run.ID)
	if err != nil {
		return run, result, err
	}
	return done, result, nil
}

// Cancel 请求中止正在运行的任务。已产出的快照与流水照常落库。
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// Runs / RunByID / TradesOf 等查询直接透传结果存储。
func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	return s.store.ListRuns(ctx, limit)
}

func (s *Service) RunByID(ctx context.Context, runID string) (Run, error) {
	return s.store.GetRun(ctx, runID)
}

func (s *Service) newRun(start, end time.Time, initialCash float64) Run {
	sim := s.cfg.Simulation
	if initialCash > 0 {
		sim.InitialCash = initialCash
	}
	return Run{
		ID:          uuid.NewString(),
		Status:      RunStatusPending,
		StartTS:     start.Unix(),
		EndTS:       end.Unix(),
		InitialCash: sim.InitialCash,
		Config: RunConfig{
			Start:          start.Format("2006-01-02"),
			End:            end.Format("2006-01-02"),
			InitialCash:    sim.InitialCash,
			CommissionRate: sim.CommissionRate,
			LotSize:        sim.LotSize,
			MaxPositions:   sim.MaxPositions,
			HardTakeProfit: sim.HardTakeProfit,
			HardStopLoss:   sim.HardStopLoss,
			MaxHoldingDays: sim.MaxHoldingDays,
			IndexSymbol:    s.cfg.Data.IndexSymbol,
			Universe:       s.cfg.Picker.Universe,
			DefaultPattern: s.profiles.Snapshot().DefaultPattern(),
		},
	}
}

// execute 占并发额度，组装引擎并跑完整段模拟，结果（含失败时的部分结果）
// 统一落库。返回引擎结果供同步调用方直接使用。
func (s *Service) execute(ctx context.Context, run Run, start, end time.Time) *engine.Result {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	if err := s.store.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""); err != nil {
		logger.Errorf("[backtest] run %s 状态更新失败: %v", run.ID, err)
	}
	orch, err := s.buildOrchestrator(run)
	if err != nil {
		logger.Errorf("[backtest] run %s 引擎组装失败: %v", run.ID, err)
		if uerr := s.store.UpdateRunStatus(context.Background(), run.ID, RunStatusFailed, err.Error()); uerr != nil {
			logger.Errorf("[backtest] run %s 状态更新失败: %v", run.ID, uerr)
		}
		return nil
	}

	result, runErr := orch.Run(ctx, start, end)
	stats := buildStats(result, run.InitialCash)
	status, message := RunStatusDone, ""
	if runErr != nil {
		status, message = RunStatusFailed, runErr.Error()
		logger.Warnf("[backtest] run %s 中止: %v（保留 %d 份快照）", run.ID, runErr, len(result.Snapshots))
	} else {
		logger.Infof("[backtest] run %s 完成: 收益 %.2f%%，合规率 %.4f",
			run.ID, stats.TotalReturn*100, stats.ComplianceRate)
	}
	// 即便调用方 ctx 已取消，结果也要落库。
	if err := s.store.SaveResult(context.Background(), run.ID, status, message, result, stats); err != nil {
		logger.Errorf("[backtest] run %s 结果落库失败: %v", run.ID, err)
	}
	return result
}

func (s *Service) buildOrchestrator(run Run) (*engine.Orchestrator, error) {
	profiles := s.profiles.Snapshot()
	engCfg := s.cfg.Simulation.EngineConfig(s.cfg.Data.IndexSymbol, profiles.DefaultPattern())
	if run.Config.InitialCash > 0 {
		engCfg.InitialCash = decimalFromFloat(run.Config.InitialCash)
	}
	detector := pattern.NewDetector(pattern.Config{
		FastMA:      s.cfg.Pattern.FastMA,
		SlowMA:      s.cfg.Pattern.SlowMA,
		ATRPeriod:   s.cfg.Pattern.ATRPeriod,
		TrendMargin: s.cfg.Pattern.TrendMargin,
		VolatilePct: s.cfg.Pattern.VolatilePct,
	})
	pick, err := picker.NewPicker(picker.Config{
		Universe:     s.cfg.Picker.Universe,
		TopN:         s.cfg.Picker.TopN,
		MomentumDays: s.cfg.Picker.MomentumDays,
		MinTurnover:  s.cfg.Picker.MinTurnover,
	}, s.data)
	if err != nil {
		return nil, err
	}
	return engine.NewOrchestrator(engCfg, s.data, detector, pick, strategy.Build(profiles))
}

func (s *Service) track(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()
}

func (s *Service) untrack(runID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[runID]; ok {
		cancel()
		delete(s.cancels, runID)
	}
	s.mu.Unlock()
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", startStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start 非法: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end 非法: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end 早于 start")
	}
	return start, end, nil
}

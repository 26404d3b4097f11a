package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"huice/internal/engine"
)

// ResultStore 用 Gorm + SQLite 管理回测运行、流水、快照与合规报告。
type ResultStore struct {
	db *gorm.DB
}

type runModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	Status      string `gorm:"size:16;index"`
	StartTS     int64
	EndTS       int64
	InitialCash float64
	FinalValue  float64
	TotalReturn float64
	Message     string
	ConfigJSON  datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	StatsJSON   datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (runModel) TableName() string { return "backtest_runs" }

type tradeModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"size:36;index"`
	Seq        int
	Date       int64
	Symbol     string `gorm:"size:16;index"`
	Action     string `gorm:"size:8"`
	Quantity   int64
	Price      string `gorm:"size:32"` // 精确小数按字符串落库
	Commission string `gorm:"size:32"`
	CostBasis  string `gorm:"size:32"`
	Reason     string `gorm:"size:64"`
	Rejected   bool
	Violation  string `gorm:"size:32"`
	Note       string
}

func (tradeModel) TableName() string { return "backtest_trades" }

type snapshotModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	RunID         string `gorm:"size:36;index"`
	Date          int64
	Pattern       string `gorm:"size:16"`
	Cash          string `gorm:"size:32"`
	Value         string `gorm:"size:32"`
	PositionsJSON datatypes.JSON `gorm:"column:positions_json;type:TEXT"`
	Executed      int
	Rejected      int
}

func (snapshotModel) TableName() string { return "backtest_snapshots" }

type complianceModel struct {
	RunID                string `gorm:"primaryKey;size:36"`
	TotalTrades          int
	SettlementViolations int
	ShortSellViolations  int
	ComplianceRate       float64
	ViolationsJSON       datatypes.JSON `gorm:"column:violations_json;type:TEXT"`
	CreatedAt            time.Time
}

func (complianceModel) TableName() string { return "backtest_compliance" }

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &tradeModel{}, &snapshotModel{}, &complianceModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertRun 登记一次新的回测任务。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return err
	}
	m := runModel{
		ID:          run.ID,
		Status:      run.Status,
		StartTS:     run.StartTS,
		EndTS:       run.EndTS,
		InitialCash: run.InitialCash,
		Message:     run.Message,
		ConfigJSON:  datatypes.JSON(cfgJSON),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// UpdateRunStatus 更新任务状态与进度消息。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, runID, status, message string) error {
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", runID).
		Updates(map[string]any{"status": status, "message": message}).Error
}

// SaveResult 在一个事务里写入流水、快照、合规报告并更新任务汇总。
// 中途失败的运行同样落库，部分结果保持可检视。
func (s *ResultStore) SaveResult(ctx context.Context, runID, status, message string, result *engine.Result, stats RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, t := range result.Trades {
			m := tradeModel{
				RunID:      runID,
				Seq:        i,
				Date:       t.Date.Unix(),
				Symbol:     t.Symbol,
				Action:     string(t.Action),
				Quantity:   t.Quantity,
				Price:      t.Price.String(),
				Commission: t.Commission.String(),
				CostBasis:  t.CostBasis.String(),
				Reason:     t.Reason,
				Rejected:   t.Rejected,
				Violation:  string(t.Violation),
				Note:       t.Note,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		for _, snap := range result.Snapshots {
			positions, err := json.Marshal(snap.Positions)
			if err != nil {
				return err
			}
			m := snapshotModel{
				RunID:         runID,
				Date:          snap.Date.Unix(),
				Pattern:       snap.Pattern,
				Cash:          snap.Cash.String(),
				Value:         snap.Value.String(),
				PositionsJSON: datatypes.JSON(positions),
				Executed:      len(snap.Executed),
				Rejected:      len(snap.Rejected),
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		violations, err := json.Marshal(result.Compliance.Violations)
		if err != nil {
			return err
		}
		comp := complianceModel{
			RunID:                runID,
			TotalTrades:          result.Compliance.TotalTrades,
			SettlementViolations: result.Compliance.SettlementViolations,
			ShortSellViolations:  result.Compliance.ShortSellViolations,
			ComplianceRate:       result.Compliance.ComplianceRate,
			ViolationsJSON:       datatypes.JSON(violations),
		}
		if err := tx.Create(&comp).Error; err != nil {
			return err
		}
		return tx.Model(&runModel{}).Where("id = ?", runID).Updates(map[string]any{
			"status":       status,
			"message":      message,
			"final_value":  stats.FinalValue,
			"total_return": stats.TotalReturn,
			"stats_json":   datatypes.JSON(statsJSON),
			"completed_at": &now,
		}).Error
	})
}

// GetRun 返回单个任务。
func (s *ResultStore) GetRun(ctx context.Context, runID string) (Run, error) {
	var m runModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", runID).Error; err != nil {
		return Run{}, err
	}
	return m.toRun()
}

// ListRuns 按创建时间倒序返回任务列表。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(models))
	for _, m := range models {
		run, err := m.toRun()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// Trades 返回某次运行的完整流水（含拒单），按提出顺序。
func (s *ResultStore) Trades(ctx context.Context, runID string) ([]tradeModel, error) {
	var out []tradeModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq").Find(&out).Error
	return out, err
}

// Snapshots 返回某次运行的每日快照，按日期升序。
func (s *ResultStore) Snapshots(ctx context.Context, runID string) ([]snapshotModel, error) {
	var out []snapshotModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("date").Find(&out).Error
	return out, err
}

// Compliance 返回某次运行的合规报告。
func (s *ResultStore) Compliance(ctx context.Context, runID string) (complianceModel, error) {
	var out complianceModel
	err := s.db.WithContext(ctx).First(&out, "run_id = ?", runID).Error
	return out, err
}

func (m runModel) toRun() (Run, error) {
	run := Run{
		ID:          m.ID,
		Status:      m.Status,
		StartTS:     m.StartTS,
		EndTS:       m.EndTS,
		InitialCash: m.InitialCash,
		FinalValue:  m.FinalValue,
		TotalReturn: m.TotalReturn,
		Message:     m.Message,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.CompletedAt != nil {
		run.CompletedAt = *m.CompletedAt
	}
	if len(m.ConfigJSON) > 0 {
		if err := json.Unmarshal(m.ConfigJSON, &run.Config); err != nil {
			return Run{}, fmt.Errorf("解析 run config 失败: %w", err)
		}
	}
	if len(m.StatsJSON) > 0 {
		if err := json.Unmarshal(m.StatsJSON, &run.Stats); err != nil {
			return Run{}, fmt.Errorf("解析 run stats 失败: %w", err)
		}
	}
	return run, nil
}

// TradeView / SnapshotView 供 HTTP 层序列化使用。
type TradeView struct {
	Seq        int    `json:"seq"`
	Date       int64  `json:"date"`
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Quantity   int64  `json:"quantity"`
	Price      string `json:"price"`
	Commission string `json:"commission"`
	CostBasis  string `json:"cost_basis,omitempty"`
	Reason     string `json:"reason"`
	Rejected   bool   `json:"rejected"`
	Violation  string `json:"violation,omitempty"`
	Note       string `json:"note,omitempty"`
}

type SnapshotView struct {
	Date      int64           `json:"date"`
	Pattern   string          `json:"pattern"`
	Cash      string          `json:"cash"`
	Value     string          `json:"value"`
	Positions json.RawMessage `json:"positions"`
	Executed  int             `json:"executed"`
	Rejected  int             `json:"rejected"`
}

type ComplianceView struct {
	RunID                string          `json:"run_id"`
	TotalTrades          int             `json:"total_trades"`
	SettlementViolations int             `json:"settlement_violations"`
	ShortSellViolations  int             `json:"short_sell_violations"`
	ComplianceRate       float64         `json:"compliance_rate"`
	Violations           json.RawMessage `json:"violations"`
}

// TradeViews 查询并转换为视图对象。
func (s *ResultStore) TradeViews(ctx context.Context, runID string) ([]TradeView, error) {
	models, err := s.Trades(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]TradeView, 0, len(models))
	for _, m := range models {
		out = append(out, TradeView{
			Seq: m.Seq, Date: m.Date, Symbol: m.Symbol, Action: m.Action,
			Quantity: m.Quantity, Price: m.Price, Commission: m.Commission,
			CostBasis: m.CostBasis, Reason: m.Reason, Rejected: m.Rejected,
			Violation: m.Violation, Note: m.Note,
		})
	}
	return out, nil
}

// SnapshotViews 查询并转换为视图对象。
func (s *ResultStore) SnapshotViews(ctx context.Context, runID string) ([]SnapshotView, error) {
	models, err := s.Snapshots(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotView, 0, len(models))
	for _, m := range models {
		out = append(out, SnapshotView{
			Date: m.Date, Pattern: m.Pattern, Cash: m.Cash, Value: m.Value,
			Positions: json.RawMessage(m.PositionsJSON),
			Executed:  m.Executed, Rejected: m.Rejected,
		})
	}
	return out, nil
}

// ComplianceView 查询并转换为视图对象。
func (s *ResultStore) ComplianceReport(ctx context.Context, runID string) (ComplianceView, error) {
	m, err := s.Compliance(ctx, runID)
	if err != nil {
		return ComplianceView{}, err
	}
	return ComplianceView{
		RunID:                m.RunID,
		TotalTrades:          m.TotalTrades,
		SettlementViolations: m.SettlementViolations,
		ShortSellViolations:  m.ShortSellViolations,
		ComplianceRate:       m.ComplianceRate,
		Violations:           json.RawMessage(m.ViolationsJSON),
	}, nil
}

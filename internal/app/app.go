// Package app 负责应用级编排：加载配置 → 初始化依赖 → 运行服务或单次回测。
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"huice/internal/backtest"
	"huice/internal/config"
	"huice/internal/logger"
)

// App 是进程入口对象。Server.Enabled 决定运行形态：
// 常驻 HTTP 服务，或按配置区间跑一次回测后退出。
type App struct {
	cfg *config.Config
	c   *components
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	c, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, c: c}, nil
}

// Run 按配置运行应用，阻塞到 ctx 取消或任务结束。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.c.close()

	if a.cfg.Server.Enabled {
		return a.runServer(ctx)
	}
	return a.runOnce(ctx)
}

func (a *App) runServer(ctx context.Context) error {
	logger.Infof("✓ HTTP 服务启动（%s，环境=%s）", a.cfg.Server.Addr, a.cfg.App.Env)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.c.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// runOnce 批处理模式：同步执行一次回测，生成报告后退出。
func (a *App) runOnce(ctx context.Context) error {
	run, result, err := a.c.svc.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("回测执行失败: %w", err)
	}
	logger.InfoBlock(fmt.Sprintf(
		"回测完成 run=%s\n区间=%s ~ %s\n收益=%.2f%%\n最大回撤=%.2f%%\n合规率=%.4f\n成交=%d 拒单=%d",
		run.ID, run.Config.Start, run.Config.End,
		run.Stats.TotalReturn*100, run.Stats.MaxDrawdownPct*100,
		run.Stats.ComplianceRate, run.Stats.Trades, run.Stats.RejectedTrades))
	if a.c.reports != nil && result != nil {
		path, err := a.c.reports.Generate(run.ID, result)
		if err != nil {
			logger.Warnf("[report] 生成失败: %v", err)
		} else {
			logger.Infof("[report] 已生成 %s", path)
		}
	}
	return nil
}

// Service 暴露底层回测服务（供测试/脚本使用）。
func (a *App) Service() *backtest.Service {
	if a == nil || a.c == nil {
		return nil
	}
	return a.c.svc
}

package app

import (
	"fmt"

	"huice/internal/backtest"
	"huice/internal/config"
	"huice/internal/config/loader"
	"huice/internal/market"
	"huice/internal/report"
	httpapi "huice/internal/transport/http"
)

// components 聚合一次回测进程的全部基础设施。
type components struct {
	bars     *market.Store
	provider *market.StoreProvider
	profiles *loader.ProfileLoader
	results  *backtest.ResultStore
	svc      *backtest.Service
	server   *httpapi.Server
	reports  *report.Generator
}

// build 按依赖顺序组装组件：行情存储 → 数据边界 → profile →
// 结果存储 → 服务 → 可选的 HTTP 与报告。
func build(cfg *config.Config) (*components, error) {
	bars, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化行情存储失败: %w", err)
	}
	provider, err := market.NewStoreProvider(bars, cfg.Data.IndexSymbol)
	if err != nil {
		return nil, err
	}
	profiles, err := loader.NewProfileLoader(cfg.Backtest.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("加载策略 profile 失败: %w", err)
	}
	results, err := backtest.NewResultStore(cfg.Data.ResultsRoot)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	svc, err := backtest.NewService(*cfg, provider, profiles, results)
	if err != nil {
		return nil, err
	}
	c := &components{
		bars:     bars,
		provider: provider,
		profiles: profiles,
		results:  results,
		svc:      svc,
	}
	if cfg.Server.Enabled {
		server, err := httpapi.NewServer(httpapi.Config{
			Addr:    cfg.Server.Addr,
			Svc:     svc,
			Results: results,
			Bars:    bars,
		})
		if err != nil {
			return nil, err
		}
		c.server = server
	}
	if cfg.Report.Enabled {
		reports, err := report.NewGenerator(cfg.Report.OutputDir)
		if err != nil {
			return nil, err
		}
		c.reports = reports
	}
	return c, nil
}

func (c *components) close() {
	if c == nil {
		return
	}
	if c.results != nil {
		_ = c.results.Close()
	}
	if c.bars != nil {
		_ = c.bars.Close()
	}
}

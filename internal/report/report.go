// Package report 把回测结果渲染为可交互的 HTML 报告（净值曲线 + 回撤）。
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"huice/internal/engine"
	"huice/internal/market"
)

const (
	colorBackground = "#060c1b"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorEquity     = "#3b82f6"
	colorCash       = "#fbbf24"
	colorDrawdown   = "#f87171"

	chartWidthPx  = 1280
	chartHeightPx = 420
)

// Generator 负责报告文件的生成与存放目录管理。
type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) (*Generator, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("report output dir 不能为空")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	return &Generator{outputDir: outputDir}, nil
}

// Generate 渲染一次回测的 HTML 报告并返回文件路径。
func (g *Generator) Generate(runID string, result *engine.Result) (string, error) {
	if result == nil || len(result.Snapshots) == 0 {
		return "", fmt.Errorf("run %s 没有快照，无法生成报告", runID)
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityChart(runID, result), drawdownChart(result))

	path := filepath.Join(g.outputDir, fmt.Sprintf("run_%s.html", runID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", err
	}
	return path, nil
}

func equityChart(runID string, result *engine.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "组合净值",
			Subtitle:      fmt.Sprintf("run %s | 收益 %.2f%% | 合规率 %.4f", runID, result.TotalReturn*100, result.Compliance.ComplianceRate),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	xAxis := snapshotDates(result.Snapshots)
	equity := make([]opts.LineData, len(result.Snapshots))
	cash := make([]opts.LineData, len(result.Snapshots))
	for i, snap := range result.Snapshots {
		equity[i] = opts.LineData{Value: snap.Value.InexactFloat64()}
		cash[i] = opts.LineData{Value: snap.Cash.InexactFloat64()}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("净值", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("现金", cash, charts.WithLineStyleOpts(opts.LineStyle{Color: colorCash, Width: 1}))
	return line
}

func drawdownChart(result *engine.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "回撤 (%)",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorText, FontSize: 18},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	peak := result.InitialCash.InexactFloat64()
	data := make([]opts.LineData, len(result.Snapshots))
	for i, snap := range result.Snapshots {
		value := snap.Value.InexactFloat64()
		if value > peak {
			peak = value
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - value) / peak * 100
		}
		data[i] = opts.LineData{Value: -dd}
	}
	line.SetXAxis(snapshotDates(result.Snapshots))
	line.AddSeries("drawdown", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorDrawdown, Opacity: opts.Float(0.25)}))
	return line
}

func snapshotDates(snaps []engine.DailySnapshot) []string {
	x := make([]string, len(snaps))
	for i, snap := range snaps {
		x[i] = market.Day(snap.Date).Format("2006-01-02")
	}
	return x
}

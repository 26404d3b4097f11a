package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoBar 表示指定交易日没有该股票的行情数据。
var ErrNoBar = errors.New("no bar for date")

// StoreProvider 基于本地日线 Store 提供行情查询，实现引擎的 MarketData 边界。
// 交易日历取自一个基准指数（如 000300.SH）的已有数据日期。
type StoreProvider struct {
	store       *Store
	indexSymbol string
}

func NewStoreProvider(store *Store, indexSymbol string) (*StoreProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("bar store 不能为空")
	}
	if indexSymbol == "" {
		return nil, fmt.Errorf("index symbol 不能为空")
	}
	return &StoreProvider{store: store, indexSymbol: indexSymbol}, nil
}

// TradingCalendar 返回区间内的交易日序列（基准指数有行情的日期）。
func (p *StoreProvider) TradingCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	dates, err := p.store.TradingDates(ctx, p.indexSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("读取交易日历失败 (%s): %w", p.indexSymbol, err)
	}
	return dates, nil
}

// Bar 返回某只股票在指定交易日的日线；停牌或缺数据时返回 ErrNoBar。
func (p *StoreProvider) Bar(ctx context.Context, symbol string, date time.Time) (Bar, error) {
	b, err := p.store.BarOn(ctx, symbol, date)
	if errors.Is(err, sql.ErrNoRows) {
		return Bar{}, fmt.Errorf("%s@%s: %w", symbol, Day(date).Format("2006-01-02"), ErrNoBar)
	}
	if err != nil {
		return Bar{}, err
	}
	return b, nil
}

// History 返回截至 until（含）的最近 lookback 根日线。
func (p *StoreProvider) History(ctx context.Context, symbol string, until time.Time, lookback int) ([]Bar, error) {
	return p.store.HistoryUntil(ctx, symbol, until, lookback)
}

// IndexSymbol 返回日历与大盘形态使用的基准指数代码。
func (p *StoreProvider) IndexSymbol() string {
	return p.indexSymbol
}

package market

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBars(symbol string, days ...string) []Bar {
	bars := make([]Bar, len(days))
	prev := 0.0
	for i, d := range days {
		close := 10 + float64(i)
		if prev == 0 {
			prev = close
		}
		bars[i] = Bar{
			Symbol: symbol, Date: DayTS(day(d)),
			Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
			PrevClose: prev, Volume: 1000,
		}
		prev = close
	}
	return bars
}

func TestStore_InsertAndQuery(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	days := []string{"2023-03-01", "2023-03-02", "2023-03-03"}
	n, err := store.InsertBars(ctx, "600519.SH", testBars("600519.SH", days...))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("区间查询升序", func(t *testing.T) {
		bars, err := store.RangeBars(ctx, "600519.SH", DayTS(day("2023-03-01")), DayTS(day("2023-03-03")))
		assert.NoError(t, err)
		assert.Len(t, bars, 3)
		assert.Equal(t, DayTS(day("2023-03-01")), bars[0].Date)
		assert.Equal(t, "600519.SH", bars[0].Symbol)
	})

	t.Run("单日查询", func(t *testing.T) {
		bar, err := store.BarOn(ctx, "600519.SH", day("2023-03-02"))
		assert.NoError(t, err)
		assert.Equal(t, 11.0, bar.Close)

		_, err = store.BarOn(ctx, "600519.SH", day("2023-03-04"))
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("历史回看", func(t *testing.T) {
		bars, err := store.HistoryUntil(ctx, "600519.SH", day("2023-03-03"), 2)
		assert.NoError(t, err)
		assert.Len(t, bars, 2)
		assert.Equal(t, DayTS(day("2023-03-02")), bars[0].Date)
		assert.Equal(t, DayTS(day("2023-03-03")), bars[1].Date)
	})

	t.Run("交易日列表", func(t *testing.T) {
		dates, err := store.TradingDates(ctx, "600519.SH", day("2023-03-01"), day("2023-03-31"))
		assert.NoError(t, err)
		assert.Len(t, dates, 3)
		assert.Equal(t, day("2023-03-01"), dates[0])
	})

	t.Run("manifest 统计", func(t *testing.T) {
		m, err := store.Manifest(ctx, "600519.SH")
		assert.NoError(t, err)
		assert.Equal(t, "600519.SH", m.Symbol)
		assert.EqualValues(t, 3, m.Rows)
		assert.Equal(t, DayTS(day("2023-03-01")), m.MinDate)
		assert.Equal(t, DayTS(day("2023-03-03")), m.MaxDate)
	})
}

func TestStore_UpsertOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	bars := testBars("000858.SZ", "2023-03-01")
	_, err = store.InsertBars(ctx, "000858.SZ", bars)
	assert.NoError(t, err)

	bars[0].Close = 99
	_, err = store.InsertBars(ctx, "000858.SZ", bars)
	assert.NoError(t, err)

	got, err := store.BarOn(ctx, "000858.SZ", day("2023-03-01"))
	assert.NoError(t, err)
	assert.Equal(t, 99.0, got.Close)

	m, err := store.Manifest(ctx, "000858.SZ")
	assert.NoError(t, err)
	assert.EqualValues(t, 1, m.Rows)
}

func TestStoreProvider_CalendarAndBars(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.InsertBars(ctx, "000300.SH", testBars("000300.SH", "2023-03-01", "2023-03-02"))
	assert.NoError(t, err)

	provider, err := NewStoreProvider(store, "000300.SH")
	assert.NoError(t, err)

	calendar, err := provider.TradingCalendar(ctx, day("2023-03-01"), day("2023-03-05"))
	assert.NoError(t, err)
	assert.Len(t, calendar, 2)

	// 缺数据的交易日映射为 ErrNoBar，调用方据此识别停牌。
	_, err = provider.Bar(ctx, "000300.SH", day("2023-03-03"))
	assert.ErrorIs(t, err, ErrNoBar)
}

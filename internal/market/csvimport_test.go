package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseCSV_WithHeaderAndDerivedPrevClose(t *testing.T) {
	input := strings.Join([]string{
		"date,open,high,low,close,volume",
		"2023-03-01,10.0,10.5,9.8,10.2,120000",
		"2023-03-02,10.3,10.8,10.1,10.6,98000",
	}, "\n")

	bars, err := parseCSV(strings.NewReader(input), "600519.sh")
	assert.NoError(t, err)
	assert.Len(t, bars, 2)

	assert.Equal(t, "600519.SH", bars[0].Symbol)
	assert.Equal(t, DayTS(day("2023-03-01")), bars[0].Date)
	// 首行没有上一日收盘，回退为当日开盘。
	assert.Equal(t, 10.0, bars[0].PrevClose)
	// 次行由上一行 close 推导。
	assert.Equal(t, 10.2, bars[1].PrevClose)
	assert.Equal(t, 10.6, bars[1].Close)
}

func TestParseCSV_ExplicitPrevCloseColumn(t *testing.T) {
	input := "20230301,10.0,10.5,9.8,10.2,120000,1224000,9.9\n"
	bars, err := parseCSV(strings.NewReader(input), "000858.SZ")
	assert.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 9.9, bars[0].PrevClose)
	assert.Equal(t, 1224000.0, bars[0].Turnover)
}

func TestParseCSV_Errors(t *testing.T) {
	t.Run("列数不足", func(t *testing.T) {
		_, err := parseCSV(strings.NewReader("2023-03-01,10.0,10.5\n"), "X")
		assert.Error(t, err)
	})
	t.Run("日期非法", func(t *testing.T) {
		_, err := parseCSV(strings.NewReader("yesterday,10,10,10,10,1\nbad,1,1,1,1,1\n"), "X")
		assert.Error(t, err)
	})
	t.Run("数值非法", func(t *testing.T) {
		_, err := parseCSV(strings.NewReader("2023-03-01,ten,10,10,10,1\n"), "X")
		assert.Error(t, err)
	})
}

func TestDayHelpers(t *testing.T) {
	noon := day("2023-03-01").Add(12 * time.Hour)
	assert.Equal(t, day("2023-03-01"), Day(noon))
	assert.True(t, SameDay(noon, day("2023-03-01")))
	assert.False(t, SameDay(noon, day("2023-03-02")))
	assert.Equal(t, day("2023-03-01").Unix(), DayTS(noon))
}

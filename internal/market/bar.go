package market

import "time"

// Bar 表示一只股票某个交易日的日线行情（前复权价）。
type Bar struct {
	Symbol    string  `json:"symbol"`
	Date      int64   `json:"date"` // 交易日零点的 Unix 秒（UTC）
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	PrevClose float64 `json:"prev_close"`
	Volume    float64 `json:"volume"`
	Turnover  float64 `json:"turnover"`
}

// Day 将任意时间截断为 UTC 日期，作为交易日主键使用。
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayTS 返回交易日主键对应的 Unix 秒。
func DayTS(t time.Time) int64 {
	return Day(t).Unix()
}

// SameDay 判断两个时间是否落在同一个交易日。
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Time 返回 Bar 的交易日时间。
func (b Bar) Time() time.Time {
	return time.Unix(b.Date, 0).UTC()
}

// Closes 提取收盘价序列，供 talib 指标计算使用。
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs 提取最高价序列。
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows 提取最低价序列。
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes 提取成交量序列。
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

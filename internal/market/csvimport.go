package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// csv 列顺序：date,open,high,low,close,volume[,turnover[,prev_close]]
// date 支持 2006-01-02 与 20060102 两种格式。首行可以是表头。

// ImportCSV 从本地 CSV 导入一只股票的日线数据。
// prev_close 列缺失时由上一行的 close 推导，首行回退为当日 open。
func ImportCSV(ctx context.Context, store *Store, symbol, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开 CSV 失败: %w", err)
	}
	defer f.Close()
	bars, err := parseCSV(f, symbol)
	if err != nil {
		return 0, fmt.Errorf("解析 CSV 失败 (%s): %w", path, err)
	}
	return store.InsertBars(ctx, symbol, bars)
}

func parseCSV(r io.Reader, symbol string) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	var bars []Bar
	var prevClose float64
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && looksLikeHeader(record) {
			continue
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("第 %d 行列数不足: %d", line, len(record))
		}
		date, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行日期非法: %w", line, err)
		}
		vals := make([]float64, 0, 7)
		for _, cell := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行数值非法: %w", line, err)
			}
			vals = append(vals, v)
		}
		b := Bar{
			Symbol: strings.ToUpper(symbol),
			Date:   DayTS(date),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		}
		if len(vals) >= 6 {
			b.Turnover = vals[5]
		}
		switch {
		case len(vals) >= 7:
			b.PrevClose = vals[6]
		case prevClose > 0:
			b.PrevClose = prevClose
		default:
			b.PrevClose = b.Open
		}
		prevClose = b.Close
		bars = append(bars, b)
	}
	return bars, nil
}

func looksLikeHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseDate(record[0])
	return err != nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的日期: %q", s)
}

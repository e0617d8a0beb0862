// Package csvfeed loads candle history from CSV files for backtests: a
// deterministic, offline data source with the column layout
// time,open,high,low,close,volume (header optional, epoch seconds or
// milliseconds).
package csvfeed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/raykavin/marketcascade/internal/core"
)

// LoadSeries reads one symbol's candles from path, ascending by time.
func LoadSeries(path, symbol string, candleMs int64) (core.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv feed: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv feed: %w", err)
	}

	series := make(core.Series, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("csv row %d: want 6 columns, got %d", i+1, len(row))
		}
		if i == 0 && !isNumeric(row[0]) {
			continue // header
		}

		candle, err := parseRow(symbol, row, candleMs)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+1, err)
		}
		series = append(series, candle)
	}

	for i := 1; i < len(series); i++ {
		if series[i].OpenTime <= series[i-1].OpenTime {
			return nil, fmt.Errorf("csv feed not ascending at row %d", i+1)
		}
	}
	return series, nil
}

func parseRow(symbol string, row []string, candleMs int64) (core.Candle, error) {
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse time: %w", err)
	}
	// Epoch seconds are promoted to milliseconds.
	if ts < 1e12 {
		ts *= 1000
	}

	candle := core.Candle{Symbol: symbol, OpenTime: ts, CloseTime: ts + candleMs - 1}
	fields := []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("parse column %d: %w", i+2, err)
		}
		*dst = v
	}

	if !candle.Valid() {
		return core.Candle{}, fmt.Errorf("invalid OHLC ordering at %d", ts)
	}
	return candle, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

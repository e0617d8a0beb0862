package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raykavin/marketcascade/internal/backtest"
	"github.com/raykavin/marketcascade/internal/config"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/exchange/csvfeed"
	"github.com/raykavin/marketcascade/internal/logger/zerolog"
	"github.com/raykavin/marketcascade/internal/report"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	dataFiles []string
)

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the simulator over CSV candle history",
		RunE:  runBacktest,
	}
	cmd.Flags().StringSliceVarP(&dataFiles, "data", "d", nil, "CSV candle files, one per symbol (symbol taken from filename)")
	cmd.MarkFlagRequired("data")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, err := zerolog.New(logLevel, "2006-01-02 15:04:05", false)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	candleDur, err := config.CandleDuration(cfg.Timeframe)
	if err != nil {
		return err
	}

	candles := make(map[string]core.Series, len(dataFiles))
	for _, file := range dataFiles {
		symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		series, err := csvfeed.LoadSeries(file, symbol, candleDur.Milliseconds())
		if err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
		candles[symbol] = series
		log.WithFields(map[string]any{"symbol": symbol, "candles": len(series)}).Info("loaded candle history")
	}

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewEnsemble(registry))

	engine, err := backtest.New(cfg, registry, log)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	engine.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "backtesting")
		}
		_ = bar.Set(done)
	}

	result, err := engine.Run(backtest.Input{Candles: candles, Intracandle: true})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout)
	report.Performance(os.Stdout, result.Performance)
	report.Trades(os.Stdout, result.Trades)
	return nil
}

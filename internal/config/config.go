// Package config loads and validates the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/raykavin/marketcascade/internal/core"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Load reads, decodes and validates a YAML config file. Validation
// failures are fatal by design: a bad threshold must abort startup, never
// degrade per-tick.
func Load(path string) (*core.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config pre-filled with the engine defaults so a
// minimal YAML file still runs.
func Defaults() *core.Config {
	return &core.Config{
		Timeframe:  "1h",
		StrategyID: "default",
		Strategy: core.StrategyConfig{
			MA:     core.MAConfig{Short: 9, Long: 21},
			RSI:    core.RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
			MACD:   core.MACDConfig{Fast: 12, Slow: 26, Signal: 9},
			Volume: core.VolumeConfig{SurgeRatio: 1.5, LowRatio: 0.5},
		},
		Risk: core.RiskConfig{
			StopLossPercent:   3,
			TakeProfitPercent: 6,
			PositionRatio:     0.1,
			MaxPositions:      5,
		},
		Execution: core.ExecutionConfig{
			OrderType:             "market",
			MinOrderUsdt:          10,
			LimitOrderTimeoutSecs: 60,
			MaxExitPriceDeviation: 0.15,
		},
		Paper: core.PaperConfig{
			ScenarioID:      "default",
			InitialUsdt:     10_000,
			FeeRate:         0.001,
			SlippagePercent: 0.0005,
		},
	}
}

// Validate enforces the startup invariants from the error-handling design.
func Validate(cfg *core.Config) error {
	if _, err := CandleDuration(cfg.Timeframe); err != nil {
		return err
	}
	if cfg.HigherTimeframe != "" {
		if _, err := CandleDuration(cfg.HigherTimeframe); err != nil {
			return err
		}
	}
	if cfg.Execution.MinOrderUsdt < 0 {
		return fmt.Errorf("%w: negative min_order_usdt", core.ErrInvalidConfig)
	}
	if cfg.Risk.PositionRatio < 0 || cfg.Risk.PositionRatio > 1 {
		return fmt.Errorf("%w: position_ratio %.3f outside [0,1]", core.ErrInvalidConfig, cfg.Risk.PositionRatio)
	}
	if cfg.Risk.StopLossPercent < 0 || cfg.Risk.TakeProfitPercent < 0 {
		return fmt.Errorf("%w: negative stop/take-profit percent", core.ErrInvalidConfig)
	}
	if cfg.Paper.InitialUsdt <= 0 {
		return fmt.Errorf("%w: initial_usdt must be positive", core.ErrInvalidConfig)
	}
	if cfg.Paper.FeeRate < 0 || cfg.Paper.SlippagePercent < 0 {
		return fmt.Errorf("%w: negative fee or slippage", core.ErrInvalidConfig)
	}
	if cfg.StrategyID == "ensemble" && len(cfg.Ensemble.Strategies) == 0 {
		return fmt.Errorf("%w: ensemble strategy with no voters", core.ErrInvalidConfig)
	}
	for _, stage := range cfg.Risk.TakeProfitStages {
		if stage.AtPercent <= 0 {
			return fmt.Errorf("%w: take-profit stage at_percent must be positive", core.ErrInvalidConfig)
		}
	}
	return nil
}

// CandleDuration parses a timeframe string such as "15m" or "4h".
func CandleDuration(timeframe string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return 0, fmt.Errorf("%w: bad timeframe %q: %v", core.ErrInvalidConfig, timeframe, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: non-positive timeframe %q", core.ErrInvalidConfig, timeframe)
	}
	return d, nil
}

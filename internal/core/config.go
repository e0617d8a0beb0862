package core

// MAConfig holds moving-average periods for the default rule evaluator.
type MAConfig struct {
	Short int `yaml:"short"`
	Long  int `yaml:"long"`
}

// RSIConfig holds RSI period and band thresholds.
type RSIConfig struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

// MACDConfig holds MACD periods; disabled strategies skip MACD conditions.
type MACDConfig struct {
	Enabled bool `yaml:"enabled"`
	Fast    int  `yaml:"fast"`
	Slow    int  `yaml:"slow"`
	Signal  int  `yaml:"signal"`
}

// VolumeConfig holds the volume-ratio thresholds.
type VolumeConfig struct {
	SurgeRatio float64 `yaml:"surge_ratio"`
	LowRatio   float64 `yaml:"low_ratio"`
}

// StrategyConfig groups the indicator parameters consumed by the default
// rule evaluator.
type StrategyConfig struct {
	MA     MAConfig     `yaml:"ma"`
	RSI    RSIConfig    `yaml:"rsi"`
	MACD   MACDConfig   `yaml:"macd"`
	Volume VolumeConfig `yaml:"volume"`
}

// SignalsConfig maps each signal class to the ordered list of condition
// names that must all hold for the signal to fire.
type SignalsConfig struct {
	Buy   []string `yaml:"buy"`
	Sell  []string `yaml:"sell"`
	Short []string `yaml:"short"`
	Cover []string `yaml:"cover"`
}

// TrailingStopConfig controls the classic activation/callback trailing stop.
type TrailingStopConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ActivationPercent float64 `yaml:"activation_percent"`
	CallbackPercent   float64 `yaml:"callback_percent"`
}

// TakeProfitStage is one staged take-profit level, expressed as a percent
// gain from entry. Stage order is the enumeration order of the slice.
type TakeProfitStage struct {
	AtPercent float64 `yaml:"at_percent"`
}

// CorrelationFilterConfig controls the binary correlation gate applied at
// entry time.
type CorrelationFilterConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// RiskConfig is the per-entry risk parameter set. Regime overrides are
// partial RiskConfigs merged field-by-field on top of this base.
type RiskConfig struct {
	StopLossPercent       float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent     float64 `yaml:"take_profit_percent"`
	PositionRatio         float64 `yaml:"position_ratio"`
	MaxPositions          int     `yaml:"max_positions"`
	MaxPositionPerSymbol  int     `yaml:"max_position_per_symbol"`
	DailyLossLimitPercent float64 `yaml:"daily_loss_limit_percent"`
	MaxTotalLossPercent   float64 `yaml:"max_total_loss_percent"`
	MinRR                 float64 `yaml:"min_rr"`
	SpreadBps             float64 `yaml:"spread_bps"`
	TimeStopHours         float64 `yaml:"time_stop_hours"`

	// MinimalROI maps a minimum hold duration in milliseconds to the
	// profit ratio that closes the position once the hold exceeds the key.
	MinimalROI map[int64]float64 `yaml:"minimal_roi"`

	TakeProfitStages []TakeProfitStage `yaml:"take_profit_stages"`

	BreakEvenProfit float64 `yaml:"break_even_profit"`
	BreakEvenStop   float64 `yaml:"break_even_stop"`

	TrailingStop                TrailingStopConfig `yaml:"trailing_stop"`
	TrailingStopPositive        float64            `yaml:"trailing_stop_positive"`
	TrailingStopPositiveOffset  float64            `yaml:"trailing_stop_positive_offset"`
	TrailingOnlyOffsetIsReached bool               `yaml:"trailing_only_offset_is_reached"`

	CorrelationFilter CorrelationFilterConfig `yaml:"correlation_filter"`
}

// ExecutionConfig controls order placement in paper and live modes.
type ExecutionConfig struct {
	OrderType               string  `yaml:"order_type"`
	LimitOrderOffsetPercent float64 `yaml:"limit_order_offset_percent"`
	MinOrderUsdt            float64 `yaml:"min_order_usdt"`
	LimitOrderTimeoutSecs   int     `yaml:"limit_order_timeout_seconds"`
	MaxExitPriceDeviation   float64 `yaml:"max_exit_price_deviation"`
}

// ProtectionRule is the shared shape of a single protection gate. Fields
// not used by a given rule are ignored by it.
type ProtectionRule struct {
	Enabled                bool    `yaml:"enabled"`
	LookbackPeriodCandles  int     `yaml:"lookback_period_candles"`
	TradeLimit             int     `yaml:"trade_limit"`
	StopDurationCandles    int     `yaml:"stop_duration_candles"`
	OnlyPerPair            bool    `yaml:"only_per_pair"`
	MaxAllowedDrawdown     float64 `yaml:"max_allowed_drawdown"`
	RequiredProfit         float64 `yaml:"required_profit"`
}

// ProtectionsConfig groups the four protection gates, evaluated in the
// fixed order cooldown, stoploss guard, max drawdown, low-profit pairs.
type ProtectionsConfig struct {
	Cooldown       ProtectionRule `yaml:"cooldown"`
	StoplossGuard  ProtectionRule `yaml:"stoploss_guard"`
	MaxDrawdown    ProtectionRule `yaml:"max_drawdown"`
	LowProfitPairs ProtectionRule `yaml:"low_profit_pairs"`
}

// Any reports whether at least one protection rule is enabled.
func (p ProtectionsConfig) Any() bool {
	return p.Cooldown.Enabled || p.StoplossGuard.Enabled ||
		p.MaxDrawdown.Enabled || p.LowProfitPairs.Enabled
}

// EnsembleMember names one voting sub-strategy and its weight.
type EnsembleMember struct {
	ID     string  `yaml:"id"`
	Weight float64 `yaml:"weight"`
}

// EnsembleConfig configures the ensemble voter when strategy_id is
// "ensemble".
type EnsembleConfig struct {
	Strategies []EnsembleMember `yaml:"strategies"`
	Threshold  float64          `yaml:"threshold"`
	Unanimous  bool             `yaml:"unanimous"`
}

// PaperConfig configures a paper-trading or backtest scenario account.
type PaperConfig struct {
	ScenarioID          string  `yaml:"scenario_id"`
	InitialUsdt         float64 `yaml:"initial_usdt"`
	FeeRate             float64 `yaml:"fee_rate"`
	SlippagePercent     float64 `yaml:"slippage_percent"`
	ReportIntervalHours float64 `yaml:"report_interval_hours"`
}

// RiskOverride is a partial RiskConfig used by regime overrides; nil
// pointers mean "inherit from base". TrailingStop is deep-merged.
type RiskOverride struct {
	StopLossPercent   *float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent *float64 `yaml:"take_profit_percent"`
	PositionRatio     *float64 `yaml:"position_ratio"`
	MinRR             *float64 `yaml:"min_rr"`
	TimeStopHours     *float64 `yaml:"time_stop_hours"`

	TrailingStop *struct {
		Enabled           *bool    `yaml:"enabled"`
		ActivationPercent *float64 `yaml:"activation_percent"`
		CallbackPercent   *float64 `yaml:"callback_percent"`
	} `yaml:"trailing_stop"`
}

// Apply merges the override onto base field-by-field and returns the
// result; base is not mutated.
func (o *RiskOverride) Apply(base RiskConfig) RiskConfig {
	if o == nil {
		return base
	}
	out := base
	if o.StopLossPercent != nil {
		out.StopLossPercent = *o.StopLossPercent
	}
	if o.TakeProfitPercent != nil {
		out.TakeProfitPercent = *o.TakeProfitPercent
	}
	if o.PositionRatio != nil {
		out.PositionRatio = *o.PositionRatio
	}
	if o.MinRR != nil {
		out.MinRR = *o.MinRR
	}
	if o.TimeStopHours != nil {
		out.TimeStopHours = *o.TimeStopHours
	}
	if o.TrailingStop != nil {
		if o.TrailingStop.Enabled != nil {
			out.TrailingStop.Enabled = *o.TrailingStop.Enabled
		}
		if o.TrailingStop.ActivationPercent != nil {
			out.TrailingStop.ActivationPercent = *o.TrailingStop.ActivationPercent
		}
		if o.TrailingStop.CallbackPercent != nil {
			out.TrailingStop.CallbackPercent = *o.TrailingStop.CallbackPercent
		}
	}
	return out
}

// TelegramConfig holds the notifier bot settings.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Users   []int  `yaml:"users"`
}

// Config is the full engine configuration loaded from YAML.
type Config struct {
	Timeframe       string `yaml:"timeframe"`
	HigherTimeframe string `yaml:"higher_timeframe"`
	Futures         bool   `yaml:"futures"`

	StrategyID string           `yaml:"strategy_id"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Signals    SignalsConfig    `yaml:"signals"`
	Risk       RiskConfig       `yaml:"risk"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Protections ProtectionsConfig `yaml:"protections"`
	Ensemble   EnsembleConfig   `yaml:"ensemble"`
	Paper      PaperConfig      `yaml:"paper"`
	Telegram   TelegramConfig   `yaml:"telegram"`

	// RegimeOverrides maps a signal-filter label to a partial risk
	// override merged onto Risk while that filter is active.
	RegimeOverrides map[string]*RiskOverride `yaml:"regime_overrides"`

	AvgFundingRatePer8h float64 `yaml:"avg_funding_rate_per_8h"`
}

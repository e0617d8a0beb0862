package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/calendar"
	"github.com/raykavin/marketcascade/internal/config"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/drift"
	"github.com/raykavin/marketcascade/internal/exchange/binance"
	"github.com/raykavin/marketcascade/internal/live"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/logger/zerolog"
	"github.com/raykavin/marketcascade/internal/monitor"
	"github.com/raykavin/marketcascade/internal/notifier/telegram"
	"github.com/raykavin/marketcascade/internal/paper"
	"github.com/raykavin/marketcascade/internal/report"
	"github.com/raykavin/marketcascade/internal/signal"
	"github.com/raykavin/marketcascade/internal/storage/bunt"
	"github.com/raykavin/marketcascade/internal/storage/filestore"
	sqlstore "github.com/raykavin/marketcascade/internal/storage/sql"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/spf13/cobra"
)

var (
	dataDir     string
	metricsAddr string

	paperScenario string
	liveScenario  string
	threshold     float64
)

func buildPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Run the engine against a simulated account on live candles",
		RunE:  func(cmd *cobra.Command, args []string) error { return runMonitor(false) },
	}
	addRunFlags(cmd)
	return cmd
}

func buildLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the engine against a real exchange account",
		RunE:  func(cmd *cobra.Command, args []string) error { return runMonitor(true) },
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&symbols, "symbol", "s", nil, "Symbols to trade (e.g. BTCUSDT)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for snapshots, logs and caches")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address (empty disables)")
	cmd.MarkFlagRequired("symbol")
}

func runMonitor(isLive bool) error {
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

	store, err := filestore.New(dataDir)
	if err != nil {
		return err
	}

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewEnsemble(registry))

	engine, err := signal.New(registry, cfg, log)
	if err != nil {
		return err
	}
	strat, err := registry.Get(strategyID(cfg))
	if err != nil {
		return err
	}

	acc, err := store.Load(cfg.Paper.ScenarioID)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = core.NewAccount(cfg.Paper.ScenarioID, cfg.Paper.InitialUsdt)
	}

	broker := binance.New(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"), log)

	tradeLog, err := sqlstore.FromSQLite(filepath.Join(dataDir, "trades.db"))
	if err != nil {
		return err
	}
	stateStore, err := bunt.FromFile(filepath.Join(dataDir, "strategy-state.db"))
	if err != nil {
		return err
	}
	defer stateStore.Close()

	var notify core.Notifier = newPersistingNotifier(store, tradeLog, nil, log)
	var statusSource telegram.StatusProvider

	var driver monitor.Driver
	if isLive {
		// Live fills already carry real slippage; the manager applies none.
		mgr := account.NewManager(acc, cfg.Paper.FeeRate, 0, 0, store, log)
		executor := live.NewExecutor(broker, mgr, cfg, strat, notify, log)
		driver = &monitor.LiveDriver{Executor: executor}
		statusSource = executor
	} else {
		mgr := account.NewManager(acc, cfg.Paper.FeeRate, cfg.Paper.SlippagePercent, cfg.Risk.SpreadBps, store, log)
		eng := paper.New(mgr, cfg, strat, notify, log)
		driver = &monitor.PaperDriver{Engine: eng}
		statusSource = eng
	}

	if cfg.Telegram.Enabled {
		token := cfg.Telegram.Token
		if env := os.Getenv("TELEGRAM_TOKEN"); env != "" {
			token = env
		}
		tg, err := telegram.New(telegram.Settings{Token: token, Users: cfg.Telegram.Users}, statusSource, log)
		if err != nil {
			return err
		}
		go tg.Start()
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, log)
	}

	warmup := cfg.Strategy.MA.Long * 3
	m := monitor.New(cfg, broker, engine, driver, candleDur, warmup, log, symbols...)
	m.SetStateProvider(stateStore.Scope)

	if calendarPath := os.Getenv("EVENT_CALENDAR"); calendarPath != "" {
		events, err := calendar.LoadFile(calendarPath)
		if err != nil {
			return err
		}
		m.SetEvents(events)
	}

	ctx, cancel := signalContext()
	defer cancel()
	m.Run(ctx)
	return nil
}

func buildDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare paper and live scenario fills",
		RunE:  runDrift,
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory holding scenario snapshots")
	cmd.Flags().StringVar(&paperScenario, "paper", "paper", "Paper scenario id")
	cmd.Flags().StringVar(&liveScenario, "live", "live", "Live scenario id")
	cmd.Flags().Float64Var(&threshold, "threshold", drift.DefaultThresholdPercent, "Drift percent flagged as excessive")
	return cmd
}

func runDrift(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := filestore.New(dataDir)
	if err != nil {
		return err
	}

	paperAcc, err := store.Load(paperScenario)
	if err != nil {
		return err
	}
	liveAcc, err := store.Load(liveScenario)
	if err != nil {
		return err
	}
	if paperAcc == nil || liveAcc == nil {
		return fmt.Errorf("both scenario snapshots are required (paper=%q live=%q)", paperScenario, liveScenario)
	}

	rep := drift.Analyze(paperAcc.Trades, liveAcc.Trades, drift.Config{
		PaperSlippage:    cfg.Paper.SlippagePercent,
		ThresholdPercent: threshold,
	})
	report.Drift(os.Stdout, rep)
	return nil
}

func strategyID(cfg *core.Config) string {
	if cfg.StrategyID == "" {
		return "default"
	}
	return cfg.StrategyID
}

func serveMetrics(addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Warn("metrics server stopped")
	}
}

// Package filestore persists scenario snapshots, append-only trade/signal
// history and the daily kline cache as plain JSON/JSONL files.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raykavin/marketcascade/internal/core"
)

// Store writes under a base directory:
//
//	paper-{scenarioId}.json          account snapshots
//	logs/{name}.jsonl                append-only history
//	logs/kline-cache/...             candle cache
type Store struct {
	baseDir string
}

// New creates the base directory if needed.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "logs", "kline-cache"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dirs: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) scenarioPath(scenarioID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("paper-%s.json", scenarioID))
}

// Save writes the account snapshot atomically: temp file then rename.
func (s *Store) Save(acc *core.Account) error {
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	path := s.scenarioPath(acc.ScenarioID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write account snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit account snapshot: %w", err)
	}
	return nil
}

// Load reads a scenario snapshot; a missing file returns (nil, nil) so a
// fresh scenario starts clean.
func (s *Store) Load(scenarioID string) (*core.Account, error) {
	data, err := os.ReadFile(s.scenarioPath(scenarioID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account snapshot: %w", err)
	}

	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("parse account snapshot: %w", err)
	}
	if acc.Positions == nil {
		acc.Positions = make(map[string]*core.Position)
	}
	if acc.FundingPaidBySymbol == nil {
		acc.FundingPaidBySymbol = make(map[string]float64)
	}
	return &acc, nil
}

// AppendJSONL appends one record to logs/{name}.jsonl.
func (s *Store) AppendJSONL(name string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", name, err)
	}

	path := filepath.Join(s.baseDir, "logs", name+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s log: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s record: %w", name, err)
	}
	return nil
}

func (s *Store) cachePath(symbol, interval, startDate, endDate string) string {
	return filepath.Join(s.baseDir, "logs", "kline-cache",
		fmt.Sprintf("%s_%s_%s_%s.json", symbol, interval, startDate, endDate))
}

// SaveKlines caches a candle range, but never the current incomplete day:
// a range ending today or later is silently skipped.
func (s *Store) SaveKlines(symbol, interval, startDate, endDate string, klines core.Series) error {
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return fmt.Errorf("parse cache end date: %w", err)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !end.Before(today) {
		return nil
	}

	data, err := json.Marshal(klines)
	if err != nil {
		return fmt.Errorf("marshal klines: %w", err)
	}
	return os.WriteFile(s.cachePath(symbol, interval, startDate, endDate), data, 0o644)
}

// LoadKlines reads a cached range; a missing or corrupt file returns
// (nil, false) so callers fall through to the feed.
func (s *Store) LoadKlines(symbol, interval, startDate, endDate string) (core.Series, bool) {
	data, err := os.ReadFile(s.cachePath(symbol, interval, startDate, endDate))
	if err != nil {
		return nil, false
	}
	var klines core.Series
	if err := json.Unmarshal(data, &klines); err != nil {
		return nil, false
	}
	return klines, true
}

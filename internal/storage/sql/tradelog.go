// Package sql persists closed trades through GORM for offline querying,
// independent of the per-scenario JSON snapshots.
package sql

import (
	"fmt"
	"time"

	"github.com/raykavin/marketcascade/internal/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TradeRow is the relational projection of a closed trade.
type TradeRow struct {
	ID uint `gorm:"primaryKey"`
	core.Trade `gorm:"embedded"`
	RecordedAt time.Time
}

// TradeLog appends closed trades to a relational store.
type TradeLog struct {
	db *gorm.DB
}

// FromSQLite opens a sqlite-backed trade log at path.
func FromSQLite(path string) (*TradeLog, error) {
	return FromDialector(sqlite.Open(path))
}

// FromDialector opens a trade log over any GORM dialector.
func FromDialector(dialector gorm.Dialector, opts ...gorm.Option) (*TradeLog, error) {
	db, err := gorm.Open(dialector, opts...)
	if err != nil {
		return nil, fmt.Errorf("open trade log database: %w", err)
	}
	if err := db.AutoMigrate(&TradeRow{}); err != nil {
		return nil, fmt.Errorf("migrate trade log: %w", err)
	}
	return &TradeLog{db: db}, nil
}

// Append records one closed trade.
func (l *TradeLog) Append(trade core.Trade) error {
	row := TradeRow{Trade: trade, RecordedAt: time.Now().UTC()}
	if err := l.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// BySymbol returns all trades for symbol in a scenario, oldest first.
func (l *TradeLog) BySymbol(scenarioID, symbol string) ([]core.Trade, error) {
	var rows []TradeRow
	err := l.db.
		Where("scenario_id = ? AND symbol = ?", scenarioID, symbol).
		Order("exit_time asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	out := make([]core.Trade, len(rows))
	for i, row := range rows {
		out[i] = row.Trade
	}
	return out, nil
}

// ByScenario returns every trade for a scenario, oldest first.
func (l *TradeLog) ByScenario(scenarioID string) ([]core.Trade, error) {
	var rows []TradeRow
	err := l.db.
		Where("scenario_id = ?", scenarioID).
		Order("exit_time asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	out := make([]core.Trade, len(rows))
	for i, row := range rows {
		out[i] = row.Trade
	}
	return out, nil
}

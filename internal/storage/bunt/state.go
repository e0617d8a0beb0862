// Package bunt implements the per-strategy, per-symbol state store on
// BuntDB, with one key-value map per (strategy, symbol) scope and atomic
// mutation through buntdb transactions.
package bunt

import (
	"encoding/json"
	"fmt"

	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/tidwall/buntdb"
)

// Store owns the underlying database; Scope hands out per-strategy,
// per-symbol views implementing strategy.StateStore.
type Store struct {
	db *buntdb.DB
}

// FromFile opens (or creates) a file-backed store.
func FromFile(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb: %w", err)
	}
	return &Store{db: db}, nil
}

// FromMemory opens an in-memory store, used by tests and backtests.
func FromMemory() (*Store, error) {
	return FromFile(":memory:")
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Scope binds a state view to one strategy and symbol.
func (s *Store) Scope(strategyID, symbol string) strategy.StateStore {
	return &scopedState{db: s.db, key: fmt.Sprintf("strategy-state:%s:%s", strategyID, symbol)}
}

type scopedState struct {
	db  *buntdb.DB
	key string
}

// load reads the scope's map; corrupt or missing data reads as empty.
func (s *scopedState) load(tx *buntdb.Tx) map[string]any {
	value, err := tx.Get(s.key)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(value), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func (s *scopedState) save(tx *buntdb.Tx, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal strategy state: %w", err)
	}
	_, _, err = tx.Set(s.key, string(data), nil)
	return err
}

func (s *scopedState) Get(key string, def any) any {
	var out any = def
	_ = s.db.View(func(tx *buntdb.Tx) error {
		if v, ok := s.load(tx)[key]; ok {
			out = v
		}
		return nil
	})
	return out
}

func (s *scopedState) Set(key string, value any) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		state := s.load(tx)
		state[key] = value
		return s.save(tx, state)
	})
}

func (s *scopedState) Delete(key string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		state := s.load(tx)
		delete(state, key)
		return s.save(tx, state)
	})
}

func (s *scopedState) Snapshot() map[string]any {
	out := map[string]any{}
	_ = s.db.View(func(tx *buntdb.Tx) error {
		out = s.load(tx)
		return nil
	})
	return out
}

package main

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/storage/filestore"
	sqlstore "github.com/raykavin/marketcascade/internal/storage/sql"
)

// persistingNotifier fans trades out to the append-only JSONL history and
// the relational trade log, then forwards to the next notifier. Storage
// failures are logged and never reach the engine.
type persistingNotifier struct {
	store    *filestore.Store
	tradeLog *sqlstore.TradeLog
	next     core.Notifier
	log      logger.Logger
}

func newPersistingNotifier(store *filestore.Store, tradeLog *sqlstore.TradeLog, next core.Notifier, log logger.Logger) *persistingNotifier {
	if next == nil {
		next = core.NoopNotifier{}
	}
	return &persistingNotifier{store: store, tradeLog: tradeLog, next: next, log: log}
}

func (n *persistingNotifier) Notify(message string) { n.next.Notify(message) }

func (n *persistingNotifier) OnTrade(trade core.Trade) {
	if err := n.store.AppendJSONL("trades", trade); err != nil {
		n.log.WithError(err).Warn("trade history append failed")
	}
	if n.tradeLog != nil {
		if err := n.tradeLog.Append(trade); err != nil {
			n.log.WithError(err).Warn("relational trade log append failed")
		}
	}
	n.next.OnTrade(trade)
}

func (n *persistingNotifier) OnError(err error) { n.next.OnError(err) }

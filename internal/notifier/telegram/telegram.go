// Package telegram adapts the engine's Notifier interface to a Telegram
// bot with an authorized-user middleware and a small status command menu.
package telegram

import (
	"fmt"
	"time"

	"slices"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Settings configures the bot and its authorized chat users.
type Settings struct {
	Token string
	Users []int
}

// StatusProvider supplies the account view the command handlers render.
type StatusProvider interface {
	Account() *core.Account
}

// Notifier implements core.Notifier over telebot.
type Notifier struct {
	client   *tb.Bot
	settings Settings
	status   StatusProvider
	log      logger.Logger
}

// New creates the bot, installs the authorization middleware and registers
// the command handlers.
func New(settings Settings, status StatusProvider, log logger.Logger) (*Notifier, error) {
	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	authorized := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}
		if slices.Contains(settings.Users, int(u.Message.Sender.ID)) {
			return true
		}
		log.WithField("user", u.Message.Sender.ID).Warn("unauthorized telegram user")
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    authorized,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	n := &Notifier{client: client, settings: settings, status: status, log: log}
	n.registerHandlers()
	return n, nil
}

// Start begins long-polling; blocks, so callers run it on its own
// goroutine.
func (n *Notifier) Start() { n.client.Start() }

func (n *Notifier) registerHandlers() {
	n.client.Handle("/status", func(m *tb.Message) {
		acc := n.status.Account()
		n.reply(m, fmt.Sprintf("scenario *%s*\npositions: %d\ntrades: %d",
			acc.ScenarioID, len(acc.Positions), len(acc.Trades)))
	})
	n.client.Handle("/balance", func(m *tb.Message) {
		acc := n.status.Account()
		n.reply(m, fmt.Sprintf("free: %.2f USDT (initial %.2f)", acc.Usdt, acc.InitialUsdt))
	})
	n.client.Handle("/profit", func(m *tb.Message) {
		acc := n.status.Account()
		var pnl float64
		for _, t := range acc.Trades {
			pnl += t.PnL
		}
		n.reply(m, fmt.Sprintf("realized pnl: %.2f USDT over %d trades", pnl, len(acc.Trades)))
	})
}

func (n *Notifier) reply(m *tb.Message, text string) {
	if _, err := n.client.Send(m.Sender, text); err != nil {
		n.log.WithError(err).Warn("telegram reply failed")
	}
}

// broadcast sends to every authorized user; delivery errors are logged and
// swallowed so the engine never blocks on notification.
func (n *Notifier) broadcast(text string) {
	for _, userID := range n.settings.Users {
		user := &tb.User{ID: int64(userID)}
		if _, err := n.client.Send(user, text); err != nil {
			n.log.WithError(err).WithField("user", userID).Warn("telegram send failed")
		}
	}
}

// Notify implements core.Notifier.
func (n *Notifier) Notify(message string) { n.broadcast(message) }

// OnTrade implements core.Notifier.
func (n *Notifier) OnTrade(trade core.Trade) {
	n.broadcast(fmt.Sprintf("*%s* %s closed (%s)\nentry %.4f exit %.4f\npnl %.2f USDT (%.2f%%)",
		trade.Symbol, trade.Side, trade.ExitReason,
		trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.PnLPercent*100))
}

// OnError implements core.Notifier.
func (n *Notifier) OnError(err error) {
	n.broadcast(fmt.Sprintf("error: %v", err))
}

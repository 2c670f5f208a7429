package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/ledger"
	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - Trade and performance notifications
// ═══════════════════════════════════════════════════════════════════════════════
//
// Fire-and-forget: a failed notification is logged and dropped, never
// retried. Notifications must not slow the trading path, so sends run on
// their own goroutine.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Notifier pushes trading events to a Telegram chat. A nil Notifier (no
// token configured) is usable and does nothing.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier connects to the Telegram API. Returns (nil, nil) when token is
// empty so callers can wire the result straight into the engine.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		log.Info().Msg("Telegram notifications disabled")
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("📱 Telegram notifier ready")
	return &Notifier{api: api, chatID: chatID}, nil
}

// StraddleOpened announces a new two-sided entry.
func (n *Notifier) StraddleOpened(symbol string, price, quantity, strength float64) {
	if n == nil {
		return
	}
	msg := fmt.Sprintf(
		"🚀 *Straddle opened*\n%s @ %.6g\nqty %.6g per side\nstrength %.2f",
		symbol, price, quantity, strength,
	)
	n.send(msg)
}

// TradeClosed announces a settled position with its realized economics.
func (n *Notifier) TradeClosed(t types.Trade) {
	if n == nil {
		return
	}
	emoji := "🟢"
	if t.NetPnl.IsNegative() {
		emoji = "🔴"
	}
	msg := fmt.Sprintf(
		"%s *%s %s closed* (%s)\nentry %.6g → exit %.6g\nnet P&L: %s (fees %s)",
		emoji, t.Symbol, t.Side, t.ExitReason,
		t.EntryPrice, t.ExitPrice,
		t.NetPnl.StringFixed(4), t.FeesPaid.StringFixed(4),
	)
	n.send(msg)
}

// SendPerformance pushes a session summary.
func (n *Notifier) SendPerformance(s ledger.PerformanceSnapshot) {
	if n == nil {
		return
	}
	msg := fmt.Sprintf(
		"📊 *Session summary* %s\nequity: %s (%s%%)\ntrades: %d (today %d), win rate %.1f%%\nfees paid: %s\nmax drawdown: %s%%\nopen positions: %d",
		s.Time.Format(time.RFC3339),
		s.Equity.StringFixed(2), s.TotalReturnPct.StringFixed(2),
		s.TotalTrades, s.TradesToday, s.WinRate*100,
		s.TotalFees.StringFixed(4),
		s.MaxDrawdownPct.StringFixed(2),
		s.OpenPositions,
	)
	n.send(msg)
}

func (n *Notifier) send(text string) {
	go func() {
		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.api.Send(msg); err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram send failed")
		}
	}()
}

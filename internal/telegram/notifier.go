package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
	"github.com/ai776/daily-picks/internal/portfolio"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier is an events.Sink that reports refreshes and new lots to a
// Telegram chat.
type Notifier struct {
	bot     sender
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	if err := tgbotapi.SetLogger(log); err != nil {
		log.Warn("failed to set telegram logger", "error", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) Enabled() bool { return n.enabled }

func (n *Notifier) Handle(e events.Event) {
	if !n.enabled {
		return
	}
	switch e.Kind {
	case events.PricesUpdated:
		if p, ok := e.Payload.(portfolio.PricesPayload); ok {
			n.send(FormatPrices(p))
		}
	case events.AssetAdded:
		if r, ok := e.Payload.(asset.Record); ok {
			n.send(FormatAssetAdded(r))
		}
	case events.RefreshFailed:
		n.send(fmt.Sprintf("⚠️ *更新エラー*\n%v", e.Payload))
	}
}

// FormatPrices renders the valuation after a refresh.
func FormatPrices(p portfolio.PricesPayload) string {
	var sb strings.Builder

	emoji := "📈"
	if p.Summary.TotalGain < 0 {
		emoji = "📉"
	}
	sb.WriteString(fmt.Sprintf("%s *ポートフォリオ更新*\n", emoji))
	sb.WriteString(fmt.Sprintf("評価額: %s (%s)\n",
		asset.FormatUSD(p.Summary.TotalValue), asset.FormatJPY(asset.InYen(p.Summary.TotalValue, p.ExchangeRate))))
	sb.WriteString(fmt.Sprintf("損益: %s (%+.2f%%)\n", asset.FormatUSD(p.Summary.TotalGain), p.Summary.GainPercentage))
	sb.WriteString(fmt.Sprintf("USD/JPY: %.2f\n", p.ExchangeRate))

	for _, r := range p.Assets {
		sb.WriteString(fmt.Sprintf("• %s %s (%+.1f%%)\n", r.Ticker, asset.FormatUSD(r.CurrentPrice), r.GainPercentage()))
	}
	return sb.String()
}

func FormatAssetAdded(r asset.Record) string {
	return fmt.Sprintf("🟢 *%s* %g株 @ %s [%s]", r.Ticker, r.Quantity, asset.FormatUSD(r.AvgPrice), r.Source)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}

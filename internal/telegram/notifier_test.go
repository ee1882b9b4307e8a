package telegram

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
	"github.com/ai776/daily-picks/internal/portfolio"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestNotifier_DisabledByDefault(t *testing.T) {
	n := NewNotifier(&config.Config{}, logger.Nop())
	if n.Enabled() {
		t.Fatal("notifier should be disabled without config")
	}
	n.Handle(events.Event{Kind: events.RefreshFailed, Payload: "x"})
}

func TestNotifier_Handle(t *testing.T) {
	fs := &fakeSender{}
	n := &Notifier{bot: fs, chatID: 42, enabled: true, logger: logger.Nop()}

	records := []asset.Record{{Ticker: "AAA", Quantity: 2, AvgPrice: 10, CurrentPrice: 15}}
	n.Handle(events.Event{Kind: events.PricesUpdated, Payload: portfolio.PricesPayload{
		Assets:       records,
		Summary:      asset.Summarize(records),
		ExchangeRate: 150,
	}})
	n.Handle(events.Event{Kind: events.RefreshFailed, Payload: "market snapshot unavailable"})
	n.Handle(events.Event{Kind: events.ChatUpdated})

	if len(fs.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(fs.sent))
	}
	prices := fs.sent[0]
	if prices.ChatID != 42 || prices.ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("message = %+v", prices)
	}
	for _, want := range []string{"$30.00", "¥4,500", "+50.00%", "AAA"} {
		if !strings.Contains(prices.Text, want) {
			t.Errorf("prices message %q missing %q", prices.Text, want)
		}
	}
	if !strings.Contains(fs.sent[1].Text, "market snapshot unavailable") {
		t.Errorf("error message = %q", fs.sent[1].Text)
	}
}

func TestFormatAssetAdded(t *testing.T) {
	got := FormatAssetAdded(asset.Record{Ticker: "NVDA", Quantity: 3, AvgPrice: 120.5, Source: asset.SourceGemini})
	if !strings.Contains(got, "NVDA") || !strings.Contains(got, "$120.50") || !strings.Contains(got, "gemini") {
		t.Errorf("FormatAssetAdded() = %q", got)
	}
}

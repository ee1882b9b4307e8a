package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/logger"
)

var (
	// ErrMalformedResponse means the backend answered but the payload could
	// not be parsed into the expected structure.
	ErrMalformedResponse = errors.New("malformed AI response")
	ErrInvalidInput      = errors.New("invalid input")
)

// Capability names recorded in the journal.
const (
	CapabilityIcon     = "icon"
	CapabilityReceipt  = "receipt"
	CapabilityNews     = "news"
	CapabilitySnapshot = "snapshot"
	CapabilityChat     = "chat"
)

// Journal records every backend call. Implementations must be safe for
// concurrent use.
type Journal interface {
	RecordCall(capability, backend string, elapsed time.Duration, raw string, err error)
}

type nopJournal struct{}

func (nopJournal) RecordCall(string, string, time.Duration, string, error) {}

// Gateway wraps each AI capability with a fixed input contract and
// defensive output parsing. Apart from ExtractTradeFields and chat stream
// errors, failures are logged and degrade to an absent or empty result.
type Gateway struct {
	backend Backend
	journal Journal
	logger  *logger.Logger
}

func NewGateway(backend Backend, journal Journal, log *logger.Logger) *Gateway {
	if journal == nil {
		journal = nopJournal{}
	}
	return &Gateway{
		backend: backend,
		journal: journal,
		logger:  log.With("backend", backend.Name()),
	}
}

func (g *Gateway) call(ctx context.Context, capability string, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := g.backend.Generate(ctx, req)
	raw := ""
	if resp != nil {
		raw = resp.Text
	}
	g.journal.RecordCall(capability, g.backend.Name(), time.Since(start), raw, err)
	return resp, err
}

// SynthesizeIcon generates an icon for ticker. It returns nil on any
// failure; callers render asset.Glyph instead.
func (g *Gateway) SynthesizeIcon(ctx context.Context, ticker string) *asset.Icon {
	ticker = asset.NormalizeTicker(ticker)
	if ticker == "" {
		return nil
	}

	start := time.Now()
	icon, err := g.backend.GenerateImage(ctx, fmt.Sprintf(iconPrompt, ticker))
	g.journal.RecordCall(CapabilityIcon, g.backend.Name(), time.Since(start), "", err)
	if err != nil {
		g.logger.Warn("icon synthesis failed", "ticker", ticker, "error", err)
		return nil
	}
	if icon == nil || len(icon.Data) == 0 {
		g.logger.Warn("icon synthesis returned no image", "ticker", ticker)
		return nil
	}
	return icon
}

// ExtractTradeFields reads a trade confirmation screenshot. A nil result
// with a nil error means nothing was recognised or the backend could not be
// reached. A payload that cannot be parsed is reported as
// ErrMalformedResponse.
func (g *Gateway) ExtractTradeFields(ctx context.Context, image []byte, mimeType string) (*TradeFields, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if strings.TrimSpace(mimeType) == "" {
		return nil, fmt.Errorf("%w: missing MIME type", ErrInvalidInput)
	}

	resp, err := g.call(ctx, CapabilityReceipt, &Request{
		System:     receiptSystemPrompt,
		Prompt:     "Extract the trade details from this image.",
		Attachment: &Attachment{Data: image, MIMEType: mimeType},
		JSON:       true,
	})
	if err != nil {
		g.logger.Warn("receipt extraction failed", "error", err)
		return nil, nil
	}

	fields, err := ParseTradeFields(resp.Text)
	if err != nil {
		g.logger.Warn("receipt extraction returned malformed payload", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		g.logger.Info("receipt extraction found nothing")
	}
	return fields, nil
}

// FetchNews returns at most ten stories about tickers. No tickers means no
// call and no news.
func (g *Gateway) FetchNews(ctx context.Context, tickers []string) []NewsItem {
	if len(tickers) == 0 {
		return nil
	}

	g.logger.Info("fetching news", "tickers", len(tickers))
	resp, err := g.call(ctx, CapabilityNews, &Request{
		System: newsSystemPrompt,
		Prompt: BuildNewsPrompt(tickers),
		Search: true,
	})
	if err != nil {
		g.logger.Warn("news fetch failed", "error", err)
		return nil
	}

	items := ParseNews(resp.Text, resp.Sources)
	g.logger.Info("news fetched", "items", len(items), "sources", len(resp.Sources))
	return items
}

// FetchMarketSnapshot looks up prices for tickers and the USD/JPY rate.
// The rate is requested even when tickers is empty. Nil means no usable
// snapshot.
func (g *Gateway) FetchMarketSnapshot(ctx context.Context, tickers []string) *MarketSnapshot {
	g.logger.Info("fetching market snapshot", "tickers", len(tickers))
	resp, err := g.call(ctx, CapabilitySnapshot, &Request{
		System: snapshotSystemPrompt,
		Prompt: BuildSnapshotPrompt(tickers),
		Search: true,
	})
	if err != nil {
		g.logger.Warn("market snapshot failed", "error", err)
		return nil
	}

	snap, err := ParseSnapshot(resp.Text)
	if err != nil {
		g.logger.Warn("market snapshot unparseable", "error", err)
		return nil
	}
	g.logger.Info("market snapshot received", "prices", len(snap.Prices), "has_rate", snap.ExchangeRate != nil)
	return snap
}

// StreamChatReply streams the assistant reply to message. The sequence is
// single-use; a failure is yielded once as the final element.
func (g *Gateway) StreamChatReply(ctx context.Context, history []Turn, message, portfolioContext string, exchangeRate float64) iter.Seq2[string, error] {
	req := &ChatRequest{
		System:  buildChatSystemPrompt(portfolioContext, exchangeRate),
		History: history,
		Message: message,
	}

	return func(yield func(string, error) bool) {
		start := time.Now()
		var sb strings.Builder
		var streamErr error
		defer func() {
			g.journal.RecordCall(CapabilityChat, g.backend.Name(), time.Since(start), sb.String(), streamErr)
		}()

		for fragment, err := range g.backend.StreamChat(ctx, req) {
			if err != nil {
				streamErr = err
				g.logger.Warn("chat stream failed", "error", err)
				yield("", err)
				return
			}
			if fragment == "" {
				continue
			}
			sb.WriteString(fragment)
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

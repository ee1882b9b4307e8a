package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
)

var (
	ErrRefreshInProgress   = errors.New("refresh already in progress")
	ErrInvalidExchangeRate = errors.New("exchange rate must be positive")
)

// Gateway is the subset of ai.Gateway the service needs.
type Gateway interface {
	SynthesizeIcon(ctx context.Context, ticker string) *asset.Icon
	FetchMarketSnapshot(ctx context.Context, tickers []string) *ai.MarketSnapshot
	FetchNews(ctx context.Context, tickers []string) []ai.NewsItem
}

// Recorder persists a valuation after each successful market refresh.
type Recorder interface {
	RecordSnapshot(records []asset.Record, rate float64) error
}

// Service owns the holdings, the USD/JPY rate and the current news list for
// one session.
type Service struct {
	mu     sync.RWMutex
	assets []asset.Record
	rate   float64
	news   []ai.NewsItem

	refreshing     sync.Mutex
	newsRefreshing sync.Mutex

	gateway  Gateway
	events   events.Publisher
	recorder Recorder
	now      func() time.Time
	logger   *logger.Logger
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(gw Gateway, pub events.Publisher, defaultRate float64, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		rate:    defaultRate,
		gateway: gw,
		events:  pub,
		now:     time.Now,
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(kind events.Kind, payload any) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Kind: kind, At: s.now(), Payload: payload})
}

// AddAsset appends a new lot. The icon is synthesised before the record is
// stored, so a record is never visible without its final icon state.
func (s *Service) AddAsset(ctx context.Context, in asset.Input) (asset.Record, error) {
	if err := in.Validate(); err != nil {
		return asset.Record{}, err
	}

	icon := s.gateway.SynthesizeIcon(ctx, in.Ticker)
	return s.insert(in, icon)
}

// Seed adds a lot without icon synthesis. Used for holdings from config.
func (s *Service) Seed(in asset.Input) (asset.Record, error) {
	return s.insert(in, nil)
}

func (s *Service) insert(in asset.Input, icon *asset.Icon) (asset.Record, error) {
	rec, err := asset.NewRecord(in, icon, s.now())
	if err != nil {
		return asset.Record{}, err
	}

	s.mu.Lock()
	s.assets = append(s.assets, rec)
	s.mu.Unlock()

	s.logger.Info("asset added", "ticker", rec.Ticker, "quantity", rec.Quantity, "icon", icon != nil)
	s.publish(events.AssetAdded, rec)
	return rec, nil
}

// RefreshResult describes what a market refresh changed.
type RefreshResult struct {
	Available    bool    `json:"available"`
	Updated      int     `json:"updated"`
	RateUpdated  bool    `json:"rateUpdated"`
	ExchangeRate float64 `json:"exchangeRate"`
}

// RefreshMarketData fetches a snapshot for the current tickers and merges
// it. Only overlapping refreshes are an error; an absent snapshot leaves
// everything unchanged.
func (s *Service) RefreshMarketData(ctx context.Context) (RefreshResult, error) {
	if !s.refreshing.TryLock() {
		return RefreshResult{}, ErrRefreshInProgress
	}
	defer s.refreshing.Unlock()

	tickers := asset.Tickers(s.Assets())
	snap := s.gateway.FetchMarketSnapshot(ctx, tickers)
	if snap == nil {
		s.logger.Warn("market refresh produced no snapshot", "tickers", len(tickers))
		s.publish(events.RefreshFailed, "market snapshot unavailable")
		return RefreshResult{Available: false, ExchangeRate: s.ExchangeRate()}, nil
	}

	now := s.now()
	s.mu.Lock()
	merged := ApplySnapshot(s.assets, snap, now)
	updated := countChanged(s.assets, merged)
	s.assets = merged
	if snap.ExchangeRate != nil {
		s.rate = *snap.ExchangeRate
	}
	rate := s.rate
	records := append([]asset.Record(nil), s.assets...)
	s.mu.Unlock()

	res := RefreshResult{Available: true, Updated: updated, RateUpdated: snap.ExchangeRate != nil, ExchangeRate: rate}
	s.logger.Info("market data refreshed", "updated", updated, "rate", rate, "rate_updated", res.RateUpdated)

	if res.RateUpdated {
		s.publish(events.RateUpdated, rate)
	}
	s.publish(events.PricesUpdated, PricesPayload{Assets: records, Summary: asset.Summarize(records), ExchangeRate: rate})

	if s.recorder != nil {
		if err := s.recorder.RecordSnapshot(records, rate); err != nil {
			s.logger.Error("failed to record portfolio snapshot", "error", err)
		}
	}
	return res, nil
}

// PricesPayload is published with events.PricesUpdated.
type PricesPayload struct {
	Assets       []asset.Record `json:"assets"`
	Summary      asset.Summary  `json:"summary"`
	ExchangeRate float64        `json:"exchangeRate"`
}

// ApplySnapshot returns a copy of records with prices from snap applied to
// every record whose ticker matches a snapshot key. Unmatched records are
// copied unchanged. records is not modified.
func ApplySnapshot(records []asset.Record, snap *ai.MarketSnapshot, now time.Time) []asset.Record {
	out := make([]asset.Record, len(records))
	copy(out, records)
	if snap == nil {
		return out
	}
	for i := range out {
		if price, ok := snap.Price(out[i].Ticker); ok {
			out[i].CurrentPrice = price
			out[i].UpdatedAt = now
		}
	}
	return out
}

func countChanged(before, after []asset.Record) int {
	n := 0
	for i := range before {
		if !before[i].UpdatedAt.Equal(after[i].UpdatedAt) || before[i].CurrentPrice != after[i].CurrentPrice {
			n++
		}
	}
	return n
}

// RefreshNews replaces the news list with stories for the current tickers.
func (s *Service) RefreshNews(ctx context.Context) ([]ai.NewsItem, error) {
	if !s.newsRefreshing.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.newsRefreshing.Unlock()

	items := s.gateway.FetchNews(ctx, asset.Tickers(s.Assets()))

	s.mu.Lock()
	s.news = items
	s.mu.Unlock()

	s.publish(events.NewsUpdated, items)
	return append([]ai.NewsItem(nil), items...), nil
}

// SetExchangeRate replaces the rate with a user-entered value.
func (s *Service) SetExchangeRate(rate float64) error {
	if !(rate > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidExchangeRate, rate)
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()

	s.publish(events.RateUpdated, rate)
	return nil
}

func (s *Service) Assets() []asset.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]asset.Record(nil), s.assets...)
}

// Summary is computed from the live collection on every call.
func (s *Service) Summary() asset.Summary {
	return asset.Summarize(s.Assets())
}

func (s *Service) ExchangeRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

func (s *Service) News() []ai.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ai.NewsItem(nil), s.news...)
}

// View is a consistent read of the whole portfolio.
type View struct {
	Assets        []asset.Record `json:"assets"`
	Summary       asset.Summary  `json:"summary"`
	ExchangeRate  float64        `json:"exchangeRate"`
	TotalValueJPY float64        `json:"totalValueJpy"`
	TotalGainJPY  float64        `json:"totalGainJpy"`
}

func (s *Service) View() View {
	s.mu.RLock()
	records := append([]asset.Record(nil), s.assets...)
	rate := s.rate
	s.mu.RUnlock()

	sum := asset.Summarize(records)
	return View{
		Assets:        records,
		Summary:       sum,
		ExchangeRate:  rate,
		TotalValueJPY: asset.InYen(sum.TotalValue, rate),
		TotalGainJPY:  asset.InYen(sum.TotalGain, rate),
	}
}

type contextHolding struct {
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	AvgPrice       float64 `json:"avgPrice"`
	CurrentPrice   float64 `json:"currentPrice"`
	GainPercentage float64 `json:"gainPercentage"`
	Source         string  `json:"source"`
}

// ContextJSON serialises the holdings and summary for chat conditioning.
func (s *Service) ContextJSON() string {
	v := s.View()
	holdings := make([]contextHolding, 0, len(v.Assets))
	for _, r := range v.Assets {
		holdings = append(holdings, contextHolding{
			Ticker:         r.Ticker,
			Name:           r.Name,
			Quantity:       r.Quantity,
			AvgPrice:       r.AvgPrice,
			CurrentPrice:   r.CurrentPrice,
			GainPercentage: r.GainPercentage(),
			Source:         string(r.Source),
		})
	}
	data, err := json.Marshal(struct {
		Holdings []contextHolding `json:"holdings"`
		Summary  asset.Summary    `json:"summary"`
	}{holdings, v.Summary})
	if err != nil {
		s.logger.Error("failed to encode portfolio context", "error", err)
		return "[]"
	}
	return string(data)
}

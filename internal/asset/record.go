package asset

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Source labels which AI pick (or the user) a holding came from.
type Source string

const (
	SourceGemini     Source = "gemini"
	SourceChatGPT    Source = "chatgpt"
	SourceClaude     Source = "claude"
	SourceGrok       Source = "grok"
	SourcePerplexity Source = "perplexity"
	SourceManual     Source = "manual"
)

// Sources lists every accepted attribution label.
var Sources = []Source{SourceGemini, SourceChatGPT, SourceClaude, SourceGrok, SourcePerplexity, SourceManual}

// Valid reports whether s is one of the accepted labels.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// Icon is an opaque image reference rendered next to a holding.
type Icon struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Record is one tracked purchase lot. Several records may share a ticker.
type Record struct {
	ID           string    `json:"id"`
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	AvgPrice     float64   `json:"avgPrice"`
	CurrentPrice float64   `json:"currentPrice"`
	Source       Source    `json:"source"`
	Icon         *Icon     `json:"icon,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Input is the user-supplied part of a new record.
type Input struct {
	Ticker       string   `json:"ticker" validate:"required,max=16"`
	Name         string   `json:"name" validate:"max=128"`
	Quantity     float64  `json:"quantity" validate:"gte=0"`
	AvgPrice     float64  `json:"avgPrice" validate:"gte=0"`
	CurrentPrice *float64 `json:"currentPrice,omitempty" validate:"omitempty,gte=0"`
	Source       Source   `json:"source" validate:"omitempty,oneof=gemini chatgpt claude grok perplexity manual"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Validate checks the input against its field constraints.
func (in Input) Validate() error {
	in.Ticker = NormalizeTicker(in.Ticker)
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid asset: %w", err)
	}
	return nil
}

// NewRecord builds a record from validated input. The current price starts at
// the average price unless the input carries one.
func NewRecord(in Input, icon *Icon, now time.Time) (Record, error) {
	if err := in.Validate(); err != nil {
		return Record{}, err
	}

	source := in.Source
	if source == "" {
		source = SourceManual
	}

	current := in.AvgPrice
	if in.CurrentPrice != nil {
		current = *in.CurrentPrice
	}

	name := strings.TrimSpace(in.Name)
	ticker := NormalizeTicker(in.Ticker)
	if name == "" {
		name = ticker
	}

	return Record{
		ID:           uuid.NewString(),
		Ticker:       ticker,
		Name:         name,
		Quantity:     in.Quantity,
		AvgPrice:     in.AvgPrice,
		CurrentPrice: current,
		Source:       source,
		Icon:         icon,
		UpdatedAt:    now,
	}, nil
}

// MatchesTicker compares tickers case-insensitively.
func (r Record) MatchesTicker(ticker string) bool {
	return strings.EqualFold(r.Ticker, strings.TrimSpace(ticker))
}

func (r Record) MarketValue() float64 { return r.Quantity * r.CurrentPrice }

func (r Record) CostBasis() float64 { return r.Quantity * r.AvgPrice }

func (r Record) Gain() float64 { return r.MarketValue() - r.CostBasis() }

// GainPercentage is zero when the lot has no cost basis.
func (r Record) GainPercentage() float64 {
	cost := r.CostBasis()
	if cost == 0 {
		return 0
	}
	return r.Gain() / cost * 100
}

// Tickers returns the distinct tickers of records in first-seen order.
func Tickers(records []Record) []string {
	seen := make(map[string]bool, len(records))
	tickers := make([]string, 0, len(records))
	for _, r := range records {
		t := NormalizeTicker(r.Ticker)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return tickers
}

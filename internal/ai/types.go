package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ai776/daily-picks/internal/asset"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message passed to the chat backend, oldest first.
type Turn struct {
	Role Role
	Text string
}

// TradeFields is what a receipt scan recognised. Every field is optional.
type TradeFields struct {
	Ticker      *string     `json:"ticker,omitempty"`
	CompanyName *string     `json:"companyName,omitempty"`
	Quantity    *flexNumber `json:"quantity,omitempty"`
	AvgPrice    *flexNumber `json:"avgPrice,omitempty"`
}

// Empty reports whether nothing was recognised.
func (f *TradeFields) Empty() bool {
	return f == nil || (f.Ticker == nil && f.CompanyName == nil && f.Quantity == nil && f.AvgPrice == nil)
}

// Patch converts the fields for asset.Draft.Apply.
func (f *TradeFields) Patch() asset.Patch {
	var p asset.Patch
	if f == nil {
		return p
	}
	if f.Ticker != nil && strings.TrimSpace(*f.Ticker) != "" {
		t := asset.NormalizeTicker(*f.Ticker)
		p.Ticker = &t
	}
	if f.CompanyName != nil && strings.TrimSpace(*f.CompanyName) != "" {
		name := strings.TrimSpace(*f.CompanyName)
		p.CompanyName = &name
	}
	if f.Quantity != nil {
		q := float64(*f.Quantity)
		p.Quantity = &q
	}
	if f.AvgPrice != nil {
		a := float64(*f.AvgPrice)
		p.AvgPrice = &a
	}
	return p
}

// flexNumber accepts a JSON number or a numeric string such as "1,234.5".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*n = flexNumber(f)
	return nil
}

// NewsItem is one story. The whole list is replaced on every refresh.
type NewsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Source is a grounding reference returned alongside generated text.
type Source struct {
	URL   string
	Label string
}

// MarketSnapshot is a point-in-time set of prices and the USD/JPY rate.
// Nil Prices or ExchangeRate means the backend did not supply them.
type MarketSnapshot struct {
	Prices       map[string]float64
	ExchangeRate *float64
}

// Price looks a ticker up case-insensitively.
func (s *MarketSnapshot) Price(ticker string) (float64, bool) {
	if s == nil || s.Prices == nil {
		return 0, false
	}
	p, ok := s.Prices[asset.NormalizeTicker(ticker)]
	return p, ok
}

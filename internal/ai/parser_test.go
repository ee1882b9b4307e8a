package ai

import (
	"strings"
	"testing"
)

func TestParseSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantPrice map[string]float64
		wantRate  float64
	}{
		{
			name:      "plain object",
			input:     `{"prices": {"AAA": 15, "BBB": 20.5}, "usdJpy": 151.2}`,
			wantPrice: map[string]float64{"AAA": 15, "BBB": 20.5},
			wantRate:  151.2,
		},
		{
			name:      "code fence",
			input:     "```json\n{\"prices\": {\"NVDA\": 130.1}, \"usdJpy\": 149}\n```",
			wantPrice: map[string]float64{"NVDA": 130.1},
			wantRate:  149,
		},
		{
			name:      "prose and think block",
			input:     "<think>looking up</think>Here you go: {\"prices\": {\"msft\": \"412.50\"}, \"usdJpy\": \"150.5\"} hope it helps",
			wantPrice: map[string]float64{"MSFT": 412.5},
			wantRate:  150.5,
		},
		{
			name:      "rate only",
			input:     `{"prices": {}, "usdJpy": 148}`,
			wantPrice: map[string]float64{},
			wantRate:  148,
		},
		{
			name:      "unreadable rate keeps prices",
			input:     `{"prices": {"AAA": 15, "BBB": 20}, "usdJpy": "N/A"}`,
			wantPrice: map[string]float64{"AAA": 15, "BBB": 20},
		},
		{
			name:      "null rate",
			input:     `{"prices": {"AAA": 15}, "usdJpy": null}`,
			wantPrice: map[string]float64{"AAA": 15},
		},
		{
			name:      "bad entries dropped",
			input:     `{"prices": {"AAA": -1, "BBB": "n/a", "CCC": 3}, "usdJpy": 0}`,
			wantPrice: map[string]float64{"CCC": 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := ParseSnapshot(tt.input)
			if err != nil {
				t.Fatalf("ParseSnapshot() error = %v", err)
			}
			if len(snap.Prices) != len(tt.wantPrice) {
				t.Fatalf("prices = %v, want %v", snap.Prices, tt.wantPrice)
			}
			for k, want := range tt.wantPrice {
				if got := snap.Prices[k]; got != want {
					t.Errorf("prices[%s] = %v, want %v", k, got, want)
				}
			}
			switch {
			case tt.wantRate == 0 && snap.ExchangeRate != nil:
				t.Errorf("rate = %v, want absent", *snap.ExchangeRate)
			case tt.wantRate != 0 && (snap.ExchangeRate == nil || *snap.ExchangeRate != tt.wantRate):
				t.Errorf("rate = %v, want %v", snap.ExchangeRate, tt.wantRate)
			}
		})
	}
}

func TestParseSnapshot_Invalid(t *testing.T) {
	for _, input := range []string{"", "sorry, I cannot help", "```json\n{prices: oops\n```"} {
		if _, err := ParseSnapshot(input); err == nil {
			t.Errorf("ParseSnapshot(%q) expected error", input)
		}
	}
}

func TestParseSnapshot_MissingPrices(t *testing.T) {
	snap, err := ParseSnapshot(`{"usdJpy": 150}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Prices != nil {
		t.Errorf("prices = %v, want nil", snap.Prices)
	}
	if _, ok := snap.Price("AAA"); ok {
		t.Error("Price() found a ticker in an empty snapshot")
	}
}

func TestParseTradeFields(t *testing.T) {
	f, err := ParseTradeFields(`{"ticker":"MSFT"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f == nil || f.Ticker == nil || *f.Ticker != "MSFT" {
		t.Fatalf("fields = %+v, want ticker MSFT", f)
	}
	if f.CompanyName != nil || f.Quantity != nil || f.AvgPrice != nil {
		t.Errorf("unexpected fields set: %+v", f)
	}

	f, err = ParseTradeFields("```json\n{\"ticker\":\"aapl\",\"quantity\":\"10\",\"avgPrice\":\"$1,234.50\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := f.Patch()
	if p.Ticker == nil || *p.Ticker != "AAPL" {
		t.Errorf("ticker = %v, want AAPL", p.Ticker)
	}
	if p.Quantity == nil || *p.Quantity != 10 {
		t.Errorf("quantity = %v, want 10", p.Quantity)
	}
	if p.AvgPrice == nil || *p.AvgPrice != 1234.5 {
		t.Errorf("avgPrice = %v, want 1234.5", p.AvgPrice)
	}
}

func TestParseTradeFields_UnreadableFieldsDropped(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTick  string
		wantQty   *float64
		wantPrice *float64
	}{
		{"quantity unknown", `{"ticker":"MSFT","quantity":"unknown"}`, "MSFT", nil, nil},
		{"price object", `{"ticker":"NVDA","quantity":5,"avgPrice":{"value":1}}`, "NVDA", ptr(5.0), nil},
		{"numeric ticker", `{"ticker":7203,"avgPrice":"2,500"}`, "", nil, ptr(2500.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseTradeFields(tt.input)
			if err != nil {
				t.Fatalf("ParseTradeFields() error = %v", err)
			}
			if f == nil {
				t.Fatal("ParseTradeFields() = nil, want partial fields")
			}
			p := f.Patch()
			switch {
			case tt.wantTick == "" && p.Ticker != nil:
				t.Errorf("ticker = %q, want absent", *p.Ticker)
			case tt.wantTick != "" && (p.Ticker == nil || *p.Ticker != tt.wantTick):
				t.Errorf("ticker = %v, want %s", p.Ticker, tt.wantTick)
			}
			if !sameFloat(p.Quantity, tt.wantQty) {
				t.Errorf("quantity = %v, want %v", p.Quantity, tt.wantQty)
			}
			if !sameFloat(p.AvgPrice, tt.wantPrice) {
				t.Errorf("avgPrice = %v, want %v", p.AvgPrice, tt.wantPrice)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func sameFloat(got, want *float64) bool {
	if got == nil || want == nil {
		return got == want
	}
	return *got == *want
}

func TestParseTradeFields_NothingFound(t *testing.T) {
	for _, input := range []string{"", "{}", "```json\n{}\n```", `{"quantity": -3}`} {
		f, err := ParseTradeFields(input)
		if err != nil {
			t.Errorf("ParseTradeFields(%q) error = %v", input, err)
		}
		if f != nil {
			t.Errorf("ParseTradeFields(%q) = %+v, want nil", input, f)
		}
	}
}

func TestParseTradeFields_Malformed(t *testing.T) {
	for _, input := range []string{`{"ticker": "MSFT", "quantity": }`, `["MSFT", 10]`} {
		_, err := ParseTradeFields(input)
		if err == nil {
			t.Fatalf("ParseTradeFields(%q) expected error", input)
		}
		if !strings.Contains(err.Error(), "parse") {
			t.Errorf("error = %v", err)
		}
	}
}

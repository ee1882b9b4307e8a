package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ai776/daily-picks/internal/asset"
)

var (
	thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRegex    = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
)

// StripThinkTags removes reasoning-model think blocks from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// CleanJSON strips think blocks and markdown code fences around a payload.
func CleanJSON(text string) string {
	cleaned := StripThinkTags(text)

	if m := fenceRegex.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// decodeObject unmarshals a JSON object, falling back to the outermost
// {...} span when the model wrapped it in prose.
func decodeObject(text string, v any) error {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}

	err := json.Unmarshal([]byte(cleaned), v)
	if err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), v); err2 == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse response as JSON object: %w (%.200s)", err, cleaned)
}

type snapshotPayload struct {
	Prices map[string]json.RawMessage `json:"prices"`
	USDJPY json.RawMessage            `json:"usdJpy"`
}

// decodeNumber reads an optional numeric field. Missing, null and
// unreadable values all report false.
func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n flexNumber
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return float64(n), true
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ParseSnapshot parses a market snapshot. Keys are upper-cased; entries that
// are not finite non-negative numbers are dropped, as is a non-positive rate.
func ParseSnapshot(text string) (*MarketSnapshot, error) {
	var p snapshotPayload
	if err := decodeObject(text, &p); err != nil {
		return nil, err
	}

	snap := &MarketSnapshot{}
	if p.Prices != nil {
		snap.Prices = make(map[string]float64, len(p.Prices))
		for k, raw := range p.Prices {
			price, ok := decodeNumber(raw)
			if !ok {
				continue
			}
			ticker := asset.NormalizeTicker(k)
			if ticker == "" || !validAmount(price) {
				continue
			}
			snap.Prices[ticker] = price
		}
	}
	if rate, ok := decodeNumber(p.USDJPY); ok && validAmount(rate) && rate > 0 {
		snap.ExchangeRate = &rate
	}
	return snap, nil
}

type tradePayload struct {
	Ticker      json.RawMessage `json:"ticker"`
	CompanyName json.RawMessage `json:"companyName"`
	Quantity    json.RawMessage `json:"quantity"`
	AvgPrice    json.RawMessage `json:"avgPrice"`
}

// ParseTradeFields parses a receipt extraction. An empty response or "{}"
// yields nil without error. Each field is kept or dropped on its own; only
// a payload that is not a JSON object is an error.
func ParseTradeFields(text string) (*TradeFields, error) {
	cleaned := CleanJSON(text)
	if cleaned == "" || cleaned == "{}" || cleaned == "null" {
		return nil, nil
	}

	var p tradePayload
	if err := decodeObject(cleaned, &p); err != nil {
		return nil, err
	}

	var f TradeFields
	if v, ok := decodeString(p.Ticker); ok && strings.TrimSpace(v) != "" {
		f.Ticker = &v
	}
	if v, ok := decodeString(p.CompanyName); ok && strings.TrimSpace(v) != "" {
		f.CompanyName = &v
	}
	if v, ok := decodeNumber(p.Quantity); ok && validAmount(v) {
		n := flexNumber(v)
		f.Quantity = &n
	}
	if v, ok := decodeNumber(p.AvgPrice); ok && validAmount(v) {
		n := flexNumber(v)
		f.AvgPrice = &n
	}
	if f.Empty() {
		return nil, nil
	}
	return &f, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

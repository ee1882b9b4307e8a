package asset

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Summary is the portfolio-wide projection. It is recomputed on every read.
type Summary struct {
	TotalValue     float64 `json:"totalValue"`
	TotalCost      float64 `json:"totalCost"`
	TotalGain      float64 `json:"totalGain"`
	GainPercentage float64 `json:"gainPercentage"`
	Holdings       int     `json:"holdings"`
}

var hundred = decimal.NewFromInt(100)

// Summarize totals value and cost over records. The gain percentage is zero
// when the total cost is zero.
func Summarize(records []Record) Summary {
	value := decimal.Zero
	cost := decimal.Zero
	for _, r := range records {
		qty := decimal.NewFromFloat(r.Quantity)
		value = value.Add(qty.Mul(decimal.NewFromFloat(r.CurrentPrice)))
		cost = cost.Add(qty.Mul(decimal.NewFromFloat(r.AvgPrice)))
	}

	gain := value.Sub(cost)
	pct := decimal.Zero
	if !cost.IsZero() {
		pct = gain.Div(cost).Mul(hundred)
	}

	return Summary{
		TotalValue:     value.InexactFloat64(),
		TotalCost:      cost.InexactFloat64(),
		TotalGain:      gain.InexactFloat64(),
		GainPercentage: pct.InexactFloat64(),
		Holdings:       len(records),
	}
}

// InYen converts a USD amount at the given USD/JPY rate.
func InYen(usd, rate float64) float64 {
	return decimal.NewFromFloat(usd).Mul(decimal.NewFromFloat(rate)).Round(0).InexactFloat64()
}

// FormatUSD renders an amount like "$1,234.50".
func FormatUSD(v float64) string {
	return format(v, money.USD)
}

// FormatJPY renders an amount like "¥185,175".
func FormatJPY(v float64) string {
	return format(v, money.JPY)
}

// go-money truncates floats, so round to minor units first.
func format(v float64, code string) string {
	fraction := int32(money.GetCurrency(code).Fraction)
	minor := decimal.NewFromFloat(v).Shift(fraction).Round(0).IntPart()
	return money.New(minor, code).Display()
}

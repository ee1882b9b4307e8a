package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/asset"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"usd": asset.FormatUSD,
	"jpy": asset.FormatJPY,
	// data: URIs are otherwise rewritten by html/template.
	"iconURI": func(i *asset.Icon) template.URL { return template.URL(i.URI()) },
	"glyph":   asset.Glyph,
}

type HoldingRow struct {
	Record     asset.Record
	ValueJPY   float64
	GainPct    float64
	GainIsLoss bool
}

type DashboardData struct {
	TotalValue    float64
	TotalValueJPY float64
	TotalGain     float64
	TotalGainJPY  float64
	GainPct       float64
	ExchangeRate  float64
	Holdings      []HoldingRow
	News          []ai.NewsItem
}

func (s *Server) handleDashboard(c *gin.Context) {
	v := s.deps.Portfolio.View()

	data := DashboardData{
		TotalValue:    v.Summary.TotalValue,
		TotalValueJPY: v.TotalValueJPY,
		TotalGain:     v.Summary.TotalGain,
		TotalGainJPY:  v.TotalGainJPY,
		GainPct:       v.Summary.GainPercentage,
		ExchangeRate:  v.ExchangeRate,
		News:          s.deps.Portfolio.News(),
	}
	for _, r := range v.Assets {
		data.Holdings = append(data.Holdings, HoldingRow{
			Record:     r,
			ValueJPY:   asset.InYen(r.MarketValue(), v.ExchangeRate),
			GainPct:    r.GainPercentage(),
			GainIsLoss: r.Gain() < 0,
		})
	}

	c.HTML(http.StatusOK, "dashboard.html", data)
}

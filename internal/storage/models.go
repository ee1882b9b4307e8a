package storage

import "time"

// GatewayCall is one request to the AI backend.
type GatewayCall struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Capability string `gorm:"index;not null" json:"capability"`
	Backend    string `json:"backend"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Response   string `gorm:"type:text" json:"response"`
	Error      string `json:"error"`
}

// PortfolioSnapshot is the valuation after a successful market refresh.
type PortfolioSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TotalValue     float64 `json:"total_value"`
	TotalCost      float64 `json:"total_cost"`
	TotalGain      float64 `json:"total_gain"`
	GainPercentage float64 `json:"gain_percentage"`
	ExchangeRate   float64 `json:"exchange_rate"`
	PositionsCount int     `json:"positions_count"`
	PositionsJSON  string  `gorm:"type:text" json:"positions_json"`
}

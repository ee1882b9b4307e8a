package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/logger"
)

const maxStoredResponse = 8 << 10

type Repository struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// Gateway calls

// RecordCall journals a backend call. Failures are logged, not returned.
func (r *Repository) RecordCall(capability, backend string, elapsed time.Duration, raw string, callErr error) {
	if len(raw) > maxStoredResponse {
		raw = raw[:maxStoredResponse]
	}
	call := &GatewayCall{
		Capability: capability,
		Backend:    backend,
		ElapsedMs:  elapsed.Milliseconds(),
		Response:   raw,
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	if err := r.db.Create(call).Error; err != nil {
		r.logger.Error("failed to save gateway call", "capability", capability, "error", err)
	}
}

func (r *Repository) GetRecentGatewayCalls(limit int) ([]GatewayCall, error) {
	var calls []GatewayCall
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// Portfolio Snapshots

type positionRow struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
}

// RecordSnapshot stores the valuation of records at the given rate.
func (r *Repository) RecordSnapshot(records []asset.Record, rate float64) error {
	sum := asset.Summarize(records)

	rows := make([]positionRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, positionRow{
			Ticker:       rec.Ticker,
			Quantity:     rec.Quantity,
			AvgPrice:     rec.AvgPrice,
			CurrentPrice: rec.CurrentPrice,
		})
	}
	positionsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}

	return r.SavePortfolioSnapshot(&PortfolioSnapshot{
		TotalValue:     sum.TotalValue,
		TotalCost:      sum.TotalCost,
		TotalGain:      sum.TotalGain,
		GainPercentage: sum.GainPercentage,
		ExchangeRate:   rate,
		PositionsCount: len(records),
		PositionsJSON:  string(positionsJSON),
	})
}

func (r *Repository) SavePortfolioSnapshot(snapshot *PortfolioSnapshot) error {
	return r.db.Create(snapshot).Error
}

// GetRecentSnapshots returns up to limit snapshots, oldest first.
func (r *Repository) GetRecentSnapshots(limit int) ([]PortfolioSnapshot, error) {
	var snapshots []PortfolioSnapshot
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

func (r *Repository) GetLatestSnapshot() (*PortfolioSnapshot, error) {
	var snapshot PortfolioSnapshot
	err := r.db.Order("created_at DESC, id DESC").First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

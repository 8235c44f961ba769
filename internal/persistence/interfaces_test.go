package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validRecord() ScoreRecord {
	return ScoreRecord{
		RunID:    "8400b7a2",
		Ticker:   "ACME",
		AsOf:     "2024-12-31",
		Engine:   EngineBRS,
		Total:    71.5,
		Detail:   json.RawMessage(`{"scores":{"total":71.5}}`),
		Warnings: []string{"missing_estimates"},
	}
}

func TestScoreRecord_Validate(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	tests := []struct {
		name   string
		mutate func(*ScoreRecord)
	}{
		{"empty_ticker", func(r *ScoreRecord) { r.Ticker = "" }},
		{"unknown_engine", func(r *ScoreRecord) { r.Engine = "momentum" }},
		{"total_below_range", func(r *ScoreRecord) { r.Total = -1 }},
		{"total_above_range", func(r *ScoreRecord) { r.Total = 100.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(&record)
			assert.Error(t, record.Validate())
		})
	}
}

func TestScoreRecord_BoundaryTotalsAccepted(t *testing.T) {
	for _, total := range []float64{0, 100} {
		record := validRecord()
		record.Total = total
		assert.NoError(t, record.Validate())
	}
}

func TestScoreRecord_DetailRoundTrips(t *testing.T) {
	record := validRecord()

	data, err := json.Marshal(record)
	assert.NoError(t, err)

	var decoded ScoreRecord
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, record.Ticker, decoded.Ticker)
	assert.JSONEq(t, string(record.Detail), string(decoded.Detail))
	assert.Equal(t, record.Warnings, decoded.Warnings)
}

func TestHealthCheck_Structure(t *testing.T) {
	healthCheck := HealthCheck{
		Healthy: true,
		ConnectionPool: map[string]int{
			"active": 2,
			"idle":   3,
			"max":    10,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: 12,
	}

	assert.True(t, healthCheck.Healthy)
	assert.Empty(t, healthCheck.Errors)
	assert.Contains(t, healthCheck.ConnectionPool, "active")
	assert.Greater(t, healthCheck.ResponseTimeMS, int64(0))
}

package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"care-ats/internal/aggregator"
	"care-ats/internal/types"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		summary   aggregator.Summary
		alert     bool
		insight   string
		actionHas string
	}{
		{
			name: "failing downloads",
			summary: aggregator.Summary{
				Finished:    10,
				FailureRate: 0.6,
				FailureShare: map[string]float64{
					types.LedgerDownloadFailed: 0.75,
					types.LedgerAnalysisFailed: 0.25,
				},
			},
			alert:     true,
			insight:   "60% of 10 recent calls failed, mostly download_failed (75%)",
			actionHas: "Dialpad API key",
		},
		{
			name:      "too few calls to alert",
			summary:   aggregator.Summary{Finished: 2, FailureRate: 1, FailureShare: map[string]float64{types.LedgerError: 1}},
			insight:   "Call ingestion healthy",
			actionHas: "No action",
		},
		{
			name:      "degraded writes",
			summary:   aggregator.Summary{Finished: 10, FailureRate: 0.1, DegradedCount: 2},
			insight:   "2 calls stored with minimal fields",
			actionHas: "schema",
		},
		{
			name:      "stuck claims",
			summary:   aggregator.Summary{Finished: 10, InFlight: 3},
			insight:   "3 calls claimed but not finished",
			actionHas: "clear them",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Generate(tt.summary)
			assert.Equal(t, tt.alert, card.Alert)
			assert.Equal(t, tt.insight, card.Insight)
			assert.Contains(t, card.Action, tt.actionHas)
		})
	}
}

func TestWorstFailure_TieIsDeterministic(t *testing.T) {
	share := map[string]float64{types.LedgerTranscribeFailed: 0.5, types.LedgerAnalysisFailed: 0.5}
	assert.Equal(t, types.LedgerAnalysisFailed, worstFailure(share))
}

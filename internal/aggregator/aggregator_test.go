package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"care-ats/internal/types"
)

func entries(statuses ...string) []types.LedgerEntry {
	out := make([]types.LedgerEntry, len(statuses))
	for i, s := range statuses {
		out[i] = types.LedgerEntry{CallID: s + string(rune('a'+i)), Status: s}
	}
	return out
}

func TestSummarize(t *testing.T) {
	in := entries(
		types.LedgerProcessed, types.LedgerProcessed, types.LedgerSkipped,
		types.LedgerDownloadFailed, types.LedgerAnalysisFailed, types.LedgerAnalysisFailed,
		types.LedgerNoRecording, types.LedgerProcessing,
	)
	in[0].Detail = "degraded: minimal candidate insert"

	s := Summarize(in)

	assert.Equal(t, 8, s.Total)
	assert.Equal(t, 6, s.Finished)
	assert.Equal(t, 1, s.InFlight)
	assert.Equal(t, 2, s.StatusCounts[types.LedgerAnalysisFailed])
	assert.InDelta(t, 0.5, s.FailureRate, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.FailureShare[types.LedgerAnalysisFailed], 1e-9)
	assert.InDelta(t, 1.0/3.0, s.FailureShare[types.LedgerDownloadFailed], 1e-9)
	assert.Equal(t, 1, s.DegradedCount)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.FailureRate)
	assert.Empty(t, s.FailureShare)
}

package aggregator

import (
	"strings"

	"care-ats/internal/types"
)

type Summary struct {
	Total         int                `json:"total"`
	Finished      int                `json:"finished"`
	InFlight      int                `json:"in_flight"`
	StatusCounts  map[string]int     `json:"status_counts"`
	FailureRate   float64            `json:"failure_rate"`
	FailureShare  map[string]float64 `json:"failure_share"`
	DegradedCount int                `json:"degraded_count"`
}

// Summarize counts ledger entries by status. The failure rate is taken over
// finished calls only, so in-flight claims and hangups without a recording
// do not dilute it.
func Summarize(entries []types.LedgerEntry) Summary {
	counts := map[string]int{}
	failures := 0
	degraded := 0
	for _, e := range entries {
		counts[e.Status]++
		if types.IsFailure(e.Status) {
			failures++
		}
		if strings.HasPrefix(e.Detail, "degraded:") {
			degraded++
		}
	}

	s := Summary{
		Total:         len(entries),
		InFlight:      counts[types.LedgerProcessing],
		StatusCounts:  counts,
		FailureShare:  map[string]float64{},
		DegradedCount: degraded,
	}
	s.Finished = s.Total - s.InFlight - counts[types.LedgerNoRecording]

	if s.Finished > 0 {
		s.FailureRate = float64(failures) / float64(s.Finished)
	}
	if failures > 0 {
		for status, n := range counts {
			if types.IsFailure(status) {
				s.FailureShare[status] = float64(n) / float64(failures)
			}
		}
	}
	return s
}

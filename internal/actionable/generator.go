package actionable

import (
	"fmt"
	"sort"

	"care-ats/internal/aggregator"
	"care-ats/internal/types"
)

const (
	// FailureThreshold is the failure rate at which an operator is alerted.
	FailureThreshold = 0.35
	// minSample avoids alerting on the first failed call of the day.
	minSample = 5
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
	Alert   bool   `json:"alert"`
}

var remedies = map[string]string{
	types.LedgerDownloadFailed:   "Check the Dialpad API key and recording share-link permissions",
	types.LedgerTranscribeFailed: "Check the transcription API key, quota and audio format",
	types.LedgerAnalysisFailed:   "Review rejected model output in the ledger detail and the model/prompt configuration",
	types.LedgerError:            "Check service logs for database or pipeline errors",
}

func Generate(s aggregator.Summary) ActionCard {
	if s.Finished >= minSample && s.FailureRate >= FailureThreshold {
		worst := worstFailure(s.FailureShare)
		action := remedies[worst]
		if action == "" {
			action = "Inspect failed ledger entries"
		}
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of %d recent calls failed, mostly %s (%.0f%%)",
				s.FailureRate*100, s.Finished, worst, s.FailureShare[worst]*100),
			Action: action + "; then clear the failed entries to reprocess them",
			Impact: "Candidate records are not being updated from calls",
			Alert:  true,
		}
	}
	if s.DegradedCount > 0 {
		return ActionCard{
			Insight: fmt.Sprintf("%d calls stored with minimal fields", s.DegradedCount),
			Action:  "Check the candidates/call_history schema against the service migrations",
			Impact:  "Some extracted fields live only on the call row",
		}
	}
	if s.InFlight > 0 {
		return ActionCard{
			Insight: fmt.Sprintf("%d calls claimed but not finished", s.InFlight),
			Action:  "If they stay in processing, clear them from the ledger to reprocess",
			Impact:  "Low; these calls are retried only after a manual clear",
		}
	}
	return ActionCard{
		Insight: "Call ingestion healthy",
		Action:  "No action needed",
		Impact:  "None",
	}
}

func worstFailure(share map[string]float64) string {
	keys := make([]string, 0, len(share))
	for k := range share {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	worst := ""
	highest := -1.0
	for _, k := range keys {
		if share[k] > highest {
			highest = share[k]
			worst = k
		}
	}
	return worst
}

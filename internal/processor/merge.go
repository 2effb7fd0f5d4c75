package processor

import (
	"strings"
	"time"

	"care-ats/internal/types"
)

// Merge folds one call's analysis into a candidate and returns the result;
// existing is not modified. Known values replace older ones, Unknown never
// overwrites anything, the name is only filled when missing and the energy
// score is averaged with the previous one.
func Merge(existing *types.Candidate, a *types.Analysis, contactedAt time.Time) *types.Candidate {
	c := *existing
	c.Roles = append([]string(nil), existing.Roles...)
	c.Qualifications = append([]string(nil), existing.Qualifications...)
	if a == nil {
		return &c
	}

	if !types.Known(c.Name) {
		c.Name = ""
		if v := types.Str(a.CandidateName); types.Known(v) {
			c.Name = strings.TrimSpace(v)
		}
	}

	replace(&c.DriverStatus, a.DriverStatus)
	replace(&c.DBSStatus, a.DBSStatus)
	replace(&c.RightToWork, a.RightToWork)
	replace(&c.TrainingStatus, a.TrainingStatus)
	replace(&c.EarliestStartDate, a.EarliestStartDate)
	replace(&c.PreferredHours, a.PreferredHours)
	replace(&c.ExperienceSummary, a.ExperienceSummary)

	c.Roles = union(c.Roles, a.Roles)
	c.Qualifications = union(c.Qualifications, a.Qualifications)

	if a.EnergyScore > 0 {
		score := float64(a.EnergyScore)
		if c.EnergyScore != nil {
			score = (*c.EnergyScore + score) / 2
		}
		c.EnergyScore = &score
	}

	if !contactedAt.IsZero() && (c.LastContactedAt == nil || contactedAt.After(*c.LastContactedAt)) {
		t := contactedAt.UTC()
		c.LastContactedAt = &t
	}
	return &c
}

func replace(dst *string, v *string) {
	if s := types.Str(v); types.Known(s) {
		*dst = strings.TrimSpace(s)
	}
}

// union appends the values of add missing from base, comparing
// case-insensitively and keeping base's order.
func union(base, add []string) []string {
	seen := make(map[string]bool, len(base)+len(add))
	out := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			k := strings.ToLower(v)
			if !types.Known(v) || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

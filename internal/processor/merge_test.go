package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/types"
)

func sp(s string) *string { return &s }

func TestMerge_IdempotentExceptEnergy(t *testing.T) {
	a := &types.Analysis{
		CandidateName:     sp("Tom Reid"),
		Roles:             []string{"home carer", "Home Carer"},
		Qualifications:    []string{"Care Certificate"},
		DriverStatus:      sp("yes"),
		DBSStatus:         sp("Unknown"),
		EarliestStartDate: sp("2025-01-15"),
		EnergyScore:       8,
	}
	at := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	once := Merge(&types.Candidate{Phone: "+447700900123"}, a, at)
	twice := Merge(once, a, at)

	require.NotNil(t, once.EnergyScore)
	assert.Equal(t, 8.0, *once.EnergyScore, "first score stored as-is")
	assert.Equal(t, 8.0, *twice.EnergyScore, "(8+8)/2")

	once.EnergyScore, twice.EnergyScore = nil, nil
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"home carer"}, once.Roles)
	assert.Empty(t, once.DBSStatus, "Unknown is never stored")
}

func TestMerge_EnergyAverages(t *testing.T) {
	c := &types.Candidate{}
	for i, score := range []int{6, 10, 2} {
		c = Merge(c, &types.Analysis{EnergyScore: score}, time.Time{})
		switch i {
		case 0:
			assert.Equal(t, 6.0, *c.EnergyScore)
		case 1:
			assert.Equal(t, 8.0, *c.EnergyScore)
		case 2:
			assert.Equal(t, 5.0, *c.EnergyScore)
		}
	}
}

func TestMerge_FieldRules(t *testing.T) {
	old := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	existing := &types.Candidate{
		Name:            "Jane Doe",
		Roles:           []string{"senior carer"},
		DriverStatus:    "no",
		DBSStatus:       "basic",
		RightToWork:     "yes",
		PreferredHours:  "nights",
		LastContactedAt: &old,
	}
	a := &types.Analysis{
		CandidateName:  sp("Janet Doe"),
		Roles:          []string{"home carer", "Senior Carer"},
		DriverStatus:   sp("yes"),
		DBSStatus:      sp("Unknown"),
		RightToWork:    nil,
		PreferredHours: sp("  "),
	}

	got := Merge(existing, a, old.Add(-24*time.Hour))

	assert.Equal(t, "Jane Doe", got.Name, "existing name is never overwritten")
	assert.Equal(t, []string{"senior carer", "home carer"}, got.Roles)
	assert.Equal(t, "yes", got.DriverStatus, "known value replaces older one")
	assert.Equal(t, "basic", got.DBSStatus, "Unknown never downgrades")
	assert.Equal(t, "yes", got.RightToWork)
	assert.Equal(t, "nights", got.PreferredHours)
	assert.Equal(t, old, *got.LastContactedAt, "older call does not move last contact back")

	assert.Equal(t, []string{"senior carer"}, existing.Roles, "input is not modified")
	assert.Equal(t, "no", existing.DriverStatus)

	newer := old.Add(48 * time.Hour)
	got = Merge(got, &types.Analysis{}, newer)
	assert.Equal(t, newer, *got.LastContactedAt)
}

func TestMerge_NameFillsWhenUnset(t *testing.T) {
	got := Merge(&types.Candidate{Name: "Unknown"}, &types.Analysis{CandidateName: sp(" Priya Shah ")}, time.Time{})
	assert.Equal(t, "Priya Shah", got.Name)

	got = Merge(&types.Candidate{}, &types.Analysis{CandidateName: sp("unknown")}, time.Time{})
	assert.Empty(t, got.Name)
}

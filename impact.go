package main

import "sort"

const defaultRateThreshold = 0.95

// RankImpact selects drivers whose rolling rate is strictly below threshold
// and ranks them by the org-rate gain that fully resolving their outstanding
// no-contact items would produce. Each entry is an independent what-if:
// resolving one driver's items does not change another driver's entry.
//
// The ranking is only meaningful with a nonzero org denominator; otherwise
// it is empty. Drivers with nothing outstanding are excluded — their impact
// would be zero. Ties on impact break by display name ascending, and the
// sort is stable, so the order is deterministic.
func RankImpact(drivers map[string]*DriverRollingMetric, org OrgRollingMetric, threshold float64) []ImpactEntry {
	if org.Required == 0 {
		return nil
	}
	currentRate := org.Rate()

	var entries []ImpactEntry
	for _, m := range drivers {
		rate := m.Rate()
		if rate >= threshold || m.NoContact == 0 {
			continue
		}
		improvedRate := float64(org.Done+m.NoContact) / float64(org.Required)
		entries = append(entries, ImpactEntry{
			Driver:    m.Driver,
			Rate:      rate,
			NoContact: m.NoContact,
			Impact:    improvedRate - currentRate,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Impact != entries[j].Impact {
			return entries[i].Impact > entries[j].Impact
		}
		return entries[i].Driver < entries[j].Driver
	})
	return entries
}

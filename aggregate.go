package main

import (
	"log"
	"time"
)

// AggregateDaily computes per-driver and org totals for one snapshot.
// Only the four classifying statuses count toward required; other status
// values mean the record was not applicable that day and contribute nothing.
func AggregateDaily(snap *DailySnapshot, ids *IdentityMapper) (map[string]*DriverDailyMetric, OrgDailyMetric) {
	drivers := make(map[string]*DriverDailyMetric)
	org := OrgDailyMetric{Date: snap.Date}

	for _, rec := range snap.Records {
		if !classifyingStatuses[rec.ContactStatus] {
			continue
		}
		name := ids.Resolve(rec.TransporterID)
		m, ok := drivers[name]
		if !ok {
			m = &DriverDailyMetric{Driver: name, Date: snap.Date}
			drivers[name] = m
		}
		m.Required++
		org.Required++
		if rec.ContactStatus == StatusNoContact {
			m.NoContact++
			org.NoContact++
		} else {
			m.Done++
			org.Done++
		}
	}
	return drivers, org
}

// RollingResult is the outcome of a trailing-window aggregation. Sums cover
// exactly the available days; unavailable days are listed in Availability
// with a reason and never contribute zeros to the totals.
type RollingResult struct {
	Drivers      map[string]*DriverRollingMetric
	Org          OrgRollingMetric
	Availability []DayAvailability
}

// AggregateRolling combines daily aggregates across the window ending at
// end. A day whose file is missing, malformed, or unparseable is contained:
// it is recorded as unavailable and excluded from every sum, so rates are
// never understated by silently-zeroed days.
func AggregateRolling(dataDir string, ids *IdentityMapper, end time.Time, windowDays int) RollingResult {
	result := RollingResult{
		Drivers: make(map[string]*DriverRollingMetric),
	}

	for _, day := range WindowDates(end, windowDays) {
		snap, err := LoadSnapshot(dataDir, day)
		if err != nil {
			log.Printf("rolling day=%s unavailable: %v", day.Format("2006-01-02"), err)
			result.Availability = append(result.Availability, DayAvailability{
				Date:   day,
				Reason: err.Error(),
			})
			continue
		}

		dayDrivers, dayOrg := AggregateDaily(snap, ids)
		for name, dm := range dayDrivers {
			rm, ok := result.Drivers[name]
			if !ok {
				rm = &DriverRollingMetric{Driver: name}
				result.Drivers[name] = rm
			}
			rm.Required += dm.Required
			rm.Done += dm.Done
			rm.NoContact += dm.NoContact
		}
		result.Org.Required += dayOrg.Required
		result.Org.Done += dayOrg.Done
		result.Org.NoContact += dayOrg.NoContact
		result.Org.Days++

		result.Availability = append(result.Availability, DayAvailability{
			Date:      day,
			Available: true,
			Org:       dayOrg,
		})
	}
	return result
}

package main

import (
	"fmt"
	"sort"
	"strings"
)

// Columns hidden from the per-driver detail view. These carry station and
// provider metadata that never changes within a report and only adds noise.
var detailExcludedColumns = map[string]bool{
	"Company":                     true,
	"event_week":                  true,
	"delivery_station_code":       true,
	"provider_company_short_code": true,
	"provider_type":               true,
	"架電有無":                        true,
	"テキスト送付有無":                    true,
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// FormatDailySummary renders the selected day's outstanding-contact counts
// per driver, the trailing-window table, and the org rolling rate.
func FormatDailySummary(snap *DailySnapshot, ids *IdentityMapper, rolling RollingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Contact status for %s* (file: %s)\n", snap.Date.Format("2006-01-02"), snap.Source)
	if ids.Degraded() {
		b.WriteString("_Warning: identity mapping unavailable, showing raw transporter ids._\n")
	}

	counts := outstandingByDriver(snap, ids)
	if len(counts) == 0 {
		b.WriteString("\nNo outstanding drivers — every required contact was made. :tada:\n")
	} else {
		fmt.Fprintf(&b, "\n*Outstanding drivers (%d):*\n", len(counts))
		for _, c := range counts {
			fmt.Fprintf(&b, "• %s — %d outstanding\n", c.driver, c.count)
		}
	}

	b.WriteString("\n*Trailing window:*\n")
	b.WriteString(FormatWindowTable(rolling.Availability))
	fmt.Fprintf(&b, "\nOrg rate over %d available day(s): %s (%d/%d, %d outstanding)\n",
		rolling.Org.Days, formatPercent(rolling.Org.Rate()),
		rolling.Org.Done, rolling.Org.Required, rolling.Org.NoContact)
	return b.String()
}

type driverCount struct {
	driver string
	count  int
}

// outstandingByDriver counts no-contact records per driver for one day,
// ordered by count descending then name, like the original summary table.
func outstandingByDriver(snap *DailySnapshot, ids *IdentityMapper) []driverCount {
	byDriver := make(map[string]int)
	for _, rec := range snap.Records {
		if rec.ContactStatus == StatusNoContact {
			byDriver[ids.Resolve(rec.TransporterID)]++
		}
	}
	counts := make([]driverCount, 0, len(byDriver))
	for driver, n := range byDriver {
		counts = append(counts, driverCount{driver: driver, count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].driver < counts[j].driver
	})
	return counts
}

// FormatWindowTable renders one line per requested day, newest first.
// Unavailable days render as N/A rather than zeros: a missing file carries
// no rate at all, which is not the same as a 0% rate.
func FormatWindowTable(availability []DayAvailability) string {
	var b strings.Builder
	for _, day := range availability {
		if !day.Available {
			fmt.Fprintf(&b, "• %s — N/A (%s)\n", day.Date.Format("2006-01-02"), day.Reason)
			continue
		}
		fmt.Fprintf(&b, "• %s — %s (%d required, %d outstanding)\n",
			day.Date.Format("2006-01-02"), formatPercent(day.Org.Rate()),
			day.Org.Required, day.Org.NoContact)
	}
	return b.String()
}

// FormatImpactMessage renders the ranked improvement-impact list with an
// optional free-text comment appended.
func FormatImpactMessage(entries []ImpactEntry, org OrgRollingMetric, windowDays int, threshold float64, comment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Drivers below %s over the last %d days (improvement impact)*\n",
		formatPercent(threshold), windowDays)

	if org.Required == 0 {
		b.WriteString("\nNo data available in the window.\n")
	} else if len(entries) == 0 {
		fmt.Fprintf(&b, "\nAll drivers are at or above %s. :tada:\n", formatPercent(threshold))
	} else {
		totalOutstanding := 0
		for i, e := range entries {
			fmt.Fprintf(&b, "%d. %s — rate %s, %d outstanding, impact +%.1fpt\n",
				i+1, e.Driver, formatPercent(e.Rate), e.NoContact, e.Impact*100)
			totalOutstanding += e.NoContact
		}
		fmt.Fprintf(&b, "\nOrg rate: %s (%d/%d). Total outstanding across listed drivers: %d.\n",
			formatPercent(org.Rate()), org.Done, org.Required, totalOutstanding)
	}

	if comment = strings.TrimSpace(comment); comment != "" {
		fmt.Fprintf(&b, "\n> %s\n", comment)
	}
	return b.String()
}

// FormatDriverDetail lists a driver's no-contact records for one day with
// their passthrough columns, minus the excluded metadata set.
func FormatDriverDetail(snap *DailySnapshot, ids *IdentityMapper, driver string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*No-contact records for %s on %s:*\n", driver, snap.Date.Format("2006-01-02"))

	found := 0
	for _, rec := range snap.Records {
		if rec.ContactStatus != StatusNoContact || ids.Resolve(rec.TransporterID) != driver {
			continue
		}
		found++
		fmt.Fprintf(&b, "• %s", NormalizeID(rec.TransporterID))
		for _, col := range snap.Columns {
			if detailExcludedColumns[col] || col == columnTransporterID || col == columnContactStatus {
				continue
			}
			if val := strings.TrimSpace(rec.Extra[col]); val != "" {
				fmt.Fprintf(&b, " | %s: %s", col, val)
			}
		}
		b.WriteString("\n")
	}
	if found == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}

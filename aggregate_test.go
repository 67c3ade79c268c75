package main

import (
	"fmt"
	"testing"
	"time"
)

func emptyMapper() *IdentityMapper {
	return &IdentityMapper{names: map[string]string{}}
}

func snapshotDay(date time.Time, rows ...[2]string) *DailySnapshot {
	snap := &DailySnapshot{
		Date:    date,
		Source:  fmt.Sprintf("test-%s.csv", UploadDate(date).Format("2006-01-02")),
		Columns: []string{columnTransporterID, columnContactStatus},
	}
	for _, row := range rows {
		snap.Records = append(snap.Records, ContactRecord{
			TransporterID: row[0],
			ContactStatus: row[1],
			Extra:         map[string]string{},
		})
	}
	return snap
}

func snapshotCSV(rows ...[2]string) string {
	content := "transporter_id,contact_status\n"
	for _, row := range rows {
		content += row[0] + "," + row[1] + "\n"
	}
	return content
}

func TestAggregateDailyInvariants(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	snap := snapshotDay(date,
		[2]string{"TR001", StatusCallOnly},
		[2]string{"TR001", StatusNoContact},
		[2]string{"TR001", StatusBothCallAndText},
		[2]string{"TR002", StatusTextOnly},
		[2]string{"TR002", "customer_initiated"}, // non-classifying, excluded
		[2]string{"TR002", ""},                   // non-classifying, excluded
	)

	drivers, org := AggregateDaily(snap, emptyMapper())

	if len(drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(drivers))
	}
	for name, m := range drivers {
		if m.Done+m.NoContact != m.Required {
			t.Fatalf("driver %s: done+no_contact != required (%d+%d != %d)", name, m.Done, m.NoContact, m.Required)
		}
		if m.NoContact < 0 || m.NoContact > m.Required {
			t.Fatalf("driver %s: no_contact out of range", name)
		}
	}

	tr1 := drivers["TR001"]
	if tr1.Required != 3 || tr1.Done != 2 || tr1.NoContact != 1 {
		t.Fatalf("unexpected TR001 metric: %+v", tr1)
	}
	tr2 := drivers["TR002"]
	if tr2.Required != 1 || tr2.Done != 1 || tr2.NoContact != 0 {
		t.Fatalf("unexpected TR002 metric: %+v", tr2)
	}

	if org.Required != 4 || org.Done != 3 || org.NoContact != 1 {
		t.Fatalf("unexpected org metric: %+v", org)
	}
	if rate := org.Rate(); rate < 0 || rate > 1 {
		t.Fatalf("org rate out of range: %f", rate)
	}
}

func TestAggregateDailyEmptySnapshot(t *testing.T) {
	snap := snapshotDay(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
	drivers, org := AggregateDaily(snap, emptyMapper())
	if len(drivers) != 0 {
		t.Fatalf("expected no drivers, got %d", len(drivers))
	}
	if org.Rate() != 0 {
		t.Fatalf("expected rate 0 for required=0, got %f", org.Rate())
	}
}

func TestAggregateDailyResolvesIdentity(t *testing.T) {
	mapper := &IdentityMapper{names: map[string]string{"TR001": "Sato"}}
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	// Same driver under half-width and full-width encodings of one id.
	snap := snapshotDay(date,
		[2]string{"TR001", StatusCallOnly},
		[2]string{"ＴＲ００１", StatusNoContact},
	)

	drivers, _ := AggregateDaily(snap, mapper)
	if len(drivers) != 1 {
		t.Fatalf("expected id variants to merge into one driver, got %d", len(drivers))
	}
	m := drivers["Sato"]
	if m == nil || m.Required != 2 || m.NoContact != 1 {
		t.Fatalf("unexpected merged metric: %+v", m)
	}
}

func TestAggregateRollingSkipsUnavailableDays(t *testing.T) {
	dir := t.TempDir()
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// Seven requested days; day offsets 2 and 4 have no file, and offset 6
	// has a file with a broken schema. All three must be unavailable.
	for i := 0; i < 7; i++ {
		day := end.AddDate(0, 0, -i)
		name := "export-" + UploadDate(day).Format("2006-01-02") + ".csv"
		switch i {
		case 2, 4:
			// no file
		case 6:
			writeSnapshotFile(t, dir, name, "transporter_id,wrong\nTR001,x\n")
		default:
			writeSnapshotFile(t, dir, name, snapshotCSV(
				[2]string{"TR001", StatusCallOnly},
				[2]string{"TR001", StatusNoContact},
				[2]string{"TR002", StatusTextOnly},
			))
		}
	}

	result := AggregateRolling(dir, emptyMapper(), end, 7)

	if len(result.Availability) != 7 {
		t.Fatalf("expected 7 availability rows, got %d", len(result.Availability))
	}
	for i, day := range result.Availability {
		wantDate := end.AddDate(0, 0, -i)
		if !day.Date.Equal(wantDate) {
			t.Fatalf("availability row %d: expected %s, got %s", i, wantDate.Format("2006-01-02"), day.Date.Format("2006-01-02"))
		}
		wantAvailable := i != 2 && i != 4 && i != 6
		if day.Available != wantAvailable {
			t.Fatalf("availability row %d: expected available=%t", i, wantAvailable)
		}
		if !day.Available && day.Reason == "" {
			t.Fatalf("availability row %d: unavailable day must carry a reason", i)
		}
	}

	// Sums cover exactly the 4 available days, never zero-filled ones.
	if result.Org.Days != 4 {
		t.Fatalf("expected 4 contributing days, got %d", result.Org.Days)
	}
	if result.Org.Required != 12 || result.Org.Done != 8 || result.Org.NoContact != 4 {
		t.Fatalf("unexpected org sums: %+v", result.Org)
	}
	tr1 := result.Drivers["TR001"]
	if tr1 == nil || tr1.Required != 8 || tr1.NoContact != 4 {
		t.Fatalf("unexpected TR001 rolling metric: %+v", tr1)
	}
}

func TestAggregateRollingEqualsSumOfSingleDays(t *testing.T) {
	dir := t.TempDir()
	end := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	available := []int{0, 1, 3, 5, 6}
	for _, i := range available {
		day := end.AddDate(0, 0, -i)
		name := "export-" + UploadDate(day).Format("2006-01-02") + ".csv"
		writeSnapshotFile(t, dir, name, snapshotCSV(
			[2]string{"TR001", StatusNoContact},
			[2]string{"TR002", StatusCallOnly},
			[2]string{"TR002", StatusBothCallAndText},
		))
	}

	result := AggregateRolling(dir, emptyMapper(), end, 7)

	var wantRequired, wantDone, wantNoContact int
	for _, i := range available {
		day := end.AddDate(0, 0, -i)
		snap, err := LoadSnapshot(dir, day)
		if err != nil {
			t.Fatalf("LoadSnapshot %s: %v", day.Format("2006-01-02"), err)
		}
		_, org := AggregateDaily(snap, emptyMapper())
		wantRequired += org.Required
		wantDone += org.Done
		wantNoContact += org.NoContact
	}

	if result.Org.Required != wantRequired || result.Org.Done != wantDone || result.Org.NoContact != wantNoContact {
		t.Fatalf("rolling sums %+v do not equal sum of single-day aggregates (%d/%d/%d)",
			result.Org, wantRequired, wantDone, wantNoContact)
	}
	if result.Org.Days != len(available) {
		t.Fatalf("expected %d contributing days, got %d", len(available), result.Org.Days)
	}
}

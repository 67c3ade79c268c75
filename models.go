package main

import "time"

// Contact status values that count toward a driver's required total.
// Any other value means the record is not applicable that day.
const (
	StatusCallOnly        = "call_only"
	StatusTextOnly        = "text_only"
	StatusBothCallAndText = "both_call_and_text"
	StatusNoContact       = "no_contact"
)

var classifyingStatuses = map[string]bool{
	StatusCallOnly:        true,
	StatusTextOnly:        true,
	StatusBothCallAndText: true,
	StatusNoContact:       true,
}

// ContactRecord is one row of a daily snapshot file. Extra holds the
// passthrough columns, display only.
type ContactRecord struct {
	TransporterID string
	ContactStatus string
	Extra         map[string]string
}

// DailySnapshot is one parsed snapshot file for a calendar date. The file
// itself is produced the day after the events it describes.
type DailySnapshot struct {
	Date    time.Time // event date, not upload date
	Source  string    // file name the rows came from
	Records []ContactRecord
	Columns []string // header order, kept for display
}

type DriverDailyMetric struct {
	Driver    string
	Date      time.Time
	Required  int
	Done      int
	NoContact int
}

type OrgDailyMetric struct {
	Date      time.Time
	Required  int
	Done      int
	NoContact int
}

// Rate returns done/required, defined as 0 when required is 0. A zero rate
// is distinct from an unavailable day, which carries no metric at all.
func (m OrgDailyMetric) Rate() float64 {
	if m.Required == 0 {
		return 0
	}
	return float64(m.Done) / float64(m.Required)
}

type DriverRollingMetric struct {
	Driver    string
	Required  int
	Done      int
	NoContact int
}

func (m DriverRollingMetric) Rate() float64 {
	if m.Required == 0 {
		return 0
	}
	return float64(m.Done) / float64(m.Required)
}

type OrgRollingMetric struct {
	Required  int
	Done      int
	NoContact int
	Days      int // available days contributing to the sums
}

func (m OrgRollingMetric) Rate() float64 {
	if m.Required == 0 {
		return 0
	}
	return float64(m.Done) / float64(m.Required)
}

// DayAvailability records whether one day of a rolling window contributed
// to the sums, and why not when it didn't.
type DayAvailability struct {
	Date      time.Time
	Available bool
	Reason    string
	Org       OrgDailyMetric // zero value when unavailable
}

// ImpactEntry is one row of the improvement-impact ranking. Rate and Impact
// are fractions in [0,1]; Impact is the marginal org-rate gain if the
// driver's outstanding no-contact items were all resolved.
type ImpactEntry struct {
	Driver    string
	Rate      float64
	NoContact int
	Impact    float64
}

// UploadDate returns the date the snapshot file for an event date is
// produced: files are uploaded the day after the events they describe.
func UploadDate(eventDate time.Time) time.Time {
	return eventDate.AddDate(0, 0, 1)
}

// WindowDates enumerates the trailing window ending at end, newest first,
// matching the order reports are rendered in.
func WindowDates(end time.Time, days int) []time.Time {
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, end.AddDate(0, 0, -i))
	}
	return dates
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

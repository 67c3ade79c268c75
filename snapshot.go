package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	columnTransporterID = "transporter_id"
	columnContactStatus = "contact_status"
)

// SnapshotNotFoundError means no file in the data dir matches the target
// date's expected upload date.
type SnapshotNotFoundError struct {
	Date time.Time // event date requested by the caller
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("no snapshot file for %s (expected upload date %s)",
		e.Date.Format("2006-01-02"), UploadDate(e.Date).Format("2006-01-02"))
}

// SchemaError means a snapshot file is missing the mandatory identifier or
// status columns, so its rows cannot be aggregated.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("snapshot %s: missing required columns: %s",
		filepath.Base(e.Path), strings.Join(e.Missing, ", "))
}

// ResolveSnapshotFile locates the one data file for an event date. Files are
// uploaded the day after the events they describe, so the search key is the
// upload date's ISO form as a filename substring; arbitrary prefixes and
// suffixes are tolerated. When more than one file matches, the
// lexicographically first name wins so resolution is deterministic.
func ResolveSnapshotFile(dataDir string, date time.Time) (string, error) {
	key := UploadDate(date).Format("2006-01-02")

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("read data dir %s: %w", dataDir, err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.Contains(name, key) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", &SnapshotNotFoundError{Date: date}
	}
	sort.Strings(matches)
	return filepath.Join(dataDir, matches[0]), nil
}

// ParseSnapshot reads one snapshot file into a DailySnapshot for the given
// event date. The required columns are transporter_id and contact_status;
// everything else is carried through opaquely for display.
func ParseSnapshot(path string, date time.Time) (*DailySnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot header %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idCol, statusCol := -1, -1
	for i, col := range header {
		switch col {
		case columnTransporterID:
			idCol = i
		case columnContactStatus:
			statusCol = i
		}
	}
	var missing []string
	if idCol < 0 {
		missing = append(missing, columnTransporterID)
	}
	if statusCol < 0 {
		missing = append(missing, columnContactStatus)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Path: path, Missing: missing}
	}

	snap := &DailySnapshot{
		Date:    date,
		Source:  filepath.Base(path),
		Columns: header,
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot row %s: %w", path, err)
		}
		if idCol >= len(row) || statusCol >= len(row) {
			continue
		}
		rec := ContactRecord{
			TransporterID: row[idCol],
			ContactStatus: strings.TrimSpace(row[statusCol]),
			Extra:         make(map[string]string),
		}
		for i, col := range header {
			if i == idCol || i == statusCol || i >= len(row) {
				continue
			}
			rec.Extra[col] = row[i]
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

// LoadSnapshot resolves and parses the snapshot for an event date.
func LoadSnapshot(dataDir string, date time.Time) (*DailySnapshot, error) {
	path, err := ResolveSnapshotFile(dataDir, date)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(path, date)
}

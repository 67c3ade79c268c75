package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IdentityMapper resolves raw transporter ids to driver display names.
// It is built once per run and passed into aggregation, never rebuilt
// per record or per day.
type IdentityMapper struct {
	names    map[string]string
	degraded bool // mapping file was missing; every id resolves to itself
}

// NormalizeID applies Unicode compatibility folding plus whitespace trim.
// The source data mixes full-width and half-width characters, so lookup
// equality must not be raw byte equality.
func NormalizeID(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

// LoadIdentityMap reads the transporter_id,driver_name table at path.
// A missing file is not an error: the mapper runs degraded and callers
// surface a warning once. A present but malformed file is an error.
func LoadIdentityMap(path string) (*IdentityMapper, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("identity mapping %s not found, using raw transporter ids", path)
			return &IdentityMapper{names: map[string]string{}, degraded: true}, nil
		}
		return nil, fmt.Errorf("open identity mapping %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read identity mapping header: %w", err)
	}
	idCol, nameCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "transporter_id":
			idCol = i
		case "driver_name":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("identity mapping %s: missing transporter_id/driver_name columns", path)
	}

	names := make(map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read identity mapping row: %w", err)
		}
		if idCol >= len(row) || nameCol >= len(row) {
			continue
		}
		id := NormalizeID(row[idCol])
		name := strings.TrimSpace(row[nameCol])
		if id == "" || name == "" {
			continue
		}
		names[id] = name
	}

	log.Printf("identity mapping loaded entries=%d path=%s", len(names), path)
	return &IdentityMapper{names: names}, nil
}

// Resolve returns the display name for a raw transporter id. Resolution is
// total: an unmapped id resolves to its normalized self, the expected case
// for new or unregistered drivers.
func (m *IdentityMapper) Resolve(rawID string) string {
	id := NormalizeID(rawID)
	if name, ok := m.names[id]; ok {
		return name
	}
	return id
}

// Degraded reports whether the mapping file was unavailable at load time.
func (m *IdentityMapper) Degraded() bool {
	return m.degraded
}

// Len returns the number of mapping entries.
func (m *IdentityMapper) Len() int {
	return len(m.names)
}

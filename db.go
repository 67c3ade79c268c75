package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Marker rows are the only persisted state besides the delivery audit log.
// A row for (report_date, kind) means a notification has been claimed or
// sent for that date; content is never parsed, only presence and timestamp.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS notification_markers (
		report_date TEXT NOT NULL,
		kind        TEXT NOT NULL,
		sent_at     DATETIME,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (report_date, kind)
	);

	CREATE TABLE IF NOT EXISTS delivery_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		report_date TEXT NOT NULL,
		kind        TEXT NOT NULL,
		channel     TEXT NOT NULL,
		ok          INTEGER NOT NULL,
		detail      TEXT DEFAULT '',
		sent_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_delivery_log_date ON delivery_log(report_date);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

func markerDateKey(date time.Time) string {
	return date.Format("2006-01-02")
}

// ClaimMarker atomically claims the (date, kind) marker. It returns false
// when the marker already exists, meaning a notification was already sent
// (or is being sent) for that date. The single INSERT is the check and the
// mark in one step, so two overlapping invocations cannot both claim.
func ClaimMarker(db *sql.DB, date time.Time, kind string) (bool, error) {
	res, err := db.Exec(
		`INSERT OR IGNORE INTO notification_markers (report_date, kind) VALUES (?, ?)`,
		markerDateKey(date), kind,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConfirmMarker stamps a claimed marker after successful delivery.
func ConfirmMarker(db *sql.DB, date time.Time, kind string) error {
	_, err := db.Exec(
		`UPDATE notification_markers SET sent_at = CURRENT_TIMESTAMP WHERE report_date = ? AND kind = ?`,
		markerDateKey(date), kind,
	)
	return err
}

// ReleaseMarker removes a claim after a failed delivery so the operator
// can retry; retries are always explicit re-invocations, never automatic.
func ReleaseMarker(db *sql.DB, date time.Time, kind string) error {
	_, err := db.Exec(
		`DELETE FROM notification_markers WHERE report_date = ? AND kind = ?`,
		markerDateKey(date), kind,
	)
	return err
}

// OverwriteMarker replaces any existing marker, used by explicit resend.
func OverwriteMarker(db *sql.DB, date time.Time, kind string) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO notification_markers (report_date, kind, sent_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		markerDateKey(date), kind,
	)
	return err
}

// MarkerSentAt reports whether a marker exists and, when stamped, when the
// delivery happened.
func MarkerSentAt(db *sql.DB, date time.Time, kind string) (bool, time.Time, error) {
	var sentAt sql.NullTime
	err := db.QueryRow(
		`SELECT sent_at FROM notification_markers WHERE report_date = ? AND kind = ?`,
		markerDateKey(date), kind,
	).Scan(&sentAt)
	if err == sql.ErrNoRows {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, sentAt.Time, nil
}

// LogDelivery appends one delivery attempt to the audit log.
func LogDelivery(db *sql.DB, date time.Time, kind, channel string, ok bool, detail string) error {
	okVal := 0
	if ok {
		okVal = 1
	}
	_, err := db.Exec(
		`INSERT INTO delivery_log (report_date, kind, channel, ok, detail) VALUES (?, ?, ?, ?, ?)`,
		markerDateKey(date), kind, channel, okVal, detail,
	)
	return err
}

// DeliveryAttempt is one row of the audit log, newest first in queries.
type DeliveryAttempt struct {
	ID      int64
	Date    string
	Kind    string
	Channel string
	OK      bool
	Detail  string
	SentAt  time.Time
}

func GetDeliveryLog(db *sql.DB, date time.Time) ([]DeliveryAttempt, error) {
	rows, err := db.Query(
		`SELECT id, report_date, kind, channel, ok, detail, sent_at
		 FROM delivery_log WHERE report_date = ? ORDER BY sent_at DESC, id DESC`,
		markerDateKey(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryAttempt
	for rows.Next() {
		var a DeliveryAttempt
		var okVal int
		if err := rows.Scan(&a.ID, &a.Date, &a.Kind, &a.Channel, &okVal, &a.Detail, &a.SentAt); err != nil {
			return nil, err
		}
		a.OK = okVal == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

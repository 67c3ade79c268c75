package main

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// RemoteSnapshotName builds the portal's export filename for an upload
// date. The portal names files by station, ISO week, and upload date; the
// resolver only relies on the date substring.
func RemoteSnapshotName(station string, uploadDate time.Time) string {
	_, week := uploadDate.ISOWeek()
	return fmt.Sprintf("JP-DEMA-%s-week-%d-Daily_ContactCompliance-%s.csv",
		station, week, uploadDate.Format("2006-01-02"))
}

// FetchSnapshot downloads the export produced on uploadDate into the data
// dir and returns the saved path. One attempt, bounded by the client
// timeout; a failure is surfaced once and never retried automatically.
func FetchSnapshot(client *http.Client, cfg Config, uploadDate time.Time) (string, error) {
	if !cfg.PortalConfigured() {
		return "", fmt.Errorf("portal_url is not configured")
	}

	url := strings.ReplaceAll(cfg.PortalURL, "{date}", uploadDate.Format("2006-01-02"))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build portal request: %w", err)
	}
	if cfg.PortalToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.PortalToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("portal fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("portal fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(cfg.DataDir, RemoteSnapshotName(cfg.StationCode, uploadDate))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save snapshot file: %w", err)
	}

	log.Printf("fetched snapshot upload_date=%s path=%s", uploadDate.Format("2006-01-02"), path)
	return path, nil
}

// StartDailyScheduler runs the daily pipeline on a cron schedule: fetch
// today's upload, aggregate yesterday's window, and dispatch the daily
// summary. The dispatch is idempotent per date, so an extra run is harmless.
// The schedule is a standard 5-field cron expression.
func StartDailyScheduler(cfg Config, db *sql.DB, api *slack.Client, client *http.Client) {
	schedule := strings.TrimSpace(cfg.FetchSchedule)
	if schedule == "" {
		log.Println("Daily scheduler disabled (fetch_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid fetch_schedule '%s': %v — daily scheduler disabled", schedule, err)
		return
	}
	log.Printf("Daily run scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next daily run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			RunDailyPipeline(cfg, db, api, client, time.Now().In(cfg.Location))
		}
	}()
}

// RunDailyPipeline executes one scheduled pass for the day before now.
// Per-step failures are logged and contained; a missing snapshot for the
// target date skips the dispatch without consuming the marker, so the run
// can succeed later once the file arrives.
func RunDailyPipeline(cfg Config, db *sql.DB, api SlackPoster, client *http.Client, now time.Time) {
	target := DateOnly(now).AddDate(0, 0, -1)

	if cfg.PortalConfigured() {
		if _, err := FetchSnapshot(client, cfg, UploadDate(target)); err != nil {
			log.Printf("daily fetch error: %v", err)
		}
	}

	ids, err := LoadIdentityMap(cfg.MappingPath)
	if err != nil {
		log.Printf("daily run identity mapping error: %v", err)
		return
	}

	snap, err := LoadSnapshot(cfg.DataDir, target)
	if err != nil {
		log.Printf("daily run skipped date=%s: %v", target.Format("2006-01-02"), err)
		return
	}

	rolling := AggregateRolling(cfg.DataDir, ids, target, cfg.WindowDays)
	text := FormatDailySummary(snap, ids, rolling)

	dispatcher := NewDispatcher(api, db, cfg.ReportChannelID)
	sent, err := dispatcher.Dispatch(target, KindDailySummary, text, false)
	if err != nil {
		log.Printf("daily dispatch error date=%s: %v", target.Format("2006-01-02"), err)
		return
	}
	if !sent {
		log.Printf("daily summary already sent date=%s", target.Format("2006-01-02"))
	}
}

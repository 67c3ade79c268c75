package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

var isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func StartSlackBot(cfg Config, db *sql.DB, api *slack.Client, httpClient *http.Client) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(api, db, cfg, httpClient, cmd)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func handleSlashCommand(api *slack.Client, db *sql.DB, cfg Config, httpClient *http.Client, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/cc-day":
		handleDay(api, cfg, cmd)
	case "/cc-detail":
		handleDetail(api, cfg, cmd)
	case "/cc-impact":
		handleImpact(api, cfg, cmd)
	case "/cc-notify":
		handleNotify(api, db, cfg, cmd, false)
	case "/cc-resend":
		handleNotify(api, db, cfg, cmd, true)
	case "/cc-fetch":
		handleFetch(api, cfg, httpClient, cmd)
	case "/cc-status":
		handleStatus(api, db, cfg, cmd)
	case "/cc-help":
		handleHelp(api, cmd)
	}
}

// parseTargetDate pulls an optional leading YYYY-MM-DD off the command text.
// Default target is yesterday, the latest day whose file can exist.
func parseTargetDate(text string, loc *time.Location) (time.Time, string, error) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) > 0 && isoDateRegex.MatchString(fields[0]) {
		parsed, err := time.ParseInLocation("2006-01-02", fields[0], loc)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("invalid date %q: %v", fields[0], err)
		}
		return parsed, strings.TrimSpace(strings.TrimPrefix(text, fields[0])), nil
	}
	return DateOnly(time.Now().In(loc)).AddDate(0, 0, -1), text, nil
}

func handleDay(api *slack.Client, cfg Config, cmd slack.SlashCommand) {
	date, _, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	ids, err := LoadIdentityMap(cfg.MappingPath)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading identity mapping: %v", err))
		return
	}

	snap, err := LoadSnapshot(cfg.DataDir, date)
	if err != nil {
		var notFound *SnapshotNotFoundError
		if errors.As(err, &notFound) {
			postEphemeral(api, cmd, fmt.Sprintf(":warning: %v", notFound))
		} else {
			postEphemeral(api, cmd, fmt.Sprintf("Error reading snapshot: %v", err))
		}
		return
	}

	rolling := AggregateRolling(cfg.DataDir, ids, date, cfg.WindowDays)
	postEphemeral(api, cmd, FormatDailySummary(snap, ids, rolling))
}

func handleDetail(api *slack.Client, cfg Config, cmd slack.SlashCommand) {
	date, rest, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}
	driver := strings.TrimSpace(rest)
	if driver == "" {
		postEphemeral(api, cmd, "Usage: /cc-detail [YYYY-MM-DD] <driver name>")
		return
	}

	ids, err := LoadIdentityMap(cfg.MappingPath)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading identity mapping: %v", err))
		return
	}
	snap, err := LoadSnapshot(cfg.DataDir, date)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf(":warning: %v", err))
		return
	}
	postEphemeral(api, cmd, FormatDriverDetail(snap, ids, driver))
}

func handleImpact(api *slack.Client, cfg Config, cmd slack.SlashCommand) {
	date, _, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	ids, err := LoadIdentityMap(cfg.MappingPath)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading identity mapping: %v", err))
		return
	}
	rolling := AggregateRolling(cfg.DataDir, ids, date, cfg.WindowDays)
	entries := RankImpact(rolling.Drivers, rolling.Org, cfg.RateThreshold)
	postEphemeral(api, cmd, FormatImpactMessage(entries, rolling.Org, cfg.WindowDays, cfg.RateThreshold, ""))
}

func handleNotify(api *slack.Client, db *sql.DB, cfg Config, cmd slack.SlashCommand, resend bool) {
	date, comment, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	ids, err := LoadIdentityMap(cfg.MappingPath)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error loading identity mapping: %v", err))
		return
	}
	rolling := AggregateRolling(cfg.DataDir, ids, date, cfg.WindowDays)
	entries := RankImpact(rolling.Drivers, rolling.Org, cfg.RateThreshold)

	if comment == "" && cfg.LLMConfigured() && len(entries) > 0 {
		generated, llmErr := GenerateImpactComment(cfg, entries, rolling.Org)
		if llmErr != nil {
			log.Printf("impact comment generation error: %v", llmErr)
		} else {
			comment = generated
		}
	}

	text := FormatImpactMessage(entries, rolling.Org, cfg.WindowDays, cfg.RateThreshold, comment)
	dispatcher := NewDispatcher(api, db, cfg.ReportChannelID)
	sent, err := dispatcher.Dispatch(date, KindImpact, text, resend)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Delivery failed: %v\nThe marker was not kept; you can retry.", err))
		return
	}
	if !sent {
		postEphemeral(api, cmd, fmt.Sprintf(
			"Impact report for %s was already sent. Use /cc-resend %s to send again.",
			date.Format("2006-01-02"), date.Format("2006-01-02")))
		return
	}
	postEphemeral(api, cmd, fmt.Sprintf("Impact report for %s posted to <#%s>.", date.Format("2006-01-02"), cfg.ReportChannelID))
}

func handleFetch(api *slack.Client, cfg Config, httpClient *http.Client, cmd slack.SlashCommand) {
	if !cfg.PortalConfigured() {
		postEphemeral(api, cmd, "Fetching is disabled (portal_url not configured).")
		return
	}
	date, _, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	path, err := FetchSnapshot(httpClient, cfg, UploadDate(date))
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Fetch failed: %v", err))
		return
	}
	postEphemeral(api, cmd, fmt.Sprintf("Fetched snapshot for %s → %s", date.Format("2006-01-02"), path))
}

func handleStatus(api *slack.Client, db *sql.DB, cfg Config, cmd slack.SlashCommand) {
	date, _, err := parseTargetDate(cmd.Text, cfg.Location)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Notification status for %s:*\n", date.Format("2006-01-02"))
	for _, kind := range []string{KindDailySummary, KindImpact} {
		exists, sentAt, mErr := MarkerSentAt(db, date, kind)
		switch {
		case mErr != nil:
			fmt.Fprintf(&b, "• %s — error: %v\n", kind, mErr)
		case !exists:
			fmt.Fprintf(&b, "• %s — not sent\n", kind)
		case sentAt.IsZero():
			fmt.Fprintf(&b, "• %s — claimed, delivery unconfirmed\n", kind)
		default:
			fmt.Fprintf(&b, "• %s — sent at %s\n", kind, sentAt.Format("2006-01-02 15:04:05"))
		}
	}

	attempts, logErr := GetDeliveryLog(db, date)
	if logErr == nil && len(attempts) > 0 {
		b.WriteString("\n*Delivery attempts:*\n")
		for _, a := range attempts {
			status := "ok"
			if !a.OK {
				status = "failed: " + a.Detail
			}
			fmt.Fprintf(&b, "• %s %s → %s (%s)\n", a.SentAt.Format("15:04:05"), a.Kind, a.Channel, status)
		}
	}
	postEphemeral(api, cmd, b.String())
}

func handleHelp(api *slack.Client, cmd slack.SlashCommand) {
	help := "*ccwatch commands* (dates default to yesterday):\n" +
		"• `/cc-day [YYYY-MM-DD]` — outstanding drivers and the trailing-window table\n" +
		"• `/cc-detail [YYYY-MM-DD] <driver>` — a driver's no-contact records for the day\n" +
		"• `/cc-impact [YYYY-MM-DD]` — preview the improvement-impact ranking\n" +
		"• `/cc-notify [YYYY-MM-DD] [comment]` — post the impact report to the channel (once per day)\n" +
		"• `/cc-resend [YYYY-MM-DD] [comment]` — post it again, bypassing the once-per-day guard\n" +
		"• `/cc-fetch [YYYY-MM-DD]` — download the day's snapshot from the portal\n" +
		"• `/cc-status [YYYY-MM-DD]` — marker state and delivery attempts"
	postEphemeral(api, cmd, help)
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	_, err := api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

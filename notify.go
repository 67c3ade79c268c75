package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"
)

// Message kinds, one marker per (date, kind).
const (
	KindDailySummary = "daily_summary"
	KindImpact       = "impact"
)

// DeliveryError means the channel returned a non-success response. The
// marker is not kept in that case, so the operator can re-invoke.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// SlackPoster is the slice of *slack.Client the dispatcher needs.
type SlackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Dispatcher delivers composed messages to the configured channel at most
// once per (date, kind), guarded by the marker table.
type Dispatcher struct {
	api     SlackPoster
	db      *sql.DB
	channel string
}

func NewDispatcher(api SlackPoster, db *sql.DB, channel string) *Dispatcher {
	return &Dispatcher{api: api, db: db, channel: channel}
}

// Dispatch sends text for (date, kind). The claim is a single atomic insert:
// when it fails the message was already sent and (false, nil) is returned.
// A failed delivery releases the claim and returns a DeliveryError; nothing
// is retried automatically. resend skips the guard entirely (operator
// initiated) and overwrites the marker on success.
func (d *Dispatcher) Dispatch(date time.Time, kind, text string, resend bool) (bool, error) {
	if !resend {
		claimed, err := ClaimMarker(d.db, date, kind)
		if err != nil {
			return false, fmt.Errorf("claim marker: %w", err)
		}
		if !claimed {
			log.Printf("dispatch skipped kind=%s date=%s: already sent", kind, date.Format("2006-01-02"))
			return false, nil
		}
	}

	_, _, postErr := d.api.PostMessage(d.channel, slack.MsgOptionText(text, false))
	if postErr != nil {
		if !resend {
			if relErr := ReleaseMarker(d.db, date, kind); relErr != nil {
				log.Printf("release marker error kind=%s date=%s: %v", kind, date.Format("2006-01-02"), relErr)
			}
		}
		if logErr := LogDelivery(d.db, date, kind, d.channel, false, postErr.Error()); logErr != nil {
			log.Printf("delivery log error: %v", logErr)
		}
		return false, &DeliveryError{Channel: d.channel, Err: postErr}
	}

	var markErr error
	if resend {
		markErr = OverwriteMarker(d.db, date, kind)
	} else {
		markErr = ConfirmMarker(d.db, date, kind)
	}
	if markErr != nil {
		log.Printf("marker update error kind=%s date=%s: %v", kind, date.Format("2006-01-02"), markErr)
	}
	if logErr := LogDelivery(d.db, date, kind, d.channel, true, ""); logErr != nil {
		log.Printf("delivery log error: %v", logErr)
	}

	log.Printf("dispatched kind=%s date=%s channel=%s resend=%t", kind, date.Format("2006-01-02"), d.channel, resend)
	return true, nil
}

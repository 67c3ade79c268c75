package main

import (
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

type fakePoster struct {
	attempts int
	posted   []string
	err      error
}

func (f *fakePoster) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.attempts++
	if f.err != nil {
		return "", "", f.err
	}
	f.posted = append(f.posted, channelID)
	return channelID, "1234.5678", nil
}

func TestDispatchOncePerDateAndKind(t *testing.T) {
	db := newTestDB(t)
	poster := &fakePoster{}
	d := NewDispatcher(poster, db, "C123")
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	sent, err := d.Dispatch(date, KindImpact, "report body", false)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !sent {
		t.Fatal("expected first dispatch to send")
	}

	sent, err = d.Dispatch(date, KindImpact, "report body", false)
	if err != nil {
		t.Fatalf("second Dispatch failed: %v", err)
	}
	if sent {
		t.Fatal("expected second dispatch to be skipped by the marker")
	}
	if poster.attempts != 1 {
		t.Fatalf("expected exactly 1 delivery attempt, got %d", poster.attempts)
	}

	exists, sentAt, err := MarkerSentAt(db, date, KindImpact)
	if err != nil {
		t.Fatalf("MarkerSentAt failed: %v", err)
	}
	if !exists || sentAt.IsZero() {
		t.Fatal("expected confirmed marker after successful dispatch")
	}
}

func TestDispatchFailureLeavesNotSent(t *testing.T) {
	db := newTestDB(t)
	poster := &fakePoster{err: errors.New("channel_not_found")}
	d := NewDispatcher(poster, db, "C123")
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	_, err := d.Dispatch(date, KindImpact, "report body", false)
	var delivErr *DeliveryError
	if !errors.As(err, &delivErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}

	// Marker must not survive the failure, so a retry can send.
	exists, _, mErr := MarkerSentAt(db, date, KindImpact)
	if mErr != nil {
		t.Fatalf("MarkerSentAt failed: %v", mErr)
	}
	if exists {
		t.Fatal("expected no marker after failed delivery")
	}

	poster.err = nil
	sent, err := d.Dispatch(date, KindImpact, "report body", false)
	if err != nil {
		t.Fatalf("retry Dispatch failed: %v", err)
	}
	if !sent {
		t.Fatal("expected retry to send after failure")
	}
	if poster.attempts != 2 {
		t.Fatalf("expected 2 attempts total, got %d", poster.attempts)
	}
}

func TestDispatchResendBypassesGuard(t *testing.T) {
	db := newTestDB(t)
	poster := &fakePoster{}
	d := NewDispatcher(poster, db, "C123")
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	if _, err := d.Dispatch(date, KindImpact, "report body", false); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	sent, err := d.Dispatch(date, KindImpact, "report body v2", true)
	if err != nil {
		t.Fatalf("resend Dispatch failed: %v", err)
	}
	if !sent {
		t.Fatal("expected resend to send despite existing marker")
	}
	if len(poster.posted) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(poster.posted))
	}

	// Guard still holds for plain dispatch afterwards.
	sent, err = d.Dispatch(date, KindImpact, "report body", false)
	if err != nil {
		t.Fatalf("Dispatch after resend failed: %v", err)
	}
	if sent {
		t.Fatal("expected plain dispatch after resend to be skipped")
	}

	attempts, err := GetDeliveryLog(db, date)
	if err != nil {
		t.Fatalf("GetDeliveryLog failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(attempts))
	}
}

func TestDispatchResendFailureKeepsExistingMarker(t *testing.T) {
	db := newTestDB(t)
	poster := &fakePoster{}
	d := NewDispatcher(poster, db, "C123")
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	if _, err := d.Dispatch(date, KindImpact, "report body", false); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	poster.err = errors.New("timeout")
	if _, err := d.Dispatch(date, KindImpact, "report body", true); err == nil {
		t.Fatal("expected resend failure to surface an error")
	}

	// The original sent marker is untouched by the failed resend.
	exists, sentAt, err := MarkerSentAt(db, date, KindImpact)
	if err != nil {
		t.Fatalf("MarkerSentAt failed: %v", err)
	}
	if !exists || sentAt.IsZero() {
		t.Fatal("expected original marker to remain after failed resend")
	}
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/testutil"
)

func TestRecordAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := clock.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	trail := NewTrail(db, c, nil)
	ctx := context.Background()

	trail.Record(ctx, Entry{
		ActorType:  ActorVoter,
		ActorID:    "voter-1",
		Action:     ActionOTPRequested,
		EntityType: EntityVerification,
		EntityID:   "ver-1",
		Payload:    map[string]any{"methods": []string{"email"}},
	})
	c.Advance(time.Second)
	trail.Record(ctx, Entry{
		ActorType:  ActorSystem,
		Action:     ActionOTPDeliveryFailed,
		EntityType: EntityVerification,
	})

	entries, err := trail.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Newest first
	if entries[0].Action != ActionOTPDeliveryFailed {
		t.Errorf("entries[0].Action = %s, want %s", entries[0].Action, ActionOTPDeliveryFailed)
	}
	if entries[0].ActorID != nil {
		t.Error("system actor should have nil actor id")
	}
	if string(entries[0].Payload) != "{}" {
		t.Errorf("empty payload stored as %s, want {}", entries[0].Payload)
	}

	second := entries[1]
	if second.ActorID == nil || *second.ActorID != "voter-1" {
		t.Errorf("ActorID = %v, want voter-1", second.ActorID)
	}
	var payload map[string][]string
	if err := json.Unmarshal(second.Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(payload["methods"]) != 1 || payload["methods"][0] != "email" {
		t.Errorf("payload = %v", payload)
	}
}

func TestRecordSwallowsErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	trail := NewTrail(db, clock.System(), logger)

	// Closing the database makes every write fail
	db.Close()

	trail.Record(context.Background(), Entry{
		ActorType:  ActorVoter,
		Action:     ActionVoteCast,
		EntityType: EntityBallot,
	})

	if !strings.Contains(buf.String(), "failed to write audit log") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

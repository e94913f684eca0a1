// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/models"
)

// Actor types
const (
	ActorVoter  = "voter"
	ActorSystem = "system"
)

// Entity types
const (
	EntityVerification = "verification"
	EntityBallot       = "ballot"
	EntityVoter        = "voter"
)

// Actions
const (
	ActionOTPRequested      = "otp_requested"
	ActionOTPVerified       = "otp_verified"
	ActionOTPFailed         = "otp_failed"
	ActionOTPLocked         = "otp_locked"
	ActionOTPDelivered      = "otp_delivered"
	ActionOTPDeliveryFailed = "otp_delivery_failed"
	ActionBallotIssued      = "ballot_issued"
	ActionVoteCast          = "vote_cast"
)

// Entry is one event to append. ActorID and EntityID may be empty.
type Entry struct {
	ActorType  string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Payload    map[string]any
}

// Recorder appends audit entries. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Trail is the database-backed Recorder
type Trail struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
}

func NewTrail(db *sql.DB, c clock.Clock, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{db: db, clock: c, logger: logger}
}

// Record appends e. Failures are logged and swallowed.
func (t *Trail) Record(ctx context.Context, e Entry) {
	if err := t.append(ctx, e); err != nil {
		t.logger.Error("failed to write audit log",
			"error", err,
			"action", e.Action,
			"entity_type", e.EntityType,
		)
	}
}

func (t *Trail) append(ctx context.Context, e Entry) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_type, actor_id, action, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, auth.NewRowID(), e.ActorType, nullable(e.ActorID), e.Action, e.EntityType, nullable(e.EntityID), string(raw), t.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent lists the newest entries first
func (t *Trail) Recent(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT id, actor_type, actor_id, action, entity_type, entity_id, payload, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var entry models.AuditLogEntry
		var actorID, entityID sql.NullString
		var payload string
		if err := rows.Scan(&entry.ID, &entry.ActorType, &actorID, &entry.Action,
			&entry.EntityType, &entityID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if actorID.Valid {
			entry.ActorID = &actorID.String
		}
		if entityID.Valid {
			entry.EntityID = &entityID.String
		}
		entry.Payload = json.RawMessage(payload)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

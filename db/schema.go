// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are written by the application in UTC; windows and expiry are
// compared in Go so both drivers behave the same.
const schema = `
-- Eligible voters
CREATE TABLE IF NOT EXISTS eligible_voter (
    id TEXT PRIMARY KEY,
    reg_no TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    email TEXT,
    phone TEXT,
    status TEXT NOT NULL DEFAULT 'eligible' CHECK (status IN ('eligible', 'ineligible')),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- OTP issuances
CREATE TABLE IF NOT EXISTS verification (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES eligible_voter(id),
    methods TEXT NOT NULL,
    otp_hash TEXT NOT NULL,
    state TEXT NOT NULL CHECK (state IN ('issued', 'verified', 'linked', 'expired')),
    attempts INTEGER NOT NULL DEFAULT 0,
    issued_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    verified_at TIMESTAMP,
    consumed_at TIMESTAMP,
    ballot_token TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_verification_voter ON verification(voter_id, issued_at);

-- Ballots
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES eligible_voter(id),
    token TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL CHECK (status IN ('active', 'consumed')),
    issued_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    consumed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ballot_voter ON ballot(voter_id);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_ballot_consumed_voter ON ballot(voter_id) WHERE status = 'consumed';

-- Positions
CREATE TABLE IF NOT EXISTS position (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    seats INTEGER NOT NULL DEFAULT 1 CHECK (seats > 0),
    nomination_opens TIMESTAMP,
    nomination_closes TIMESTAMP,
    voting_opens TIMESTAMP NOT NULL,
    voting_closes TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL REFERENCES position(id),
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    program TEXT NOT NULL DEFAULT '',
    manifesto_ref TEXT,
    photo_ref TEXT,
    status TEXT NOT NULL DEFAULT 'submitted' CHECK (status IN ('submitted', 'approved', 'rejected')),
    rejection_reason TEXT,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (position_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_candidate_position ON candidate(position_id, status);

-- Votes (no voter column)
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    ballot_id TEXT NOT NULL REFERENCES ballot(id),
    position_id TEXT NOT NULL REFERENCES position(id),
    candidate_id TEXT NOT NULL REFERENCES candidate(id),
    cast_at TIMESTAMP NOT NULL,
    UNIQUE (ballot_id, position_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_position ON vote(position_id, candidate_id);

-- Audit log (append-only)
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor_type TEXT NOT NULL,
    actor_id TEXT,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT,
    payload TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
`

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
)

// Issuer mints ballot tokens. It is the one writer that sees a voter and a
// ballot together; everything downstream works from the token alone.
type Issuer struct {
	clock clock.Clock
	ttl   time.Duration
}

func NewIssuer(c clock.Clock, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{clock: c, ttl: ttl}
}

// Issue creates an ACTIVE ballot for voterID within tx
func (i *Issuer) Issue(ctx context.Context, tx *sql.Tx, voterID string) (*models.Ballot, error) {
	voted, err := HasConsumed(ctx, tx, voterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, apperr.InvalidState("Already voted")
	}

	token, err := auth.GenerateBallotToken()
	if err != nil {
		return nil, err
	}

	now := i.clock.Now()
	b := &models.Ballot{
		ID:        auth.NewRowID(),
		VoterID:   voterID,
		Token:     token,
		Status:    models.BallotActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ballot (id, voter_id, token, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.VoterID, b.Token, b.Status, b.IssuedAt, b.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ballot: %w", err)
	}

	return b, nil
}

// HasConsumed reports whether the voter holds a consumed ballot
func HasConsumed(ctx context.Context, q db.Querier, voterID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ballot WHERE voter_id = $1 AND status = $2
	`, voterID, models.BallotConsumed).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check ballots: %w", err)
	}
	return n > 0, nil
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
)

func byToken(ctx context.Context, q db.Querier, token string) (*models.Ballot, error) {
	var b models.Ballot
	var consumedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, voter_id, token, status, issued_at, expires_at, consumed_at
		FROM ballot WHERE token = $1
	`, token).Scan(&b.ID, &b.VoterID, &b.Token, &b.Status, &b.IssuedAt, &b.ExpiresAt, &consumedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ballot: %w", err)
	}
	if consumedAt.Valid {
		b.ConsumedAt = &consumedAt.Time
	}
	return &b, nil
}

const positionColumns = `id, name, seats, nomination_opens, nomination_closes, voting_opens, voting_closes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (models.Position, error) {
	var p models.Position
	var nomOpens, nomCloses sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Seats, &nomOpens, &nomCloses, &p.VotingOpens, &p.VotingCloses)
	if err != nil {
		return p, err
	}
	if nomOpens.Valid {
		p.NominationOpens = &nomOpens.Time
	}
	if nomCloses.Valid {
		p.NominationCloses = &nomCloses.Time
	}
	return p, nil
}

func positionByID(ctx context.Context, q db.Querier, id string) (*models.Position, error) {
	p, err := scanPosition(q.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM position WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query position: %w", err)
	}
	return &p, nil
}

func allPositions(ctx context.Context, q db.Querier) ([]models.Position, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM position ORDER BY voting_opens, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

const candidateColumns = `id, position_id, user_id, name, program, manifesto_ref, photo_ref, status, rejection_reason`

func scanCandidate(row rowScanner) (models.Candidate, error) {
	var c models.Candidate
	var manifesto, photo, reason sql.NullString
	err := row.Scan(&c.ID, &c.PositionID, &c.UserID, &c.Name, &c.Program, &manifesto, &photo, &c.Status, &reason)
	if err != nil {
		return c, err
	}
	if manifesto.Valid {
		c.ManifestoRef = &manifesto.String
	}
	if photo.Valid {
		c.PhotoRef = &photo.String
	}
	if reason.Valid {
		c.RejectionReason = &reason.String
	}
	return c, nil
}

func candidateByID(ctx context.Context, q db.Querier, id string) (*models.Candidate, error) {
	c, err := scanCandidate(q.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate: %w", err)
	}
	return &c, nil
}

func approvedCandidates(ctx context.Context, q db.Querier) ([]models.Candidate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate WHERE status = $1 ORDER BY position_id, name`,
		models.CandidateApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

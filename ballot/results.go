// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/models"
)

// Results tallies a position once its voting window has closed. Counts come
// from vote rows alone; ballots and voters are never joined in.
func (s *Service) Results(ctx context.Context, positionID string) (*models.PositionResults, error) {
	p, err := positionByID(ctx, s.db, positionID)
	if err != nil {
		slog.Error("failed to load position", "error", err, "position_id", positionID)
		return nil, apperr.Internal("Database error", err)
	}
	if p == nil {
		return nil, apperr.NotFound("Position not found")
	}

	// Results are sealed until voting closes
	if !s.resolver.VotingClosed(*p) {
		return nil, apperr.Forbidden("Results are available after voting closes")
	}

	results, err := s.tally(ctx, p.ID)
	if err != nil {
		slog.Error("failed to tally votes", "error", err, "position_id", positionID)
		return nil, apperr.Internal("Database error", err)
	}

	total := 0
	for _, r := range results {
		total += r.Votes
	}

	return &models.PositionResults{
		Position:   *p,
		Results:    results,
		TotalVotes: total,
	}, nil
}

func (s *Service) tally(ctx context.Context, positionID string) ([]models.CandidateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COUNT(v.id) AS votes
		FROM candidate c
		LEFT JOIN vote v ON v.candidate_id = c.id AND v.position_id = c.position_id
		WHERE c.position_id = $1 AND c.status = $2
		GROUP BY c.id, c.name
		ORDER BY votes DESC, c.name
	`, positionID, models.CandidateApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query tally: %w", err)
	}
	defer rows.Close()

	results := []models.CandidateResult{}
	for rows.Next() {
		var r models.CandidateResult
		if err := rows.Scan(&r.CandidateID, &r.Name, &r.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

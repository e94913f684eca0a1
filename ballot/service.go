// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/metrics"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/window"
)

type Service struct {
	db       *sql.DB
	resolver *window.Resolver
	audit    audit.Recorder
	metrics  *metrics.Metrics
}

func NewService(conn *sql.DB, resolver *window.Resolver, rec audit.Recorder, m *metrics.Metrics) *Service {
	return &Service{db: conn, resolver: resolver, audit: rec, metrics: m}
}

// Contents returns what the holder of token may currently vote on: the
// positions whose window is open and their approved candidates.
func (s *Service) Contents(ctx context.Context, token string) (*models.BallotContentsResponse, error) {
	b, err := s.usableBallot(ctx, s.db, token)
	if err != nil {
		return nil, err
	}

	positions, err := allPositions(ctx, s.db)
	if err != nil {
		slog.Error("failed to load positions", "error", err)
		return nil, apperr.Internal("Database error", err)
	}
	open := s.resolver.OpenPositions(positions)

	openIDs := make(map[string]bool, len(open))
	for _, p := range open {
		openIDs[p.ID] = true
	}

	all, err := approvedCandidates(ctx, s.db)
	if err != nil {
		slog.Error("failed to load candidates", "error", err)
		return nil, apperr.Internal("Database error", err)
	}
	candidates := []models.Candidate{}
	for _, c := range all {
		if openIDs[c.PositionID] {
			candidates = append(candidates, c)
		}
	}

	return &models.BallotContentsResponse{
		Ballot: models.BallotInfo{
			Status:    b.Status,
			IssuedAt:  b.IssuedAt,
			ExpiresAt: b.ExpiresAt,
		},
		Positions:  open,
		Candidates: candidates,
	}, nil
}

// Cast validates selections and, in one transaction, records one vote per
// selection and consumes the ballot. Either everything commits or the
// ballot stays ACTIVE with no new votes.
func (s *Service) Cast(ctx context.Context, token string, selections []models.Selection) (n int, err error) {
	defer func() { s.metrics.CastAttempted(metrics.OutcomeOf(err), n) }()

	if len(selections) == 0 {
		return 0, apperr.InvalidState("At least one vote is required")
	}

	var voterID, ballotID string
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := s.usableBallot(ctx, tx, token)
		if err != nil {
			return err
		}
		voterID, ballotID = b.VoterID, b.ID

		// Judged at the moment of the write, not when the ballot was fetched
		now := s.resolver.Now()

		if err := s.checkWindows(ctx, tx, selections, now); err != nil {
			return err
		}
		if err := checkCandidates(ctx, tx, selections); err != nil {
			return err
		}

		seen := make(map[string]bool, len(selections))
		for _, sel := range selections {
			if seen[sel.PositionID] {
				return apperr.InvalidState("Multiple votes for same position")
			}
			seen[sel.PositionID] = true
		}

		for _, sel := range selections {
			var existing int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM vote WHERE ballot_id = $1 AND position_id = $2
			`, b.ID, sel.PositionID).Scan(&existing); err != nil {
				return fmt.Errorf("failed to check existing votes: %w", err)
			}
			if existing > 0 {
				return apperr.InvalidState("Already voted for some of these positions")
			}
		}

		for _, sel := range selections {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO vote (id, ballot_id, position_id, candidate_id, cast_at)
				VALUES ($1, $2, $3, $4, $5)
			`, auth.NewRowID(), b.ID, sel.PositionID, sel.CandidateID, now)
			if db.IsUniqueViolation(err) {
				return apperr.InvalidState("Ballot already used")
			}
			if err != nil {
				return fmt.Errorf("failed to insert vote: %w", err)
			}
		}

		next, err := Consume(b.Status)
		if err != nil {
			return apperr.InvalidState("Ballot already used")
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE ballot SET status = $1, consumed_at = $2
			WHERE id = $3 AND status = $4
		`, next, now, b.ID, models.BallotActive)
		if db.IsUniqueViolation(err) {
			// Another ballot of the same voter got there first
			return apperr.InvalidState("Already voted")
		}
		if err != nil {
			return fmt.Errorf("failed to consume ballot: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows != 1 {
			return apperr.InvalidState("Ballot already used")
		}

		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return 0, err
		}
		slog.Error("vote transaction failed", "error", err, "ballot_id", ballotID)
		return 0, apperr.Internal("Failed to record votes", err)
	}

	positions := make([]string, len(selections))
	for i, sel := range selections {
		positions[i] = sel.PositionID
	}
	s.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voterID,
		Action:     audit.ActionVoteCast,
		EntityType: audit.EntityVoter,
		EntityID:   voterID,
		Payload:    map[string]any{"positions": positions},
	})

	slog.Info("votes recorded", "ballot_id", ballotID, "votes", len(selections))

	return len(selections), nil
}

// checkWindows rejects the batch if any selected position is closed,
// listing every closed one
func (s *Service) checkWindows(ctx context.Context, tx *sql.Tx, selections []models.Selection, now time.Time) error {
	closed := []models.ClosedPosition{}
	checked := make(map[string]bool, len(selections))

	for _, sel := range selections {
		if checked[sel.PositionID] {
			continue
		}
		checked[sel.PositionID] = true

		p, err := positionByID(ctx, tx, sel.PositionID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound("Position not found")
		}
		if !s.resolver.VotingOpenAt(*p, now) {
			closed = append(closed, models.ClosedPosition{
				PositionID:   p.ID,
				Name:         p.Name,
				VotingOpens:  p.VotingOpens,
				VotingCloses: p.VotingCloses,
			})
		}
	}

	if len(closed) > 0 {
		return apperr.InvalidState("Voting is closed for some positions").WithDetails(closed)
	}
	return nil
}

func checkCandidates(ctx context.Context, tx *sql.Tx, selections []models.Selection) error {
	for _, sel := range selections {
		c, err := candidateByID(ctx, tx, sel.CandidateID)
		if err != nil {
			return err
		}
		if c == nil || c.Status != models.CandidateApproved || c.PositionID != sel.PositionID {
			return apperr.InvalidState("Invalid or unapproved candidate")
		}
	}
	return nil
}

func (s *Service) usableBallot(ctx context.Context, q db.Querier, token string) (*models.Ballot, error) {
	if token == "" {
		return nil, apperr.InvalidState("Ballot token is required")
	}

	b, err := byToken(ctx, q, token)
	if err != nil {
		slog.Error("failed to load ballot", "error", err)
		return nil, apperr.Internal("Database error", err)
	}
	if b == nil {
		return nil, apperr.NotFound("Invalid ballot token")
	}
	if err := Usable(*b, s.resolver.Now()); err != nil {
		return nil, err
	}
	return b, nil
}

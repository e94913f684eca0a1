// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/verify"
	"github.com/danielhkuo/ballotbox/window"
)

// Election is the on-disk election definition
type Election struct {
	Positions []Position `yaml:"positions"`
	Voters    []Voter    `yaml:"voters"`
}

type Position struct {
	ID               string      `yaml:"id"`
	Name             string      `yaml:"name"`
	Seats            int         `yaml:"seats"`
	NominationOpens  *time.Time  `yaml:"nomination_opens"`
	NominationCloses *time.Time  `yaml:"nomination_closes"`
	VotingOpens      time.Time   `yaml:"voting_opens"`
	VotingCloses     time.Time   `yaml:"voting_closes"`
	Candidates       []Candidate `yaml:"candidates"`
}

type Candidate struct {
	UserID       string `yaml:"user_id"`
	Name         string `yaml:"name"`
	Program      string `yaml:"program"`
	ManifestoRef string `yaml:"manifesto_ref"`
	PhotoRef     string `yaml:"photo_ref"`
	Status       string `yaml:"status"`
}

type Voter struct {
	RegNo  string `yaml:"reg_no"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Phone  string `yaml:"phone"`
	Status string `yaml:"status"`
}

// Summary counts the rows written by Apply
type Summary struct {
	Positions  int
	Candidates int
	Voters     int
}

// Load decodes an election definition and validates it. Unknown keys are
// rejected so typos do not silently drop data.
func Load(r io.Reader) (*Election, error) {
	var e Election
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("election definition is empty")
		}
		return nil, fmt.Errorf("failed to decode election definition: %w", err)
	}
	e.normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadFile is Load for a path on disk
func LoadFile(path string) (*Election, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (e *Election) normalize() {
	for i := range e.Positions {
		p := &e.Positions[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.Seats == 0 {
			p.Seats = 1
		}
		for j := range p.Candidates {
			if p.Candidates[j].Status == "" {
				p.Candidates[j].Status = models.CandidateSubmitted
			}
		}
	}
	for i := range e.Voters {
		e.Voters[i].RegNo = verify.NormalizeRegNo(e.Voters[i].RegNo)
		if e.Voters[i].Status == "" {
			e.Voters[i].Status = models.VoterEligible
		}
	}
}

// Validate checks required fields, window ordering and duplicates
func (e *Election) Validate() error {
	positions := make(map[string]bool, len(e.Positions))
	for _, p := range e.Positions {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("position %q: id and name are required", p.ID)
		}
		if positions[p.ID] {
			return fmt.Errorf("position %q: defined twice", p.ID)
		}
		positions[p.ID] = true

		if p.Seats < 1 {
			return fmt.Errorf("position %q: seats must be positive", p.ID)
		}
		if err := window.Validate(p.model()); err != nil {
			return fmt.Errorf("position %q: %w", p.ID, err)
		}

		users := make(map[string]bool, len(p.Candidates))
		for _, c := range p.Candidates {
			if c.UserID == "" || c.Name == "" {
				return fmt.Errorf("position %q: candidate user_id and name are required", p.ID)
			}
			if users[c.UserID] {
				return fmt.Errorf("position %q: candidate %q listed twice", p.ID, c.UserID)
			}
			users[c.UserID] = true

			switch c.Status {
			case models.CandidateSubmitted, models.CandidateApproved, models.CandidateRejected:
			default:
				return fmt.Errorf("position %q: candidate %q has unknown status %q", p.ID, c.UserID, c.Status)
			}
		}
	}

	regNos := make(map[string]bool, len(e.Voters))
	for _, v := range e.Voters {
		if v.RegNo == "" || v.Name == "" {
			return fmt.Errorf("voter %q: reg_no and name are required", v.RegNo)
		}
		if regNos[v.RegNo] {
			return fmt.Errorf("voter %q: defined twice", v.RegNo)
		}
		regNos[v.RegNo] = true

		switch v.Status {
		case models.VoterEligible, models.VoterIneligible:
		default:
			return fmt.Errorf("voter %q: unknown status %q", v.RegNo, v.Status)
		}
	}
	return nil
}

func (p Position) model() models.Position {
	return models.Position{
		ID:               p.ID,
		Name:             p.Name,
		Seats:            p.Seats,
		NominationOpens:  p.NominationOpens,
		NominationCloses: p.NominationCloses,
		VotingOpens:      p.VotingOpens,
		VotingCloses:     p.VotingCloses,
	}
}

// Apply upserts the whole definition in one transaction. Running it twice
// with the same input leaves the database unchanged apart from updated_at.
func Apply(ctx context.Context, conn *sql.DB, c clock.Clock, e *Election) (Summary, error) {
	var sum Summary
	now := c.Now().UTC()

	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		for _, p := range e.Positions {
			if err := upsertPosition(ctx, tx, p, now); err != nil {
				return err
			}
			sum.Positions++

			for _, cand := range p.Candidates {
				if err := upsertCandidate(ctx, tx, p.ID, cand, now); err != nil {
					return err
				}
				sum.Candidates++
			}
		}

		for _, v := range e.Voters {
			if err := upsertVoter(ctx, tx, v, now); err != nil {
				return err
			}
			sum.Voters++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func upsertPosition(ctx context.Context, tx *sql.Tx, p Position, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO position (id, name, seats, nomination_opens, nomination_closes, voting_opens, voting_closes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			seats = excluded.seats,
			nomination_opens = excluded.nomination_opens,
			nomination_closes = excluded.nomination_closes,
			voting_opens = excluded.voting_opens,
			voting_closes = excluded.voting_closes
	`, p.ID, p.Name, p.Seats, utcPtr(p.NominationOpens), utcPtr(p.NominationCloses), p.VotingOpens.UTC(), p.VotingCloses.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert position %q: %w", p.ID, err)
	}
	return nil
}

func upsertCandidate(ctx context.Context, tx *sql.Tx, positionID string, c Candidate, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO candidate (id, position_id, user_id, name, program, manifesto_ref, photo_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (position_id, user_id) DO UPDATE SET
			name = excluded.name,
			program = excluded.program,
			manifesto_ref = excluded.manifesto_ref,
			photo_ref = excluded.photo_ref,
			status = excluded.status
	`, auth.NewRowID(), positionID, c.UserID, c.Name, c.Program, nullable(c.ManifestoRef), nullable(c.PhotoRef), c.Status, now)
	if err != nil {
		return fmt.Errorf("failed to upsert candidate %q for position %q: %w", c.UserID, positionID, err)
	}
	return nil
}

func upsertVoter(ctx context.Context, tx *sql.Tx, v Voter, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO eligible_voter (id, reg_no, name, email, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reg_no) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, auth.NewRowID(), v.RegNo, v.Name, nullable(v.Email), nullable(v.Phone), v.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert voter %q: %w", v.RegNo, err)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

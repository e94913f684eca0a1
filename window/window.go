// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package window decides whether a position is accepting votes (or
// nominations) at a given instant. Ballot contents and the casting
// transaction both go through Interval.Contains so the two can never
// disagree about where a window starts or ends.
package window

import (
	"errors"
	"time"

	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/models"
)

var (
	ErrEmptyVotingWindow    = errors.New("voting close must be after voting open")
	ErrNominationOverlap    = errors.New("nomination close must not be after voting open")
	ErrNominationIncomplete = errors.New("nomination window needs both open and close")
)

// Interval is closed on both ends: Opens <= t <= Closes
type Interval struct {
	Opens  time.Time
	Closes time.Time
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Opens) && !t.After(i.Closes)
}

// Voting returns the voting interval of p
func Voting(p models.Position) Interval {
	return Interval{Opens: p.VotingOpens, Closes: p.VotingCloses}
}

// Nomination returns the nomination interval of p, if configured
func Nomination(p models.Position) (Interval, bool) {
	if p.NominationOpens == nil || p.NominationCloses == nil {
		return Interval{}, false
	}
	return Interval{Opens: *p.NominationOpens, Closes: *p.NominationCloses}, true
}

// Validate checks the ordering constraints on a position's windows
func Validate(p models.Position) error {
	if !p.VotingCloses.After(p.VotingOpens) {
		return ErrEmptyVotingWindow
	}
	if (p.NominationOpens == nil) != (p.NominationCloses == nil) {
		return ErrNominationIncomplete
	}
	if p.NominationCloses != nil && p.NominationCloses.After(p.VotingOpens) {
		return ErrNominationOverlap
	}
	return nil
}

type Resolver struct {
	clock clock.Clock
}

func NewResolver(c clock.Clock) *Resolver {
	return &Resolver{clock: c}
}

// Now is the instant every check made through this resolver is judged at
func (r *Resolver) Now() time.Time {
	return r.clock.Now()
}

func (r *Resolver) VotingOpen(p models.Position) bool {
	return Voting(p).Contains(r.clock.Now())
}

func (r *Resolver) VotingOpenAt(p models.Position, at time.Time) bool {
	return Voting(p).Contains(at)
}

func (r *Resolver) NominationOpen(p models.Position) bool {
	iv, ok := Nomination(p)
	return ok && iv.Contains(r.clock.Now())
}

// VotingClosed reports whether p's voting window has ended
func (r *Resolver) VotingClosed(p models.Position) bool {
	return r.clock.Now().After(p.VotingCloses)
}

// OpenPositions filters ps to those accepting votes at a single instant
func (r *Resolver) OpenPositions(ps []models.Position) []models.Position {
	now := r.clock.Now()
	open := make([]models.Position, 0, len(ps))
	for _, p := range ps {
		if Voting(p).Contains(now) {
			open = append(open, p)
		}
	}
	return open
}

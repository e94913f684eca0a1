// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/models"
)

// Consume is the ballot's only transition: ACTIVE -> CONSUMED
func Consume(from models.BallotStatus) (models.BallotStatus, error) {
	if from != models.BallotActive {
		return from, fmt.Errorf("cannot consume %s ballot", from)
	}
	return models.BallotConsumed, nil
}

// Usable reports why b cannot be voted with at now, or nil
func Usable(b models.Ballot, now time.Time) error {
	if b.Status != models.BallotActive {
		return apperr.InvalidState("Ballot already used")
	}
	if !now.Before(b.ExpiresAt) {
		return apperr.InvalidState("Ballot has expired")
	}
	return nil
}

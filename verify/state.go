// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbox/models"
)

// Event drives a verification from one state to the next
type Event string

const (
	EventVerify Event = "verify" // correct code submitted
	EventLink   Event = "link"   // ballot minted
	EventExpire Event = "expire" // TTL elapsed, superseded or locked out
)

var ErrIllegalTransition = errors.New("illegal verification transition")

// Transition is the only place verification states change.
// EXPIRED and LINKED are terminal.
func Transition(from models.VerificationState, ev Event) (models.VerificationState, error) {
	switch {
	case from == models.VerificationIssued && ev == EventVerify:
		return models.VerificationVerified, nil
	case from == models.VerificationIssued && ev == EventExpire:
		return models.VerificationExpired, nil
	case from == models.VerificationVerified && ev == EventLink:
		return models.VerificationLinked, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}

// Effective folds wall-clock expiry into the stored state. An ISSUED row
// whose expiry has passed is EXPIRED even before anything writes that down.
func Effective(v models.Verification, now time.Time) models.VerificationState {
	if v.State == models.VerificationIssued && !now.Before(v.ExpiresAt) {
		return models.VerificationExpired
	}
	return v.State
}

// Terminal reports whether no further transition is possible from s
func Terminal(s models.VerificationState) bool {
	return s == models.VerificationExpired || s == models.VerificationLinked
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import "github.com/danielhkuo/ballotbox/apperr"

// OutcomeOf maps a service error to an outcome label
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return OutcomeNotFound
	case apperr.KindInvalidState, apperr.KindForbidden:
		return OutcomeInvalid
	case apperr.KindUnauthorized:
		return OutcomeRejected
	case apperr.KindRateLimited:
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}

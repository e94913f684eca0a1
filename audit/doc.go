// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package audit is the append-only trail of security-relevant events.

	trail := audit.NewTrail(db, clock.System(), logger)
	trail.Record(ctx, audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voterID,
		Action:     audit.ActionOTPRequested,
		EntityType: audit.EntityVerification,
		EntityID:   verificationID,
	})

Record never returns an error: a failed write is logged and the triggering
operation carries on. Entries are never updated or deleted.

Recent lists entries newest first for operators.
*/
package audit

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines persisted rows, request/response types and status
constants.

# Domain Types

  - EligibleVoter: the franchise, keyed by case-normalized registration number
  - Verification: one OTP issuance (hash only, never the code)
  - Ballot: the anonymizing boundary; its token is the voting credential
  - Position / Candidate: what can be voted for
  - Vote: one selection per (ballot, position), with no voter attribute
  - AuditLogEntry: append-only security events

# Hidden Fields

Fields tagged json:"-" are never serialized:

  - Verification.OTPHash, Verification.BallotToken
  - Ballot.VoterID, Ballot.Token
  - Candidate.UserID
  - Vote.BallotID

# States

	Verification: issued → verified → linked, or issued → expired
	Ballot:       active → consumed

Transitions are owned by the verify and ballot packages.
*/
package models

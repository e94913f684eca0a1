package models

import (
	"encoding/json"
	"time"
)

// Voter status constants
const (
	VoterEligible   = "eligible"
	VoterIneligible = "ineligible"
)

// Candidate status constants
const (
	CandidateSubmitted = "submitted"
	CandidateApproved  = "approved"
	CandidateRejected  = "rejected"
)

// VerificationState is the lifecycle of one OTP issuance.
// ISSUED -> VERIFIED -> LINKED, or ISSUED -> EXPIRED.
type VerificationState string

const (
	VerificationIssued   VerificationState = "issued"
	VerificationVerified VerificationState = "verified"
	VerificationLinked   VerificationState = "linked"
	VerificationExpired  VerificationState = "expired"
)

// BallotStatus is ACTIVE until the ballot's votes are committed
type BallotStatus string

const (
	BallotActive   BallotStatus = "active"
	BallotConsumed BallotStatus = "consumed"
)

// Delivery channel names
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelConsole = "console"
)

// Request types

type RequestOTPRequest struct {
	RegNo string `json:"reg_no"`
}

type ConfirmOTPRequest struct {
	RegNo string `json:"reg_no"`
	OTP   string `json:"otp"`
}

type Selection struct {
	PositionID  string `json:"positionId"`
	CandidateID string `json:"candidateId"`
}

type CastVoteRequest struct {
	Token string      `json:"token"`
	Votes []Selection `json:"votes"`
}

// Response types

type RequestOTPResponse struct {
	Message   string   `json:"message"`
	ExpiresIn int      `json:"expiresIn"` // seconds
	SentVia   []string `json:"sentVia"`
}

type ConfirmOTPResponse struct {
	Message     string    `json:"message"`
	BallotToken string    `json:"ballotToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type BallotInfo struct {
	Status    BallotStatus `json:"status"`
	IssuedAt  time.Time    `json:"issuedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type BallotContentsResponse struct {
	Ballot     BallotInfo  `json:"ballot"`
	Positions  []Position  `json:"positions"`
	Candidates []Candidate `json:"candidates"`
}

type CastVoteResponse struct {
	Message string `json:"message"`
	Votes   int    `json:"votes"`
}

// ClosedPosition is returned in error details when a selection targets a
// position outside its voting window
type ClosedPosition struct {
	PositionID   string    `json:"positionId"`
	Name         string    `json:"name"`
	VotingOpens  time.Time `json:"votingOpens"`
	VotingCloses time.Time `json:"votingCloses"`
}

type CandidateResult struct {
	CandidateID string `json:"candidateId"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

type PositionResults struct {
	Position   Position          `json:"position"`
	Results    []CandidateResult `json:"results"`
	TotalVotes int               `json:"totalVotes"`
}

// Domain types

type EligibleVoter struct {
	ID        string    `json:"id"`
	RegNo     string    `json:"regNo"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Verification struct {
	ID          string            `json:"id"`
	VoterID     string            `json:"voterId"`
	Methods     []string          `json:"methods"`
	OTPHash     string            `json:"-"` // Never expose in JSON
	State       VerificationState `json:"state"`
	Attempts    int               `json:"attempts"`
	IssuedAt    time.Time         `json:"issuedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	VerifiedAt  *time.Time        `json:"verifiedAt,omitempty"`
	ConsumedAt  *time.Time        `json:"consumedAt,omitempty"`
	BallotToken *string           `json:"-"`
}

type Ballot struct {
	ID         string       `json:"id"`
	VoterID    string       `json:"-"` // Never expose in JSON
	Token      string       `json:"-"` // Never expose in JSON
	Status     BallotStatus `json:"status"`
	IssuedAt   time.Time    `json:"issuedAt"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	ConsumedAt *time.Time   `json:"consumedAt,omitempty"`
}

type Position struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Seats            int        `json:"seats"`
	NominationOpens  *time.Time `json:"nominationOpens,omitempty"`
	NominationCloses *time.Time `json:"nominationCloses,omitempty"`
	VotingOpens      time.Time  `json:"votingOpens"`
	VotingCloses     time.Time  `json:"votingCloses"`
}

type Candidate struct {
	ID              string  `json:"id"`
	PositionID      string  `json:"positionId"`
	UserID          string  `json:"-"`
	Name            string  `json:"name"`
	Program         string  `json:"program,omitempty"`
	ManifestoRef    *string `json:"manifestoRef,omitempty"`
	PhotoRef        *string `json:"photoRef,omitempty"`
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

// Vote deliberately has no voter attribute
type Vote struct {
	ID          string    `json:"id"`
	BallotID    string    `json:"-"`
	PositionID  string    `json:"positionId"`
	CandidateID string    `json:"candidateId"`
	CastAt      time.Time `json:"castAt"`
}

type AuditLogEntry struct {
	ID         string          `json:"id"`
	ActorType  string          `json:"actorType"`
	ActorID    *string         `json:"actorId,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   *string         `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Error response

type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Details    any    `json:"details,omitempty"`
}

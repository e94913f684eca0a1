// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/metrics"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/notify"
)

// Notifier is the part of the dispatcher the verification flow needs
type Notifier interface {
	Reachable(r notify.Recipient) []string
	Submit(job notify.Job) error
}

// BallotIssuer mints a ballot for a voter inside the confirming transaction
type BallotIssuer interface {
	Issue(ctx context.Context, tx *sql.Tx, voterID string) (*models.Ballot, error)
}

type Options struct {
	TTL         time.Duration // OTP lifetime
	Cooldown    time.Duration // minimum gap between two issued codes
	MaxAttempts int           // wrong codes before the verification is locked
	BcryptCost  int
	IPSalt      string
}

// RequestMeta carries request context that only ever reaches the audit trail
type RequestMeta struct {
	IP string
}

// Issued describes a freshly stored verification. The code itself is gone.
type Issued struct {
	VerificationID string
	ExpiresIn      time.Duration
	SentVia        []string
}

type Service struct {
	db       *sql.DB
	clock    clock.Clock
	notifier Notifier
	issuer   BallotIssuer
	audit    audit.Recorder
	metrics  *metrics.Metrics
	opts     Options
}

func NewService(conn *sql.DB, c clock.Clock, notifier Notifier, issuer BallotIssuer, rec audit.Recorder, m *metrics.Metrics, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Service{
		db:       conn,
		clock:    c,
		notifier: notifier,
		issuer:   issuer,
		audit:    rec,
		metrics:  m,
		opts:     opts,
	}
}

// NormalizeRegNo is the canonical form registration numbers are stored in
func NormalizeRegNo(regNo string) string {
	return strings.ToUpper(strings.TrimSpace(regNo))
}

// RequestOTP issues a new code for the voter and queues its delivery.
// Delivery happens after this returns; its failures never surface here.
func (s *Service) RequestOTP(ctx context.Context, regNo string, meta RequestMeta) (issued *Issued, err error) {
	defer func() { s.metrics.OTPRequested(metrics.OutcomeOf(err)) }()

	voter, err := s.eligibleVoter(ctx, regNo)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	latest, err := latestIssued(ctx, s.db, voter.ID)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	if latest != nil && Effective(*latest, now) == models.VerificationIssued {
		if elapsed := now.Sub(latest.IssuedAt); elapsed < s.opts.Cooldown {
			retry := int(math.Ceil((s.opts.Cooldown - elapsed).Seconds()))
			return nil, apperr.RateLimited("Please wait before requesting another code", retry)
		}
	}

	recipient := notify.Recipient{VoterID: voter.ID, Name: voter.Name}
	if voter.Email != nil {
		recipient.Email = *voter.Email
	}
	if voter.Phone != nil {
		recipient.Phone = *voter.Phone
	}
	channels := s.notifier.Reachable(recipient)
	if len(channels) == 0 {
		return nil, apperr.InvalidState("No delivery channel available for this voter")
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, apperr.Internal("Failed to issue code", err)
	}
	hash, err := auth.HashOTP(code, s.opts.BcryptCost)
	if err != nil {
		return nil, apperr.Internal("Failed to issue code", err)
	}

	verificationID := auth.NewRowID()
	expiresAt := now.Add(s.opts.TTL)

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// Only the newest code stays actionable
		if _, err := tx.ExecContext(ctx, `
			UPDATE verification SET state = $1
			WHERE voter_id = $2 AND state = $3
		`, models.VerificationExpired, voter.ID, models.VerificationIssued); err != nil {
			return fmt.Errorf("failed to supersede verifications: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO verification (id, voter_id, methods, otp_hash, state, attempts, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		`, verificationID, voter.ID, strings.Join(channels, ","), hash, models.VerificationIssued, now, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to insert verification: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to store verification", "error", err, "voter_id", voter.ID)
		return nil, apperr.Internal("Database error", err)
	}

	// The code is committed; its trail must not depend on the client staying.
	actx := context.WithoutCancel(ctx)
	s.audit.Record(actx, audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voter.ID,
		Action:     audit.ActionOTPRequested,
		EntityType: audit.EntityVerification,
		EntityID:   verificationID,
		Payload: map[string]any{
			"methods":   channels,
			"expiresAt": expiresAt,
			"ipHash":    s.ipHash(meta),
		},
	})

	job := notify.Job{
		VerificationID: verificationID,
		Recipient:      recipient,
		Message:        notify.Message{Code: code, ExpiresIn: s.opts.TTL},
		Channels:       channels,
	}
	if err := s.notifier.Submit(job); err != nil {
		// The code is stored; the voter can ask again after the cooldown
		slog.Warn("failed to queue otp delivery", "error", err, "verification_id", verificationID)
		s.metrics.DeliveryFailed("queue")
		s.audit.Record(actx, audit.Entry{
			ActorType:  audit.ActorSystem,
			Action:     audit.ActionOTPDeliveryFailed,
			EntityType: audit.EntityVerification,
			EntityID:   verificationID,
			Payload:    map[string]any{"voterId": voter.ID, "error": err.Error()},
		})
	}

	slog.Info("otp issued", "voter_id", voter.ID, "verification_id", verificationID, "sent_via", channels)

	return &Issued{VerificationID: verificationID, ExpiresIn: s.opts.TTL, SentVia: channels}, nil
}

// ConfirmOTP checks code against the voter's newest verification and, on a
// match, mints a ballot in the same transaction that consumes the code.
func (s *Service) ConfirmOTP(ctx context.Context, regNo, code string, meta RequestMeta) (b *models.Ballot, err error) {
	defer func() { s.metrics.OTPConfirmed(metrics.OutcomeOf(err)) }()

	voter, err := s.eligibleVoter(ctx, regNo)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	v, err := latestIssued(ctx, s.db, voter.ID)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	if v == nil {
		return nil, apperr.InvalidState("No valid OTP found")
	}
	if Effective(*v, now) == models.VerificationExpired {
		if err := s.expire(ctx, v.ID); err != nil {
			slog.Warn("failed to expire verification", "error", err, "verification_id", v.ID)
		}
		return nil, apperr.InvalidState("OTP has expired")
	}

	if err := auth.VerifyOTP(v.OTPHash, code); err != nil {
		if !errors.Is(err, auth.ErrOTPMismatch) && !errors.Is(err, auth.ErrInvalidOTPInput) {
			return nil, apperr.Internal("Failed to verify code", err)
		}
		return nil, s.failedAttempt(ctx, voter.ID, v, meta)
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := advance(ctx, tx, v.ID, models.VerificationIssued, EventVerify, "verified_at", now); err != nil {
			return err
		}

		issued, err := s.issuer.Issue(ctx, tx, voter.ID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE verification SET ballot_token = $1 WHERE id = $2
		`, issued.Token, v.ID)
		if err != nil {
			return fmt.Errorf("failed to link ballot: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("failed to link ballot: %d rows", n)
		}
		if err := advance(ctx, tx, v.ID, models.VerificationVerified, EventLink, "consumed_at", now); err != nil {
			return err
		}

		b = issued
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		slog.Error("failed to confirm otp", "error", err, "voter_id", voter.ID)
		return nil, apperr.Internal("Database error", err)
	}

	actx := context.WithoutCancel(ctx)
	s.audit.Record(actx, audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voter.ID,
		Action:     audit.ActionOTPVerified,
		EntityType: audit.EntityVerification,
		EntityID:   v.ID,
		Payload:    map[string]any{"ipHash": s.ipHash(meta)},
	})
	s.audit.Record(actx, audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voter.ID,
		Action:     audit.ActionBallotIssued,
		EntityType: audit.EntityBallot,
		EntityID:   b.ID,
		Payload:    map[string]any{"verificationId": v.ID, "expiresAt": b.ExpiresAt},
	})
	s.metrics.BallotIssued()

	slog.Info("ballot issued", "voter_id", voter.ID, "ballot_id", b.ID)

	return b, nil
}

// failedAttempt counts a wrong code and locks the verification once the
// limit is reached. The caller only ever learns that the OTP was invalid.
func (s *Service) failedAttempt(ctx context.Context, voterID string, v *models.Verification, meta RequestMeta) error {
	// A dropped connection must not skip the attempt count.
	ctx = context.WithoutCancel(ctx)
	attempts := v.Attempts + 1
	err := s.db.QueryRowContext(ctx, `
		UPDATE verification SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, v.ID).Scan(&attempts)
	if err != nil {
		slog.Error("failed to count otp attempt", "error", err, "verification_id", v.ID)
	}

	s.audit.Record(ctx, audit.Entry{
		ActorType:  audit.ActorVoter,
		ActorID:    voterID,
		Action:     audit.ActionOTPFailed,
		EntityType: audit.EntityVerification,
		EntityID:   v.ID,
		Payload:    map[string]any{"attempts": attempts, "ipHash": s.ipHash(meta)},
	})

	if attempts >= s.opts.MaxAttempts {
		if err := s.expire(ctx, v.ID); err != nil {
			slog.Error("failed to lock verification", "error", err, "verification_id", v.ID)
		} else {
			slog.Warn("verification locked", "verification_id", v.ID, "attempts", attempts)
			s.audit.Record(ctx, audit.Entry{
				ActorType:  audit.ActorSystem,
				Action:     audit.ActionOTPLocked,
				EntityType: audit.EntityVerification,
				EntityID:   v.ID,
				Payload:    map[string]any{"voterId": voterID, "attempts": attempts},
			})
		}
	}

	return apperr.Unauthorized("Invalid OTP")
}

func (s *Service) expire(ctx context.Context, verificationID string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return advance(ctx, tx, verificationID, models.VerificationIssued, EventExpire, "", time.Time{})
	})
}

// eligibleVoter loads the voter and checks the franchise preconditions
// shared by both steps
func (s *Service) eligibleVoter(ctx context.Context, regNo string) (*models.EligibleVoter, error) {
	regNo = NormalizeRegNo(regNo)
	if regNo == "" {
		return nil, apperr.InvalidState("reg_no is required")
	}

	var v models.EligibleVoter
	var email, phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, reg_no, name, email, phone, status
		FROM eligible_voter WHERE reg_no = $1
	`, regNo).Scan(&v.ID, &v.RegNo, &v.Name, &email, &phone, &v.Status)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("Voter not found")
	}
	if err != nil {
		slog.Error("failed to query voter", "error", err)
		return nil, apperr.Internal("Database error", err)
	}
	if email.Valid {
		v.Email = &email.String
	}
	if phone.Valid {
		v.Phone = &phone.String
	}

	if v.Status != models.VoterEligible {
		return nil, apperr.InvalidState("Voter is not eligible")
	}

	voted, err := ballot.HasConsumed(ctx, s.db, v.ID)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	if voted {
		return nil, apperr.InvalidState("Already voted")
	}

	return &v, nil
}

func (s *Service) ipHash(meta RequestMeta) string {
	if meta.IP == "" {
		return ""
	}
	return auth.HashIP(meta.IP, s.opts.IPSalt)
}

// latestIssued returns the newest verification still in ISSUED state, or nil
func latestIssued(ctx context.Context, q db.Querier, voterID string) (*models.Verification, error) {
	var v models.Verification
	var methods string
	err := q.QueryRowContext(ctx, `
		SELECT id, voter_id, methods, otp_hash, state, attempts, issued_at, expires_at
		FROM verification
		WHERE voter_id = $1 AND state = $2
		ORDER BY issued_at DESC
		LIMIT 1
	`, voterID, models.VerificationIssued).Scan(
		&v.ID, &v.VoterID, &methods, &v.OTPHash, &v.State, &v.Attempts, &v.IssuedAt, &v.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query verification: %w", err)
	}
	if methods != "" {
		v.Methods = strings.Split(methods, ",")
	}
	return &v, nil
}

// advance applies ev to the verification, guarded on its current state so
// two racing writers cannot both move it. stampColumn, if set, records at.
func advance(ctx context.Context, tx *sql.Tx, id string, from models.VerificationState, ev Event, stampColumn string, at time.Time) error {
	to, err := Transition(from, ev)
	if err != nil {
		return err
	}

	var res sql.Result
	switch stampColumn {
	case "":
		res, err = tx.ExecContext(ctx, `
			UPDATE verification SET state = $1 WHERE id = $2 AND state = $3
		`, to, id, from)
	case "verified_at":
		res, err = tx.ExecContext(ctx, `
			UPDATE verification SET state = $1, verified_at = $2 WHERE id = $3 AND state = $4
		`, to, at, id, from)
	case "consumed_at":
		res, err = tx.ExecContext(ctx, `
			UPDATE verification SET state = $1, consumed_at = $2 WHERE id = $3 AND state = $4
		`, to, at, id, from)
	default:
		return fmt.Errorf("unknown verification column %q", stampColumn)
	}
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	if n == 0 {
		return apperr.InvalidState("OTP already used")
	}
	return nil
}

package verify

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/testutil"
)

type fakeNotifier struct {
	mu        sync.Mutex
	jobs      []notify.Job
	submitErr error
}

func (f *fakeNotifier) Reachable(r notify.Recipient) []string {
	names := []string{}
	if r.Email != "" {
		names = append(names, models.ChannelEmail)
	}
	if r.Phone != "" {
		names = append(names, models.ChannelSMS)
	}
	return names
}

func (f *fakeNotifier) Submit(job notify.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		t.Fatal("no delivery was queued")
	}
	return f.jobs[len(f.jobs)-1].Message.Code
}

type fixture struct {
	db       *sql.DB
	clock    *clock.Manual
	notifier *fakeNotifier
	trail    *audit.Trail
	service  *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	c := clock.NewManual(time.Now().UTC().Truncate(time.Second))
	n := &fakeNotifier{}
	trail := audit.NewTrail(conn, c, nil)

	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	opts.IPSalt = "test-ip-salt"

	return &fixture{
		db:       conn,
		clock:    c,
		notifier: n,
		trail:    trail,
		service:  NewService(conn, c, n, ballot.NewIssuer(c, 30*time.Minute), trail, nil, opts),
	}
}

func (f *fixture) actions(t *testing.T) map[string]int {
	t.Helper()
	entries, err := f.trail.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Action]++
	}
	return counts
}

func assertAppErr(t *testing.T, err error, kind apperr.Kind, msg string) *apperr.Error {
	t.Helper()
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	if e.Kind != kind {
		t.Errorf("Kind = %v, want %v (%s)", e.Kind, kind, e.Message)
	}
	if msg != "" && e.Message != msg {
		t.Errorf("Message = %q, want %q", e.Message, msg)
	}
	return e
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

var meta = RequestMeta{IP: "192.0.2.1"}

func TestRequestOTP(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com", Phone: "+15550100"})

	issued, err := f.service.RequestOTP(ctx, " reg001 ", meta)
	if err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	if issued.ExpiresIn != 5*time.Minute {
		t.Errorf("ExpiresIn = %v, want 5m", issued.ExpiresIn)
	}
	if len(issued.SentVia) != 2 {
		t.Errorf("SentVia = %v, want email and sms", issued.SentVia)
	}

	code := f.notifier.lastCode(t)
	if !auth.ValidOTPFormat(code) {
		t.Fatalf("queued code %q is not 6 digits", code)
	}

	var hash, state string
	err = f.db.QueryRow(`SELECT otp_hash, state FROM verification WHERE voter_id = $1`, voterID).Scan(&hash, &state)
	if err != nil {
		t.Fatalf("Failed to load verification: %v", err)
	}
	if hash == code {
		t.Error("code must not be stored in plain text")
	}
	if err := auth.VerifyOTP(hash, code); err != nil {
		t.Errorf("stored hash does not match queued code: %v", err)
	}
	if state != string(models.VerificationIssued) {
		t.Errorf("state = %s, want issued", state)
	}

	if got := f.actions(t)[audit.ActionOTPRequested]; got != 1 {
		t.Errorf("otp_requested entries = %d, want 1", got)
	}
}

func TestRequestOTPCooldown(t *testing.T) {
	f := newFixture(t, Options{Cooldown: 60 * time.Second})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("first RequestOTP failed: %v", err)
	}

	f.clock.Advance(10 * time.Second)
	_, err := f.service.RequestOTP(ctx, "REG001", meta)
	e := assertAppErr(t, err, apperr.KindRateLimited, "")
	if e.RetryAfter != 50 {
		t.Errorf("RetryAfter = %d, want 50", e.RetryAfter)
	}

	f.clock.Advance(51 * time.Second)
	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP after cooldown failed: %v", err)
	}

	issued := testutil.CountRows(t, f.db,
		`SELECT COUNT(*) FROM verification WHERE voter_id = $1 AND state = 'issued'`, voterID)
	if issued != 1 {
		t.Errorf("issued verifications = %d, want 1 (older one superseded)", issued)
	}
	total := testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM verification WHERE voter_id = $1`, voterID)
	if total != 2 {
		t.Errorf("verifications = %d, want 2", total)
	}
}

func TestRequestOTPCooldownSkipsExpiredCode(t *testing.T) {
	f := newFixture(t, Options{TTL: 30 * time.Second, Cooldown: 60 * time.Second})
	testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(context.Background(), "REG001", meta); err != nil {
		t.Fatalf("first RequestOTP failed: %v", err)
	}
	f.clock.Advance(40 * time.Second)
	if _, err := f.service.RequestOTP(context.Background(), "REG001", meta); err != nil {
		t.Errorf("expired code should not hold the cooldown: %v", err)
	}
}

func TestRequestOTPRejections(t *testing.T) {
	f := newFixture(t, Options{})

	voted := testutil.CreateTestVoter(t, f.db, "VOTED", testutil.VoterOpts{Email: "v@example.com"})
	testutil.CreateTestBallot(t, f.db, voted, models.BallotConsumed, time.Now().Add(time.Hour))
	testutil.CreateTestVoter(t, f.db, "BANNED", testutil.VoterOpts{Email: "b@example.com", Status: models.VoterIneligible})
	testutil.CreateTestVoter(t, f.db, "NOCONTACT", testutil.VoterOpts{})

	tests := []struct {
		name  string
		regNo string
		kind  apperr.Kind
		msg   string
	}{
		{"unknown", "NOBODY", apperr.KindNotFound, "Voter not found"},
		{"empty", "  ", apperr.KindInvalidState, "reg_no is required"},
		{"ineligible", "banned", apperr.KindInvalidState, "Voter is not eligible"},
		{"already voted", "VOTED", apperr.KindInvalidState, "Already voted"},
		{"no channel", "NOCONTACT", apperr.KindInvalidState, "No delivery channel available for this voter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RequestOTP(context.Background(), tt.regNo, meta)
			assertAppErr(t, err, tt.kind, tt.msg)
		})
	}

	if n := testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM verification`); n != 0 {
		t.Errorf("verifications = %d, want 0", n)
	}
}

func TestRequestOTPSurvivesDeliveryQueueFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.notifier.submitErr = notify.ErrQueueFull
	testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(context.Background(), "REG001", meta); err != nil {
		t.Fatalf("RequestOTP should succeed when delivery cannot be queued: %v", err)
	}
	if got := f.actions(t)[audit.ActionOTPDeliveryFailed]; got != 1 {
		t.Errorf("otp_delivery_failed entries = %d, want 1", got)
	}
}

func TestConfirmOTP(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	f.clock.Advance(time.Minute)
	b, err := f.service.ConfirmOTP(ctx, "reg001", code, meta)
	if err != nil {
		t.Fatalf("ConfirmOTP failed: %v", err)
	}
	if b.Status != models.BallotActive || b.Token == "" {
		t.Errorf("unexpected ballot %+v", b)
	}

	var state, linked string
	var verifiedAt, consumedAt sql.NullTime
	err = f.db.QueryRow(`
		SELECT state, ballot_token, verified_at, consumed_at FROM verification WHERE voter_id = $1
	`, voterID).Scan(&state, &linked, &verifiedAt, &consumedAt)
	if err != nil {
		t.Fatalf("Failed to load verification: %v", err)
	}
	if state != string(models.VerificationLinked) {
		t.Errorf("state = %s, want linked", state)
	}
	if linked != b.Token {
		t.Error("verification should be linked to the minted token")
	}
	if !verifiedAt.Valid || !consumedAt.Valid {
		t.Error("verified_at and consumed_at should be set")
	}

	// Same code a second time
	_, err = f.service.ConfirmOTP(ctx, "REG001", code, meta)
	assertAppErr(t, err, apperr.KindInvalidState, "No valid OTP found")

	if n := testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM ballot WHERE voter_id = $1`, voterID); n != 1 {
		t.Errorf("ballots = %d, want 1", n)
	}

	counts := f.actions(t)
	if counts[audit.ActionOTPVerified] != 1 || counts[audit.ActionBallotIssued] != 1 {
		t.Errorf("unexpected audit counts %v", counts)
	}
}

// cancelOnRecord cancels the caller's context before each entry is
// recorded, as if the client hung up right after the commit
type cancelOnRecord struct {
	next   audit.Recorder
	cancel context.CancelFunc
}

func (r *cancelOnRecord) Record(ctx context.Context, e audit.Entry) {
	r.cancel()
	r.next.Record(ctx, e)
}

func TestAuditSurvivesClientCancel(t *testing.T) {
	f := newFixture(t, Options{})
	rec := &cancelOnRecord{next: f.trail}
	svc := NewService(f.db, f.clock, f.notifier, ballot.NewIssuer(f.clock, 30*time.Minute), rec, nil,
		Options{BcryptCost: bcrypt.MinCost, IPSalt: "test-ip-salt"})
	testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})
	testutil.CreateTestVoter(t, f.db, "REG002", testutil.VoterOpts{Email: "reg002@example.com"})

	call := func(fn func(ctx context.Context) error) {
		t.Helper()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rec.cancel = cancel
		if err := fn(ctx); err != nil {
			t.Fatal(err)
		}
		if ctx.Err() == nil {
			t.Fatal("recorder should have cancelled the request context")
		}
	}

	call(func(ctx context.Context) error {
		_, err := svc.RequestOTP(ctx, "REG001", meta)
		return err
	})
	code := f.notifier.lastCode(t)

	f.clock.Advance(time.Minute)
	call(func(ctx context.Context) error {
		_, err := svc.ConfirmOTP(ctx, "REG001", code, meta)
		return err
	})

	f.notifier.submitErr = notify.ErrQueueFull
	call(func(ctx context.Context) error {
		_, err := svc.RequestOTP(ctx, "REG002", meta)
		return err
	})

	counts := f.actions(t)
	want := map[string]int{
		audit.ActionOTPRequested:      2,
		audit.ActionOTPVerified:       1,
		audit.ActionBallotIssued:      1,
		audit.ActionOTPDeliveryFailed: 1,
	}
	for action, n := range want {
		if counts[action] != n {
			t.Errorf("%s entries = %d, want %d", action, counts[action], n)
		}
	}
}

func TestConfirmOTPWrongCode(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	for _, bad := range []string{wrongCode(code), "12ab56", ""} {
		_, err := f.service.ConfirmOTP(ctx, "REG001", bad, meta)
		assertAppErr(t, err, apperr.KindUnauthorized, "Invalid OTP")
	}

	attempts := testutil.CountRows(t, f.db, `SELECT attempts FROM verification WHERE voter_id = $1`, voterID)
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if got := f.actions(t)[audit.ActionOTPFailed]; got != 3 {
		t.Errorf("otp_failed entries = %d, want 3", got)
	}

	if _, err := f.service.ConfirmOTP(ctx, "REG001", code, meta); err != nil {
		t.Errorf("correct code after failures should still work: %v", err)
	}
}

func TestConfirmOTPLockout(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	for i := 0; i < 3; i++ {
		_, err := f.service.ConfirmOTP(ctx, "REG001", wrongCode(code), meta)
		assertAppErr(t, err, apperr.KindUnauthorized, "Invalid OTP")
	}

	_, err := f.service.ConfirmOTP(ctx, "REG001", code, meta)
	assertAppErr(t, err, apperr.KindInvalidState, "No valid OTP found")

	expired := testutil.CountRows(t, f.db,
		`SELECT COUNT(*) FROM verification WHERE voter_id = $1 AND state = 'expired'`, voterID)
	if expired != 1 {
		t.Errorf("expired verifications = %d, want 1", expired)
	}
	if got := f.actions(t)[audit.ActionOTPLocked]; got != 1 {
		t.Errorf("otp_locked entries = %d, want 1", got)
	}
}

func TestConfirmOTPExpired(t *testing.T) {
	f := newFixture(t, Options{TTL: 5 * time.Minute})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err := f.service.ConfirmOTP(ctx, "REG001", code, meta)
	assertAppErr(t, err, apperr.KindInvalidState, "OTP has expired")

	expired := testutil.CountRows(t, f.db,
		`SELECT COUNT(*) FROM verification WHERE voter_id = $1 AND state = 'expired'`, voterID)
	if expired != 1 {
		t.Errorf("expired verifications = %d, want 1", expired)
	}
}

func TestConfirmOTPOnlyLatestCodeCounts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	first := f.notifier.lastCode(t)

	f.clock.Advance(61 * time.Second)
	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("second RequestOTP failed: %v", err)
	}
	second := f.notifier.lastCode(t)
	if first == second {
		t.Skip("both codes collided")
	}

	_, err := f.service.ConfirmOTP(ctx, "REG001", first, meta)
	assertAppErr(t, err, apperr.KindUnauthorized, "Invalid OTP")

	if _, err := f.service.ConfirmOTP(ctx, "REG001", second, meta); err != nil {
		t.Errorf("latest code should confirm: %v", err)
	}
}

func TestConfirmOTPAfterVoting(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	testutil.CreateTestBallot(t, f.db, voterID, models.BallotConsumed, time.Now().Add(time.Hour))

	_, err := f.service.ConfirmOTP(ctx, "REG001", code, meta)
	assertAppErr(t, err, apperr.KindInvalidState, "Already voted")
}

func TestConfirmOTPConcurrent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	voterID := testutil.CreateTestVoter(t, f.db, "REG001", testutil.VoterOpts{Email: "reg001@example.com"})

	if _, err := f.service.RequestOTP(ctx, "REG001", meta); err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	code := f.notifier.lastCode(t)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.ConfirmOTP(ctx, "REG001", code, meta)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if apperr.KindOf(err) != apperr.KindInvalidState {
			t.Errorf("loser got %v, want InvalidState", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d confirmations succeeded, want 1", succeeded)
	}
	if n := testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM ballot WHERE voter_id = $1`, voterID); n != 1 {
		t.Errorf("ballots = %d, want 1", n)
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from models.VerificationState
		ev   Event
		want models.VerificationState
		ok   bool
	}{
		{models.VerificationIssued, EventVerify, models.VerificationVerified, true},
		{models.VerificationIssued, EventExpire, models.VerificationExpired, true},
		{models.VerificationVerified, EventLink, models.VerificationLinked, true},
		{models.VerificationIssued, EventLink, models.VerificationIssued, false},
		{models.VerificationVerified, EventVerify, models.VerificationVerified, false},
		{models.VerificationVerified, EventExpire, models.VerificationVerified, false},
		{models.VerificationExpired, EventVerify, models.VerificationExpired, false},
		{models.VerificationLinked, EventExpire, models.VerificationLinked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.ev), func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			if tt.ok != (err == nil) {
				t.Fatalf("Transition() error = %v, want ok=%v", err, tt.ok)
			}
			if !tt.ok && !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("error should wrap ErrIllegalTransition: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transition() = %s, want %s", got, tt.want)
			}
		})
	}

	if !Terminal(models.VerificationExpired) || !Terminal(models.VerificationLinked) {
		t.Error("EXPIRED and LINKED are terminal")
	}
	if Terminal(models.VerificationIssued) || Terminal(models.VerificationVerified) {
		t.Error("ISSUED and VERIFIED are not terminal")
	}
}

func TestEffective(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := models.Verification{State: models.VerificationIssued, ExpiresAt: now.Add(time.Second)}

	if got := Effective(v, now); got != models.VerificationIssued {
		t.Errorf("before expiry: %s", got)
	}
	if got := Effective(v, now.Add(time.Second)); got != models.VerificationExpired {
		t.Errorf("at expiry: %s", got)
	}

	v.State = models.VerificationLinked
	if got := Effective(v, now.Add(time.Hour)); got != models.VerificationLinked {
		t.Errorf("linked verification should stay linked: %s", got)
	}
}

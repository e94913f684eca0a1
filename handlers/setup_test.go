// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/testutil"
	"github.com/danielhkuo/ballotbox/verify"
	"github.com/danielhkuo/ballotbox/window"
)

// inbox is an email channel that keeps the last code per voter
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) Name() string { return models.ChannelEmail }

func (i *inbox) CanReach(r notify.Recipient) bool { return r.Email != "" }

func (i *inbox) Send(_ context.Context, r notify.Recipient, m notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[r.VoterID] = m.Code
	return nil
}

// waitCode blocks until a code for voterID has been delivered
func (i *inbox) waitCode(t *testing.T, voterID string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		i.mu.Lock()
		code, ok := i.codes[voterID]
		i.mu.Unlock()
		if ok {
			return code
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no code delivered to voter %s", voterID)
	return ""
}

type testEnv struct {
	db      *sql.DB
	clock   *clock.Manual
	inbox   *inbox
	verify  *VerifyHandler
	vote    *VoteHandler
	results *ResultsHandler
	now     time.Time
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	now := time.Now().UTC().Truncate(time.Second)
	c := clock.NewManual(now)
	trail := audit.NewTrail(conn, c, nil)

	box := &inbox{codes: map[string]string{}}
	dispatcher := notify.NewDispatcher(notify.Config{Workers: 1}, nil, box)
	dispatcher.OnResult(notify.AuditResults(trail, nil))
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	issuer := ballot.NewIssuer(c, cfg.BallotTTL)
	verifier := verify.NewService(conn, c, dispatcher, issuer, trail, nil, verify.Options{
		TTL:         cfg.OTPTTL,
		Cooldown:    cfg.OTPCooldown,
		MaxAttempts: cfg.OTPMaxAttempts,
		BcryptCost:  cfg.BcryptCost,
		IPSalt:      cfg.IPHashSalt,
	})
	ballots := ballot.NewService(conn, window.NewResolver(c), trail, nil)

	return &testEnv{
		db:      conn,
		clock:   c,
		inbox:   box,
		verify:  NewVerifyHandler(verifier),
		vote:    NewVoteHandler(ballots),
		results: NewResultsHandler(ballots),
		now:     now,
	}
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// obtainBallot walks a voter through request and confirm and returns the token
func (e *testEnv) obtainBallot(t *testing.T, regNo, voterID string) string {
	t.Helper()

	w := serve(e.verify.RequestOTP, testutil.MakeRequest("POST", "/verify/request-otp",
		models.RequestOTPRequest{RegNo: regNo}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	code := e.inbox.waitCode(t, voterID)

	w = serve(e.verify.Confirm, testutil.MakeRequest("POST", "/verify/confirm",
		models.ConfirmOTPRequest{RegNo: regNo, OTP: code}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ConfirmOTPResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.BallotToken
}

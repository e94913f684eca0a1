// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/testutil"
)

// TestConcurrentVoters casts many ballots at once and expects every one to land
func TestConcurrentVoters(t *testing.T) {
	env := setupEnv(t)
	p1 := testutil.CreateTestPosition(t, env.db, "President", env.now.Add(-time.Hour), env.now.Add(time.Hour))
	c1 := testutil.CreateTestCandidate(t, env.db, p1, "Alice", models.CandidateApproved)

	const numVoters = 20
	tokens := make([]string, numVoters)
	for i := range tokens {
		voterID := testutil.CreateTestVoter(t, env.db, fmt.Sprintf("CV%03d", i), testutil.VoterOpts{})
		tokens[i] = testutil.CreateTestBallot(t, env.db, voterID, models.BallotActive, env.now.Add(time.Hour))
	}

	var wg sync.WaitGroup
	var ok atomic.Int32
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			w := serve(env.vote.Cast, testutil.MakeRequest("POST", "/vote", models.CastVoteRequest{
				Token: token,
				Votes: []models.Selection{{PositionID: p1, CandidateID: c1}},
			}, nil))
			if w.Code == http.StatusOK {
				ok.Add(1)
			} else {
				t.Errorf("cast failed: %d %s", w.Code, w.Body.String())
			}
		}(token)
	}
	wg.Wait()

	if ok.Load() != numVoters {
		t.Errorf("Expected %d successful casts, got %d", numVoters, ok.Load())
	}
	if n := testutil.CountRows(t, env.db, `SELECT COUNT(*) FROM vote WHERE position_id = $1`, p1); n != numVoters {
		t.Errorf("Expected %d votes, got %d", numVoters, n)
	}
}

// TestConcurrentReplay races one token against itself
func TestConcurrentReplay(t *testing.T) {
	env := setupEnv(t)
	p1 := testutil.CreateTestPosition(t, env.db, "President", env.now.Add(-time.Hour), env.now.Add(time.Hour))
	c1 := testutil.CreateTestCandidate(t, env.db, p1, "Alice", models.CandidateApproved)
	voterID := testutil.CreateTestVoter(t, env.db, "CV001", testutil.VoterOpts{})
	token := testutil.CreateTestBallot(t, env.db, voterID, models.BallotActive, env.now.Add(time.Hour))

	const attempts = 10
	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := serve(env.vote.Cast, testutil.MakeRequest("POST", "/vote", models.CastVoteRequest{
				Token: token,
				Votes: []models.Selection{{PositionID: p1, CandidateID: c1}},
			}, nil))
			switch w.Code {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusBadRequest:
				rejected.Add(1)
			default:
				t.Errorf("unexpected status %d: %s", w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Errorf("Expected exactly 1 successful cast, got %d", ok.Load())
	}
	if rejected.Load() != attempts-1 {
		t.Errorf("Expected %d rejections, got %d", attempts-1, rejected.Load())
	}
	if n := testutil.CountRows(t, env.db, `SELECT COUNT(*) FROM vote`); n != 1 {
		t.Errorf("Expected 1 vote row, got %d", n)
	}
}

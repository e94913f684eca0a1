// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/ballotbox/auth"
	"github.com/danielhkuo/ballotbox/cliparse"
	"github.com/danielhkuo/ballotbox/db"
	"github.com/danielhkuo/ballotbox/models"
	"golang.org/x/crypto/bcrypt"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, "file:test_"+auth.NewRowID()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = "file::memory:"
	cfg.DatabaseType = db.TypeSQLite
	cfg.IPHashSalt = "test-ip-salt"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.DevDelivery = true
	return cfg
}

// VoterOpts sets optional fields on a test voter
type VoterOpts struct {
	Email  string
	Phone  string
	Status string
}

// CreateTestVoter inserts an eligible voter and returns its ID
func CreateTestVoter(t *testing.T, conn *sql.DB, regNo string, opts VoterOpts) string {
	t.Helper()

	status := opts.Status
	if status == "" {
		status = models.VoterEligible
	}

	id := auth.NewRowID()
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO eligible_voter (id, reg_no, name, email, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, strings.ToUpper(regNo), "Voter "+regNo, nullString(opts.Email), nullString(opts.Phone), status, now, now)
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return id
}

// CreateTestPosition inserts a position with the given voting window
func CreateTestPosition(t *testing.T, conn *sql.DB, name string, opens, closes time.Time) string {
	t.Helper()

	id := auth.NewRowID()
	_, err := conn.Exec(`
		INSERT INTO position (id, name, seats, voting_opens, voting_closes, created_at)
		VALUES ($1, $2, 1, $3, $4, $5)
	`, id, name, opens.UTC(), closes.UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test position: %v", err)
	}

	return id
}

// CreateTestCandidate inserts a candidate with the given status
func CreateTestCandidate(t *testing.T, conn *sql.DB, positionID, name, status string) string {
	t.Helper()

	id := auth.NewRowID()
	_, err := conn.Exec(`
		INSERT INTO candidate (id, position_id, user_id, name, program, status, created_at)
		VALUES ($1, $2, $3, $4, '', $5, $6)
	`, id, positionID, auth.NewRowID(), name, status, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return id
}

// CreateTestBallot inserts a ballot for a voter and returns its token
func CreateTestBallot(t *testing.T, conn *sql.DB, voterID string, status models.BallotStatus, expiresAt time.Time) string {
	t.Helper()

	token, _ := auth.GenerateBallotToken()
	now := time.Now().UTC()
	var consumedAt *time.Time
	if status == models.BallotConsumed {
		consumedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO ballot (id, voter_id, token, status, issued_at, expires_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, auth.NewRowID(), voterID, token, string(status), now, expiresAt.UTC(), consumedAt)
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	return token
}

// CountRows runs a COUNT(*) query and returns the result
func CountRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OTPLength is the number of decimal digits in a one-time code
const OTPLength = 6

var (
	ErrOTPMismatch     = errors.New("otp does not match")
	ErrInvalidOTPInput = errors.New("otp must be 6 digits")
)

// NewRowID returns a UUID string for primary keys
func NewRowID() string {
	return uuid.NewString()
}

// GenerateOTP returns a uniformly distributed 6-digit numeric code.
// Leading zeros are kept so every code has exactly OTPLength digits.
func GenerateOTP() (string, error) {
	upper := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashOTP returns the bcrypt hash stored in place of the code
func HashOTP(code string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash otp: %w", err)
	}
	return string(hash), nil
}

// VerifyOTP compares a submitted code against the stored hash
func VerifyOTP(hash, code string) error {
	if !ValidOTPFormat(code) {
		return ErrInvalidOTPInput
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrOTPMismatch
	}
	return err
}

// ValidOTPFormat reports whether s looks like a code we could have issued
func ValidOTPFormat(s string) bool {
	if len(s) != OTPLength {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// GenerateBallotToken creates the opaque credential handed to a verified voter.
// 32 bytes = 256 bits of entropy, never derived from voter identity.
func GenerateBallotToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate ballot token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for correlating audit events
	return hex.EncodeToString(sum[:8])
}

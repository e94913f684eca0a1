// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential generation and hashing utilities.

# One-Time Codes

Codes are 6 random decimal digits drawn from crypto/rand:

	code, err := auth.GenerateOTP()
	hash, err := auth.HashOTP(code, bcrypt.DefaultCost)
	err = auth.VerifyOTP(hash, submitted) // ErrOTPMismatch on a wrong code

Only the bcrypt hash is persisted. VerifyOTP rejects anything that is not a
6-digit string without touching the hash.

# Ballot Tokens

Ballot tokens are random 32-byte (256-bit) secrets:

	token, err := auth.GenerateBallotToken()

Tokens are URL-safe base64 encoded and are the only credential accepted when
casting votes. They carry no information about the voter.

# ID Generation

	id := auth.NewRowID() // UUID primary keys

# IP Hashing

For privacy-preserving audit correlation:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth

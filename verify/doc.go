// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package verify turns a registration number into a ballot through a one-time
code.

Each OTP issuance is a verification row with an explicit state:

	ISSUED --verify--> VERIFIED --link--> LINKED
	   |
	   +----expire---> EXPIRED

Transition is the single authority over these moves. RequestOTP enforces a
per-voter cooldown, supersedes older codes and hands delivery to a
Notifier without waiting for it. ConfirmOTP checks the code against its
bcrypt hash, counts failures toward a lockout, and on success advances the
verification and mints the ballot in one transaction.
*/
package verify

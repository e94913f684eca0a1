// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ballot issues ballot tokens and records votes against them.

# Anonymity boundary

Issuer.Issue is the only write that sees a voter and a ballot at once. After
that the token is the sole credential: Contents and Cast look a ballot up by
token, and Vote rows carry no voter reference. Results counts votes without
touching the ballot table.

# Casting

Cast runs entirely inside one transaction and rejects, in this order:

 1. an unknown token (NotFound)
 2. a ballot that is not ACTIVE, or has passed its expiry (InvalidState)
 3. selections for positions whose voting window is closed at commit time;
    the error details list each closed position with its window
 4. candidates that are unknown, not APPROVED, or listed under a different
    position
 5. two selections for the same position
 6. positions this ballot already has a vote for

It then inserts the votes and flips the ballot to CONSUMED with a guarded
UPDATE, so of two concurrent submissions exactly one commits.
*/
package ballot

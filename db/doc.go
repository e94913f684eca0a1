// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation and transaction helpers.

# Connecting

	conn, err := db.Open(ctx, db.TypePostgres, "postgres://...")
	conn, err := db.Open(ctx, db.TypeSQLite, "file:ballotbox.db")

SQLite connections are limited to one open connection and have foreign keys
enabled.

# Schema Creation

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - eligible_voter: The franchise, unique reg_no
  - verification: OTP issuances (hash only)
  - ballot: Single-use tokens, ACTIVE or CONSUMED
  - position: Seats with nomination and voting windows
  - candidate: Nominations, unique per (position, user)
  - vote: One row per (ballot, position)
  - audit_log: Append-only security events

# Relationships

	eligible_voter 1──* verification
	eligible_voter 1──* ballot
	position 1──* candidate
	ballot 1──* vote
	position 1──* vote
	candidate 1──* vote

Foreign keys do not cascade, so a position with candidates or votes cannot
be deleted.

# Invariants Held By Constraints

  - vote.(ballot_id, position_id) unique
  - at most one consumed ballot per voter (partial unique index)
  - candidate.(position_id, user_id) unique

# Transactions

	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		...
	})

Any non-nil error from the callback rolls the transaction back.
*/
package db

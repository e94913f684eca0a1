// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ballotbox API server.

ballotbox runs a secret-ballot election for a registered electorate. A voter
proves who they are with a one-time code sent to their email or phone, and
receives an anonymous ballot token in exchange. Votes are stored against the
ballot only, so the link between a voter and their choices is never written.

# Commands

	ballotbox [serve]    Run the HTTP API (the default)
	ballotbox migrate    Create the schema and exit
	ballotbox seed FILE  Upsert positions, candidates and voters from YAML

# Configuration

Settings are read from defaults, then a .env file in the working directory,
then the environment, then flags:

	DATABASE_URL=file:ballotbox.db IP_HASH_SALT=... ballotbox --dev-delivery

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - IP_HASH_SALT (--ip-salt): Secret mixed into audited client IPs
  - One of SMTP_HOST, SMS_GATEWAY_URL or DEV_DELIVERY

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - OTP_TTL, OTP_COOLDOWN, OTP_MAX_ATTEMPTS, BALLOT_TTL
  - DELIVERY_WORKERS, DELIVERY_QUEUE_SIZE, DELIVERY_TIMEOUT
  - VERIFY_RATE_LIMIT, VERIFY_RATE_BURST, SHUTDOWN_TIMEOUT
  - TRUST_PROXY_HEADERS (--trust-proxy): take client IPs from X-Forwarded-For

Pass --debug for debug-level JSON logs with source locations.

# Architecture

  - verify: OTP state machine, request and confirm
  - ballot: Token issuance, ballot contents, vote casting, results
  - window: Voting and nomination window checks
  - notify: Background OTP delivery over email, SMS or the log
  - audit: Append-only audit trail
  - metrics: Prometheus instruments, served on /metrics
  - handlers, router, middleware: HTTP surface
  - seed: YAML election definitions
  - db, models, auth, apperr, clock, cliparse: Supporting packages

See package documentation for each component.
*/
package main

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a validated Config:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are resolved in order of increasing precedence:

 1. Defaults()
 2. a .env file, via LoadDotEnv (never overrides variables already set)
 3. environment variables, via FromEnv
 4. command-line flags, via AddFlags (the binary registers them on its
    cobra root's persistent flags)

# Environment Variables

	PORT                 -p, --port           (default 3318)
	DATABASE_URL         -d, --database-url   (required)
	DATABASE_TYPE        -t, --database-type  sqlite or postgres
	IP_HASH_SALT         --ip-salt            (required)
	OTP_TTL              --otp-ttl            (default 5m)
	OTP_COOLDOWN         --otp-cooldown       (default 60s)
	OTP_MAX_ATTEMPTS     --otp-max-attempts   (default 5)
	BALLOT_TTL           --ballot-ttl         (default 30m)
	BCRYPT_COST
	SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM
	SMS_GATEWAY_URL, SMS_GATEWAY_TOKEN
	DEV_DELIVERY         --dev-delivery
	DELIVERY_WORKERS, DELIVERY_QUEUE_SIZE, DELIVERY_TIMEOUT
	VERIFY_RATE_LIMIT, VERIFY_RATE_BURST
	TRUST_PROXY_HEADERS  --trust-proxy        (default false)
	SHUTDOWN_TIMEOUT     --shutdown-timeout

Durations use Go syntax ("90s", "5m").

# Validation

Validate rejects a missing database URL or salt, an unknown database type,
non-positive durations, and a configuration with no way to deliver codes.
ValidateDatabase checks only the database settings and is what the migrate
and seed commands run.
*/
package cliparse

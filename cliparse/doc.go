// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3419)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: "postgres" (default) or "sqlite"
  - SessionSalt: Secret for session token HMAC (required)
  - ProgramAPI: Program registry base URL
  - HTTPTimeout: Outbound HTTP timeout in seconds (default: 10)

# CLI Flags

	-p              Server port
	-d              Database URL
	-t              Database type
	-api-base       Program API base URL
	-http-timeout   Outbound HTTP timeout (seconds)
	-session-salt   Session token salt

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	PROGRAM_API_BASE → -api-base
	HTTP_TIMEOUT     → -http-timeout
	SESSION_SALT     → -session-salt

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - SESSION_SALT must be provided
  - DATABASE_TYPE, when set, must be sqlite or postgres

# Example

	// In main.go
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	// ...
	mux := router.NewRouter(db, cfg)
*/
package cliparse

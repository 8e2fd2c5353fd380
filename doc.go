// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Kascribe API server.

Kascribe runs judged programming contests: admins define weighted scoring
criteria, curate an entry pool from a program registry, and assemble a judge
roster; judges score every entry after the contest ends, and the leaderboard
stays sealed until judging is complete.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... SESSION_SALT=... go run main.go

Or with flags:

	go run main.go -p 3419 -d "postgres://..." -session-salt "..."

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string
  - SESSION_SALT (-session-salt): secret for session token HMAC

Optional settings:

  - PORT (-p): server port (default: 3419)
  - DATABASE_TYPE (-t): sqlite or postgres (default: postgres)
  - PROGRAM_API_BASE (-api-base): program registry root URL
  - HTTP_TIMEOUT (-http-timeout): outbound registry timeout in seconds

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (users, contests, entries, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types and derived contest state
  - auth: ID generation and session tokens
  - khan: Program registry client (existence checks, spin-off listing)
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Kascribe API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, kc)

# Endpoints

Health:

	GET /health

Accounts and sessions (admin, requires X-Session-Token):

	POST /users             - Create user (first user bootstraps as admin)
	GET  /users             - List active users
	PUT  /users/{id}/level  - Change privilege level (0 removes the account)
	GET  /me                - Resolve the calling session
	POST /sessions/{id}     - Mint a session token for a user

Contest management (admin):

	POST   /contests                - Create contest with criteria, brackets, judges
	GET    /contests                - List contests visible to the caller
	GET    /contests/{id}           - Full contest with viewer-specific flags
	DELETE /contests/{id}           - Delete contest and everything under it
	PUT    /contests/{id}/info      - Update name and description
	PUT    /contests/{id}/end-date  - Move the end date
	PUT    /contests/{id}/criteria  - Replace criteria, voiding all cast votes

Brackets and judge roster (admin):

	POST   /contests/{id}/brackets             - Add bracket
	DELETE /contests/{id}/brackets/{bracketId} - Remove bracket, unassigning entries
	POST   /contests/{id}/judges/{userId}      - Add judge
	DELETE /contests/{id}/judges/{userId}      - Remove judge with their votes

Entries:

	GET    /contests/{id}/entries                    - List entries (any user)
	POST   /contests/{id}/entries                    - Add entry (admin)
	POST   /contests/{id}/spinoffs                   - Import spin-offs from the program registry (admin)
	GET    /contests/{id}/entries/random             - Random unjudged entry (judges)
	GET    /contests/{id}/entries/{entryId}          - Single entry
	DELETE /contests/{id}/entries/{entryId}          - Delete entry (admin)
	PUT    /contests/{id}/entries/{entryId}/bracket  - Assign or clear bracket (admin)

Voting and results:

	POST /contests/{id}/entries/{entryId}/votes - Cast a vote (judges, at most once)
	GET  /contests/{id}/results                 - Leaderboard (sealed until fully judged)

# Handler Initialization

The router creates handler instances with dependency injection:

	userHandler := handlers.NewUserHandler(db, cfg)
	contestHandler := handlers.NewContestHandler(db, cfg, kc)
	entryHandler := handlers.NewEntryHandler(db, cfg, kc)

All handlers receive the database connection and configuration; the contest
and entry handlers also receive the program registry client.
*/
package router

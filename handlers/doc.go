// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Kascribe API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - UserHandler: Accounts, privilege levels, session minting
  - ContestHandler: Contest lifecycle (create, update, criteria, delete)
  - BracketHandler: Bracket management within a contest
  - JudgeHandler: Judge roster membership
  - EntryHandler: Entry pool, spin-off import, random pick for judging
  - VoteHandler: Vote casting
  - ResultsHandler: Leaderboard retrieval

Handlers are created via constructor functions that accept *sql.DB and Config;
the contest and entry handlers additionally take the program registry client:

	contestHandler := handlers.NewContestHandler(db, cfg, kc)

All authenticated operations require the X-Session-Token header.

# Contest Lifecycle

A contest has no stored status; its state is derived from the clock and the
vote ledger on every read:

	running       → now is before end_date, votes are rejected
	judging       → past end_date with unjudged entries, judges may vote
	fully judged  → every entry has a vote from every judge, results open

Criteria weights must sum to exactly 100. Replacing criteria voids every
vote already cast, since old scores are meaningless against new criteria.

# Voting Flow

Judges pull work and cast votes:

	GET  /contests/{id}/entries/random          → RandomEntry (unjudged pick)
	POST /contests/{id}/entries/{entryId}/votes → CastVote

A vote carries exactly one score per criterion plus optional feedback, and
lands atomically. A judge votes on an entry at most once; duplicates are
rejected with 409 and never overwrite the original.

# Results

The leaderboard ranks entries by the average of per-judge weighted totals:

	GET /contests/{id}/results?bracket={bracketId}

Results stay sealed (403 for judges) until the contest is fully judged;
admins can always see them. Entries missing any judge's vote are excluded
rather than averaged over fewer judges.
*/
package handlers

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - users: Accounts with privilege levels (0 marks a removed account)
  - contests: Contest metadata, one per registry program
  - criteria: Weighted scoring dimensions per contest
  - brackets: Grouping labels per contest
  - entries: Contest entries, unique per (contest, program)
  - judges: Roster membership, primary key (contest, user)
  - scores: One score per (entry, criterion, judge)
  - feedback: One row per (entry, judge), the at-most-once vote guard

# Relationships

	contest 1──* criteria
	contest 1──* brackets
	contest 1──* entries
	contest *──* users (via judges)
	entry 1──* scores
	entry 1──* feedback

All contest-rooted foreign keys use ON DELETE CASCADE; entries keep their
row when their bracket is deleted (ON DELETE SET NULL).

# Indexes

Performance indexes on:

  - users.kaid (unique)
  - contests.program_id (unique)
  - contests.created_at
  - criteria.contest_id, brackets.contest_id, entries.contest_id
  - entries.(contest_id, program_id) (unique)
  - entries.bracket_id
  - judges.user_id, scores.user_id, feedback.user_id
*/
package db

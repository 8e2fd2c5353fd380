// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateUserRequest: name, kaid, level
  - CreateContestRequest: name, program_id, end_date, criteria, brackets, judges
  - UpdateContestInfoRequest, UpdateEndDateRequest
  - CriterionInput: name, description, weight
  - AddEntryRequest: program_id
  - SetEntryBracketRequest: bracket_id (null clears)
  - CastVoteRequest: votes (one per criterion), feedback

# Response Types

Types for JSON responses:

  - CreateUserResponse: user, session_token
  - AddEntryResponse: entry, is_new
  - ImportSpinOffsResponse: imported, skipped
  - RandomEntryResponse: entry, judging_finished
  - CastVoteResponse: message
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - User: account with privilege level
  - Contest: full aggregate with criteria, brackets, judges and counts
  - ContestBrief: listing shape without child collections
  - ContestView: Contest plus viewer-specific derived flags
  - Criterion: weighted scoring dimension
  - Bracket: grouping label within a contest
  - Entry: contest entry with optional bracket
  - EntryResult: one leaderboard row

# Derived State

Contest state is never stored; it is computed from the clock and the vote
ledger via methods on Contest:

	c.IsJudge(user)
	c.IsJudgeable(viewer, now)
	c.ResultsDisclosed(viewer, now)

# Constants

Privilege levels:

	LevelRemoved UserLevel = 0
	LevelMember  UserLevel = 1
	LevelAdmin   UserLevel = 2

Input limits:

	MaxNameLen        = 255
	MaxDescriptionLen = 500
	MaxFeedbackLen    = 5000
*/
package models

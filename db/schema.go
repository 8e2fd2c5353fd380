// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Users
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    kaid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    level INTEGER NOT NULL DEFAULT 1 CHECK (level IN (0, 1, 2)),
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_kaid ON users(kaid);

-- Contests
CREATE TABLE IF NOT EXISTS contests (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    program_id BIGINT NOT NULL UNIQUE,
    end_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_contests_created_at ON contests(created_at);

-- Criteria
CREATE TABLE IF NOT EXISTS criteria (
    id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    weight INTEGER NOT NULL CHECK (weight > 0)
);

CREATE INDEX IF NOT EXISTS idx_criteria_contest_id ON criteria(contest_id);

-- Brackets
CREATE TABLE IF NOT EXISTS brackets (
    id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
    name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_brackets_contest_id ON brackets(contest_id);

-- Entries
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
    program_id BIGINT NOT NULL,
    bracket_id TEXT REFERENCES brackets(id) ON DELETE SET NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    UNIQUE (contest_id, program_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_contest_id ON entries(contest_id);
CREATE INDEX IF NOT EXISTS idx_entries_bracket_id ON entries(bracket_id);

-- Judges
CREATE TABLE IF NOT EXISTS judges (
    contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    PRIMARY KEY (contest_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_judges_user_id ON judges(user_id);

-- Scores: one row per (judge, entry, criterion)
CREATE TABLE IF NOT EXISTS scores (
    entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
    criterion_id TEXT NOT NULL REFERENCES criteria(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    score INTEGER NOT NULL CHECK (score >= 0 AND score <= 100),
    cast_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (entry_id, criterion_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_scores_user_id ON scores(user_id);

-- Feedback: exactly one row per (judge, entry). The UNIQUE pair is the
-- real at-most-once vote enforcement; the application check is a fast path.
CREATE TABLE IF NOT EXISTS feedback (
    entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    comment TEXT NOT NULL,
    cast_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (entry_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_feedback_user_id ON feedback(user_id);
`

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

// sessionUser resolves the X-Session-Token header to a user row. On any
// failure it writes the error response and returns ok=false. Removed users
// authenticate but are rejected.
func sessionUser(db *sql.DB, cfg cliparse.Config, w http.ResponseWriter, r *http.Request) (models.User, bool) {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Session token required")
		return models.User{}, false
	}

	userID, err := auth.ParseSessionToken(token, cfg.SessionSalt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session token")
		return models.User{}, false
	}

	var user models.User
	err = db.QueryRow(`
		SELECT id, kaid, name, level FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.KAID, &user.Name, &user.Level)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session token")
		return models.User{}, false
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.User{}, false
	}

	if user.Level == models.LevelRemoved {
		middleware.ErrorResponse(w, http.StatusForbidden, "Account removed")
		return models.User{}, false
	}

	return user, true
}

// requireAdmin writes a 403 and returns false unless the user is an admin.
func requireAdmin(w http.ResponseWriter, user models.User) bool {
	if user.Level < models.LevelAdmin {
		middleware.ErrorResponse(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

// loadContest assembles the full contest aggregate: the row itself plus
// criteria, brackets, judges, and the two entry counts. Counts are
// recomputed on every load; nothing status-like is stored.
func loadContest(db *sql.DB, contestID string) (models.Contest, error) {
	var c models.Contest
	err := db.QueryRow(`
		SELECT id, name, description, program_id, end_date, created_at
		FROM contests
		WHERE id = $1
	`, contestID).Scan(&c.ID, &c.Name, &c.Description, &c.ProgramID, &c.EndDate, &c.CreatedAt)
	if err != nil {
		return models.Contest{}, err
	}

	rows, err := db.Query(`
		SELECT id, name, description, weight
		FROM criteria
		WHERE contest_id = $1
		ORDER BY id
	`, contestID)
	if err != nil {
		return models.Contest{}, err
	}
	defer rows.Close()

	c.Criteria = []models.Criterion{}
	for rows.Next() {
		var crit models.Criterion
		if err := rows.Scan(&crit.ID, &crit.Name, &crit.Description, &crit.Weight); err != nil {
			return models.Contest{}, err
		}
		c.Criteria = append(c.Criteria, crit)
	}
	if err := rows.Err(); err != nil {
		return models.Contest{}, err
	}

	bRows, err := db.Query(`
		SELECT id, name FROM brackets WHERE contest_id = $1 ORDER BY id
	`, contestID)
	if err != nil {
		return models.Contest{}, err
	}
	defer bRows.Close()

	c.Brackets = []models.Bracket{}
	for bRows.Next() {
		var b models.Bracket
		if err := bRows.Scan(&b.ID, &b.Name); err != nil {
			return models.Contest{}, err
		}
		c.Brackets = append(c.Brackets, b)
	}
	if err := bRows.Err(); err != nil {
		return models.Contest{}, err
	}

	jRows, err := db.Query(`
		SELECT u.id, u.kaid, u.name, u.level
		FROM judges j
		JOIN users u ON u.id = j.user_id
		WHERE j.contest_id = $1
		ORDER BY u.id
	`, contestID)
	if err != nil {
		return models.Contest{}, err
	}
	defer jRows.Close()

	c.Judges = []models.User{}
	for jRows.Next() {
		var u models.User
		if err := jRows.Scan(&u.ID, &u.KAID, &u.Name, &u.Level); err != nil {
			return models.Contest{}, err
		}
		c.Judges = append(c.Judges, u)
	}
	if err := jRows.Err(); err != nil {
		return models.Contest{}, err
	}

	err = db.QueryRow(`
		SELECT COUNT(*) FROM entries WHERE contest_id = $1
	`, contestID).Scan(&c.EntryCount)
	if err != nil {
		return models.Contest{}, err
	}

	c.JudgedEntryCount, err = judgedEntryCount(db, contestID)
	if err != nil {
		return models.Contest{}, err
	}

	return c, nil
}

// judgedEntryCount counts entries on which every current judge has voted.
// With an empty roster the join yields no groups, so a contest without
// judges reports zero judged entries.
func judgedEntryCount(db *sql.DB, contestID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT e.id
			FROM entries e
			JOIN judges j ON j.contest_id = e.contest_id
			LEFT JOIN feedback f ON f.entry_id = e.id AND f.user_id = j.user_id
			WHERE e.contest_id = $1
			GROUP BY e.id
			HAVING COUNT(*) = COUNT(f.user_id)
		) complete
	`, contestID).Scan(&count)
	return count, err
}

// entryCounts returns the entry count and judged-entry count for each of
// the given contests in two grouped queries. Contests absent from a map
// have a count of zero.
func entryCounts(db *sql.DB, contestIDs []string) (entries, judged map[string]int, err error) {
	entries = make(map[string]int, len(contestIDs))
	judged = make(map[string]int, len(contestIDs))
	if len(contestIDs) == 0 {
		return entries, judged, nil
	}

	placeholders := make([]string, len(contestIDs))
	args := make([]interface{}, len(contestIDs))
	for i, id := range contestIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ", ")

	rows, err := db.Query(`
		SELECT contest_id, COUNT(*)
		FROM entries
		WHERE contest_id IN (`+in+`)
		GROUP BY contest_id
	`, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, nil, err
		}
		entries[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	jRows, err := db.Query(`
		SELECT contest_id, COUNT(*)
		FROM (
			SELECT e.contest_id, e.id
			FROM entries e
			JOIN judges j ON j.contest_id = e.contest_id
			LEFT JOIN feedback f ON f.entry_id = e.id AND f.user_id = j.user_id
			WHERE e.contest_id IN (`+in+`)
			GROUP BY e.contest_id, e.id
			HAVING COUNT(*) = COUNT(f.user_id)
		) complete
		GROUP BY contest_id
	`, args...)
	if err != nil {
		return nil, nil, err
	}
	defer jRows.Close()

	for jRows.Next() {
		var id string
		var n int
		if err := jRows.Scan(&id, &n); err != nil {
			return nil, nil, err
		}
		judged[id] = n
	}
	if err := jRows.Err(); err != nil {
		return nil, nil, err
	}

	return entries, judged, nil
}

// trimTo trims surrounding whitespace then truncates to max characters.
// Only bracket names truncate; every other text field rejects over-length
// input instead (see tooLong).
func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}

// tooLong reports whether s exceeds max characters. Limits count
// characters, not bytes, so multi-byte input is never split.
func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// isUniqueViolation matches the duplicate-key errors of both supported
// drivers. Neither exposes a typed error worth importing for this.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// parsePagination reads ?page and ?limit with the given default limit.
// Page is zero-based.
func parsePagination(r *http.Request, defaultLimit int) (page, limit int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	return page, limit
}

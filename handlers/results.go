// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type ResultsHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewResultsHandler(db *sql.DB, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{db: db, cfg: cfg}
}

// GetResults handles GET /contests/{id}/results
// The leaderboard averages each entry's complete per-judge weighted totals
// (sum of score times weight over 100). An entry missing any current
// judge's vote is excluded entirely rather than averaged over fewer
// judges. Sealed until resultsDisclosed for the viewer.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}

	contestID := r.PathValue("id")
	if contestID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id is required")
		return
	}

	contest, err := loadContest(h.db, contestID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}
	if err != nil {
		slog.Error("failed to load contest", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !contest.ResultsDisclosed(user, time.Now()) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are not disclosed yet")
		return
	}

	page, limit := parsePagination(r, 50)
	bracketID := r.URL.Query().Get("bracket")

	// Inner query: one row per (entry, judge) with that judge's weighted
	// total, NULL when the judge has not scored the entry. Outer query:
	// keep entries where no judge is NULL, average, order, page.
	query := `
		SELECT entry_id, program_id, AVG(score) AS average
		FROM (
			SELECT e.id AS entry_id, e.program_id, j.user_id,
			       SUM(s.score * c.weight) / 100.0 AS score
			FROM judges j
			JOIN entries e ON e.contest_id = j.contest_id
			LEFT JOIN scores s ON s.entry_id = e.id AND s.user_id = j.user_id
			LEFT JOIN criteria c ON c.id = s.criterion_id
			WHERE e.contest_id = $1`
	args := []interface{}{contestID}
	if bracketID != "" {
		query += ` AND e.bracket_id = $2`
		args = append(args, bracketID)
	}
	query += `
			GROUP BY e.id, e.program_id, j.user_id
		) totals
		GROUP BY entry_id, program_id
		HAVING COUNT(*) = COUNT(score)
		ORDER BY average DESC, entry_id ASC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, page*limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		slog.Error("failed to query results", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	results := []models.EntryResult{}
	for rows.Next() {
		var res models.EntryResult
		if err := rows.Scan(&res.EntryID, &res.ProgramID, &res.Average); err != nil {
			slog.Error("failed to scan result", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, results)
}

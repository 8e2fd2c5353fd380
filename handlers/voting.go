// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type VoteHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVoteHandler(db *sql.DB, cfg cliparse.Config) *VoteHandler {
	return &VoteHandler{db: db, cfg: cfg}
}

// CastVote handles POST /contests/{id}/entries/{entryId}/votes
// A vote is one score per criterion plus one feedback comment, written
// atomically. A judge gets exactly one vote per entry; a second attempt
// changes nothing and comes back 409.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}

	contestID := r.PathValue("id")
	entryID := r.PathValue("entryId")
	if contestID == "" || entryID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and entry id are required")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Feedback = strings.TrimSpace(req.Feedback)
	if tooLong(req.Feedback, models.MaxFeedbackLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Feedback too long")
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

	var entryExists bool
	err = h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM entries WHERE id = $1 AND contest_id = $2)
	`, entryID, contestID).Scan(&entryExists)
	if err != nil {
		slog.Error("failed to query entry", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !entryExists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Entry not found")
		return
	}

	now := time.Now()
	if !now.After(contest.EndDate) {
		middleware.ErrorResponse(w, http.StatusConflict, "Judging has not started")
		return
	}

	// The submitted criterion ids must match the contest's criteria
	// exactly: no missing, unknown, or duplicate ids, every score 0-100.
	if len(req.Votes) != len(contest.Criteria) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "one score per criterion is required")
		return
	}
	valid := make(map[string]bool, len(contest.Criteria))
	for _, c := range contest.Criteria {
		valid[c.ID] = true
	}
	seen := make(map[string]bool, len(req.Votes))
	for _, v := range req.Votes {
		if !valid[v.CriterionID] {
			middleware.ErrorResponse(w, http.StatusBadRequest, "unknown criterion: "+v.CriterionID)
			return
		}
		if seen[v.CriterionID] {
			middleware.ErrorResponse(w, http.StatusBadRequest, "duplicate criterion: "+v.CriterionID)
			return
		}
		seen[v.CriterionID] = true
		if v.Score < 0 || v.Score > 100 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "score must be between 0 and 100")
			return
		}
	}

	if !contest.IsJudge(user) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a judge of this contest")
		return
	}

	if !contest.IsJudgeable(user, now) {
		middleware.ErrorResponse(w, http.StatusConflict, "Contest is not open for judging")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Fast path; the feedback primary key is the real enforcement.
	var alreadyVoted bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM feedback WHERE entry_id = $1 AND user_id = $2)
	`, entryID, user.ID).Scan(&alreadyVoted)
	if err != nil {
		slog.Error("failed to check feedback", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if alreadyVoted {
		middleware.ErrorResponse(w, http.StatusConflict, "Already voted for this entry")
		return
	}

	castAt := now.UTC()
	for _, v := range req.Votes {
		_, err = tx.Exec(`
			INSERT INTO scores (entry_id, criterion_id, user_id, score, cast_at)
			VALUES ($1, $2, $3, $4, $5)
		`, entryID, v.CriterionID, user.ID, v.Score, castAt)
		if err != nil {
			if isUniqueViolation(err) {
				middleware.ErrorResponse(w, http.StatusConflict, "Already voted for this entry")
				return
			}
			slog.Error("failed to insert score", "error", err, "entry_id", entryID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
			return
		}
	}

	_, err = tx.Exec(`
		INSERT INTO feedback (entry_id, user_id, comment, cast_at)
		VALUES ($1, $2, $3, $4)
	`, entryID, user.ID, req.Feedback, castAt)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Already voted for this entry")
			return
		}
		slog.Error("failed to insert feedback", "error", err, "entry_id", entryID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	slog.Info("vote cast", "contest_id", contestID, "entry_id", entryID, "judge_id", user.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{Message: "Vote recorded"})
}

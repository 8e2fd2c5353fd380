// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type JudgeHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewJudgeHandler(db *sql.DB, cfg cliparse.Config) *JudgeHandler {
	return &JudgeHandler{db: db, cfg: cfg}
}

// AddJudge handles POST /contests/{id}/judges/{userId}
func (h *JudgeHandler) AddJudge(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	judgeID := r.PathValue("userId")
	if contestID == "" || judgeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and user id are required")
		return
	}

	var exists bool
	err := h.db.QueryRow("SELECT EXISTS(SELECT 1 FROM contests WHERE id = $1)", contestID).Scan(&exists)
	if err != nil {
		slog.Error("failed to query contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}

	var level models.UserLevel
	err = h.db.QueryRow("SELECT level FROM users WHERE id = $1", judgeID).Scan(&level)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if level == models.LevelRemoved {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Cannot add a removed user as judge")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO judges (contest_id, user_id) VALUES ($1, $2)
	`, contestID, judgeID)
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "User is already a judge")
			return
		}
		slog.Error("failed to insert judge", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add judge")
		return
	}

	slog.Info("judge added", "contest_id", contestID, "judge_id", judgeID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusCreated, map[string]string{"message": "Judge added"})
}

// RemoveJudge handles DELETE /contests/{id}/judges/{userId}
// The judge's cast votes for this contest are withdrawn in the same
// transaction, so completeness counts for remaining judges only.
func (h *JudgeHandler) RemoveJudge(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	judgeID := r.PathValue("userId")
	if contestID == "" || judgeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and user id are required")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM scores
		WHERE user_id = $1
		  AND entry_id IN (SELECT id FROM entries WHERE contest_id = $2)
	`, judgeID, contestID)
	if err != nil {
		slog.Error("failed to delete judge scores", "error", err, "judge_id", judgeID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	_, err = tx.Exec(`
		DELETE FROM feedback
		WHERE user_id = $1
		  AND entry_id IN (SELECT id FROM entries WHERE contest_id = $2)
	`, judgeID, contestID)
	if err != nil {
		slog.Error("failed to delete judge feedback", "error", err, "judge_id", judgeID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := tx.Exec(`
		DELETE FROM judges WHERE contest_id = $1 AND user_id = $2
	`, contestID, judgeID)
	if err != nil {
		slog.Error("failed to delete judge", "error", err, "judge_id", judgeID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to check delete result", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Judge not found")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit judge removal", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("judge removed", "contest_id", contestID, "judge_id", judgeID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Judge removed"})
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type BracketHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewBracketHandler(db *sql.DB, cfg cliparse.Config) *BracketHandler {
	return &BracketHandler{db: db, cfg: cfg}
}

// AddBracket handles POST /contests/{id}/brackets
func (h *BracketHandler) AddBracket(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	if contestID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id is required")
		return
	}

	var req models.AddBracketRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = trimTo(req.Name, models.MaxNameLen)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
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

	bracketID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate bracket ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add bracket")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO brackets (id, contest_id, name) VALUES ($1, $2, $3)
	`, bracketID, contestID, req.Name)
	if err != nil {
		slog.Error("failed to insert bracket", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add bracket")
		return
	}

	slog.Info("bracket added", "contest_id", contestID, "bracket_id", bracketID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.Bracket{ID: bracketID, Name: req.Name})
}

// DeleteBracket handles DELETE /contests/{id}/brackets/{bracketId}
// Entries in the bracket are kept; their bracket assignment is cleared in
// the same transaction that removes the bracket.
func (h *BracketHandler) DeleteBracket(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	bracketID := r.PathValue("bracketId")
	if contestID == "" || bracketID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and bracket id are required")
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
		UPDATE entries SET bracket_id = NULL
		WHERE bracket_id = $1 AND contest_id = $2
	`, bracketID, contestID)
	if err != nil {
		slog.Error("failed to clear bracket assignments", "error", err, "bracket_id", bracketID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	res, err := tx.Exec(`
		DELETE FROM brackets WHERE id = $1 AND contest_id = $2
	`, bracketID, contestID)
	if err != nil {
		slog.Error("failed to delete bracket", "error", err, "bracket_id", bracketID)
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
		middleware.ErrorResponse(w, http.StatusNotFound, "Bracket not found")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit bracket deletion", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("bracket deleted", "contest_id", contestID, "bracket_id", bracketID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Bracket deleted"})
}

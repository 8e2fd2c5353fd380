// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type UserHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewUserHandler(db *sql.DB, cfg cliparse.Config) *UserHandler {
	return &UserHandler{db: db, cfg: cfg}
}

// CreateUser handles POST /users
// Admin only, with one exception: when no users exist yet, the request is
// allowed without a session and the new user becomes an admin. The count
// and the insert run in one transaction holding a write lock on users, so
// concurrent first requests cannot both bootstrap.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// sqlite has a single writer; only postgres needs the explicit lock.
	if h.cfg.DatabaseType == "postgres" {
		if _, err := tx.Exec("LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			slog.Error("failed to lock users", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	var total int
	if err := tx.QueryRow("SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		slog.Error("failed to count users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	bootstrap := total == 0
	if !bootstrap {
		user, ok := sessionUser(h.db, h.cfg, w, r)
		if !ok {
			return
		}
		if !requireAdmin(w, user) {
			return
		}
	}

	var req models.CreateUserRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.KAID = strings.TrimSpace(req.KAID)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.KAID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kaid is required")
		return
	}
	if tooLong(req.Name, models.MaxNameLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is too long")
		return
	}
	if tooLong(req.KAID, models.MaxNameLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kaid is too long")
		return
	}

	level := req.Level
	if bootstrap {
		level = models.LevelAdmin
	} else if level != models.LevelMember && level != models.LevelAdmin {
		middleware.ErrorResponse(w, http.StatusBadRequest, "level must be member or admin")
		return
	}

	// A removed user re-added by kaid is restored in place rather than
	// duplicated; an active user with the same kaid is a conflict.
	var existing models.User
	err = tx.QueryRow(`
		SELECT id, kaid, name, level FROM users WHERE kaid = $1
	`, req.KAID).Scan(&existing.ID, &existing.KAID, &existing.Name, &existing.Level)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("failed to query user by kaid", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err == nil {
		if existing.Level != models.LevelRemoved {
			middleware.ErrorResponse(w, http.StatusConflict, "A user with that kaid already exists")
			return
		}

		_, err = tx.Exec(`
			UPDATE users SET name = $1, level = $2 WHERE id = $3
		`, req.Name, level, existing.ID)
		if err != nil {
			slog.Error("failed to restore user", "error", err, "user_id", existing.ID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Error("failed to commit user restore", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		existing.Name = req.Name
		existing.Level = level
		slog.Info("user restored", "user_id", existing.ID, "level", level)
		middleware.JSONResponse(w, http.StatusCreated, models.CreateUserResponse{
			User:         existing,
			SessionToken: auth.GenerateSessionToken(existing.ID, h.cfg.SessionSalt),
		})
		return
	}

	userID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate user ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	_, err = tx.Exec(`
		INSERT INTO users (id, kaid, name, level) VALUES ($1, $2, $3, $4)
	`, userID, req.KAID, req.Name, level)
	if err != nil {
		slog.Error("failed to insert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	slog.Info("user created", "user_id", userID, "level", level, "bootstrap", bootstrap)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateUserResponse{
		User: models.User{
			ID:    userID,
			KAID:  req.KAID,
			Name:  req.Name,
			Level: level,
		},
		SessionToken: auth.GenerateSessionToken(userID, h.cfg.SessionSalt),
	})
}

// ListUsers handles GET /users
// Removed users are hidden from the listing.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionUser(h.db, h.cfg, w, r); !ok {
		return
	}

	page, limit := parsePagination(r, 50)

	rows, err := h.db.Query(`
		SELECT id, kaid, name, level
		FROM users
		WHERE level > 0
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, page*limit)
	if err != nil {
		slog.Error("failed to query users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.KAID, &u.Name, &u.Level); err != nil {
			slog.Error("failed to scan user", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, users)
}

// SetUserLevel handles PUT /users/{id}/level
// Setting level 0 removes the user without deleting their rows; their
// scores and feedback survive unless they are also dropped from rosters.
func (h *UserHandler) SetUserLevel(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	targetID := r.PathValue("id")
	if targetID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user id is required")
		return
	}

	var req models.SetUserLevelRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Level < models.LevelRemoved || req.Level > models.LevelAdmin {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid level")
		return
	}

	res, err := h.db.Exec(`
		UPDATE users SET level = $1 WHERE id = $2
	`, req.Level, targetID)
	if err != nil {
		slog.Error("failed to update user level", "error", err, "user_id", targetID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to check update result", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}

	slog.Info("user level changed", "user_id", targetID, "level", req.Level, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Level updated"})
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, user)
}

// MintSession handles POST /sessions/{id}
// Admin utility for issuing a session token for another user.
func (h *UserHandler) MintSession(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	targetID := r.PathValue("id")
	if targetID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "user id is required")
		return
	}

	var level models.UserLevel
	err := h.db.QueryRow("SELECT level FROM users WHERE id = $1", targetID).Scan(&level)
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
		middleware.ErrorResponse(w, http.StatusForbidden, "User is removed")
		return
	}

	slog.Info("session minted", "user_id", targetID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusCreated, models.SessionTokenResponse{
		SessionToken: auth.GenerateSessionToken(targetID, h.cfg.SessionSalt),
	})
}

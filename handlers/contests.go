// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/khan"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type ContestHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	khan *khan.Client
}

func NewContestHandler(db *sql.DB, cfg cliparse.Config, kc *khan.Client) *ContestHandler {
	return &ContestHandler{db: db, cfg: cfg, khan: kc}
}

// validateCriteria trims and checks a criterion set: non-empty, every name
// present, every weight positive, weights summing to exactly 100.
// Returns a user-facing message on failure.
func validateCriteria(criteria []models.CriterionInput) ([]models.CriterionInput, string) {
	if len(criteria) == 0 {
		return nil, "at least one criterion is required"
	}

	sum := 0
	out := make([]models.CriterionInput, 0, len(criteria))
	for _, c := range criteria {
		c.Name = strings.TrimSpace(c.Name)
		c.Description = strings.TrimSpace(c.Description)
		if c.Name == "" {
			return nil, "criterion name is required"
		}
		if tooLong(c.Name, models.MaxNameLen) {
			return nil, "criterion name is too long"
		}
		if tooLong(c.Description, models.MaxDescriptionLen) {
			return nil, "criterion description is too long"
		}
		if c.Weight <= 0 {
			return nil, "criterion weight must be positive"
		}
		sum += c.Weight
		out = append(out, c)
	}
	if sum != 100 {
		return nil, "criterion weights must sum to 100"
	}
	return out, ""
}

// CreateContest handles POST /contests
func (h *ContestHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	var req models.CreateContestRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if tooLong(req.Name, models.MaxNameLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is too long")
		return
	}
	if tooLong(req.Description, models.MaxDescriptionLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "description is too long")
		return
	}
	if req.ProgramID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "program_id is required")
		return
	}
	if req.EndDate <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "end_date is required")
		return
	}

	criteria, msg := validateCriteria(req.Criteria)
	if msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	if len(req.Judges) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "at least one judge is required")
		return
	}

	brackets := make([]string, 0, len(req.Brackets))
	for _, b := range req.Brackets {
		b = trimTo(b, models.MaxNameLen)
		if b == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "bracket name is required")
			return
		}
		brackets = append(brackets, b)
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.cfg.HTTPTimeout)*time.Second)
	defer cancel()

	exists, err := h.khan.ProgramExists(ctx, req.ProgramID)
	if err != nil {
		slog.Error("program registry check failed", "error", err, "program_id", req.ProgramID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Program registry unavailable")
		return
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Could not find a program with that id")
		return
	}

	contestID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate contest ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	endDate := time.UnixMilli(req.EndDate).UTC()

	_, err = tx.Exec(`
		INSERT INTO contests (id, name, description, program_id, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, contestID, req.Name, req.Description, req.ProgramID, endDate, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "A contest for that program already exists")
			return
		}
		slog.Error("failed to insert contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	for _, c := range criteria {
		critID, err := auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate criterion ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
		_, err = tx.Exec(`
			INSERT INTO criteria (id, contest_id, name, description, weight)
			VALUES ($1, $2, $3, $4, $5)
		`, critID, contestID, c.Name, c.Description, c.Weight)
		if err != nil {
			slog.Error("failed to insert criterion", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
	}

	for _, name := range brackets {
		bracketID, err := auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate bracket ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
		_, err = tx.Exec(`
			INSERT INTO brackets (id, contest_id, name) VALUES ($1, $2, $3)
		`, bracketID, contestID, name)
		if err != nil {
			slog.Error("failed to insert bracket", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
	}

	for _, judgeID := range req.Judges {
		var level models.UserLevel
		err := tx.QueryRow("SELECT level FROM users WHERE id = $1", judgeID).Scan(&level)
		if err == sql.ErrNoRows || (err == nil && level == models.LevelRemoved) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "judge is not an active user: "+judgeID)
			return
		}
		if err != nil {
			slog.Error("failed to query judge", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		_, err = tx.Exec(`
			INSERT INTO judges (contest_id, user_id) VALUES ($1, $2)
		`, contestID, judgeID)
		if err != nil && !isUniqueViolation(err) {
			slog.Error("failed to insert judge", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create contest")
		return
	}

	slog.Info("contest created", "contest_id", contestID, "program_id", req.ProgramID,
		"criteria", len(criteria), "judges", len(req.Judges), "by", user.ID)

	contest, err := loadContest(h.db, contestID)
	if err != nil {
		slog.Error("failed to load contest", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, h.viewFor(contest, user))
}

// viewFor decorates a contest with the viewer-derived fields.
func (h *ContestHandler) viewFor(c models.Contest, viewer models.User) models.ContestView {
	now := time.Now()
	view := models.ContestView{
		Contest:           c,
		EndsIn:            humanize.Time(c.EndDate),
		UserCanJudge:      c.IsJudgeable(viewer, now),
		UserCanViewResult: c.ResultsDisclosed(viewer, now),
	}

	if c.IsJudge(viewer) {
		var judged int
		err := h.db.QueryRow(`
			SELECT COUNT(*)
			FROM entries e
			JOIN feedback f ON f.entry_id = e.id
			WHERE e.contest_id = $1 AND f.user_id = $2
		`, c.ID, viewer.ID).Scan(&judged)
		if err != nil {
			slog.Error("failed to count judged entries", "error", err, "contest_id", c.ID)
		} else {
			view.UserJudgedEntryCount = &judged
		}
	}

	return view
}

// GetContest handles GET /contests/{id}
// Only judges of the contest and admins may see the full aggregate.
func (h *ContestHandler) GetContest(w http.ResponseWriter, r *http.Request) {
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

	if user.Level < models.LevelAdmin && !contest.IsJudge(user) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a judge of this contest")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, h.viewFor(contest, user))
}

// ListContests handles GET /contests
// Admins see every contest; everyone else sees the contests they judge.
// Newest first.
func (h *ContestHandler) ListContests(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}

	page, limit := parsePagination(r, 20)

	var rows *sql.Rows
	var err error
	if user.Level >= models.LevelAdmin {
		rows, err = h.db.Query(`
			SELECT id, name, description, program_id, end_date, created_at
			FROM contests
			ORDER BY created_at DESC, id
			LIMIT $1 OFFSET $2
		`, limit, page*limit)
	} else {
		rows, err = h.db.Query(`
			SELECT c.id, c.name, c.description, c.program_id, c.end_date, c.created_at
			FROM contests c
			JOIN judges j ON j.contest_id = c.id
			WHERE j.user_id = $1
			ORDER BY c.created_at DESC, c.id
			LIMIT $2 OFFSET $3
		`, user.ID, limit, page*limit)
	}
	if err != nil {
		slog.Error("failed to query contests", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	contests := []models.ContestBrief{}
	for rows.Next() {
		var c models.ContestBrief
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ProgramID, &c.EndDate, &c.CreatedAt); err != nil {
			slog.Error("failed to scan contest", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate contests", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ids := make([]string, len(contests))
	for i := range contests {
		ids[i] = contests[i].ID
	}
	entryCount, judgedCount, err := entryCounts(h.db, ids)
	if err != nil {
		slog.Error("failed to count entries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	for i := range contests {
		contests[i].EntryCount = entryCount[contests[i].ID]
		contests[i].JudgedEntryCount = judgedCount[contests[i].ID]
	}

	middleware.JSONResponse(w, http.StatusOK, contests)
}

// DeleteContest handles DELETE /contests/{id}
// A single DELETE; criteria, brackets, entries, judges, scores, and
// feedback all ride the cascade.
func (h *ContestHandler) DeleteContest(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.db.Exec("DELETE FROM contests WHERE id = $1", contestID)
	if err != nil {
		slog.Error("failed to delete contest", "error", err, "contest_id", contestID)
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
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}

	slog.Info("contest deleted", "contest_id", contestID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Contest deleted"})
}

// UpdateInfo handles PUT /contests/{id}/info
func (h *ContestHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
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

	var req models.UpdateContestInfoRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if tooLong(req.Name, models.MaxNameLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is too long")
		return
	}
	if tooLong(req.Description, models.MaxDescriptionLen) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "description is too long")
		return
	}

	res, err := h.db.Exec(`
		UPDATE contests SET name = $1, description = $2 WHERE id = $3
	`, req.Name, req.Description, contestID)
	if err != nil {
		slog.Error("failed to update contest info", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}

	slog.Info("contest info updated", "contest_id", contestID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Contest updated"})
}

// UpdateEndDate handles PUT /contests/{id}/end-date
func (h *ContestHandler) UpdateEndDate(w http.ResponseWriter, r *http.Request) {
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

	var req models.UpdateEndDateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.EndDate <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "end_date is required")
		return
	}

	res, err := h.db.Exec(`
		UPDATE contests SET end_date = $1 WHERE id = $2
	`, time.UnixMilli(req.EndDate).UTC(), contestID)
	if err != nil {
		slog.Error("failed to update end date", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}

	slog.Info("contest end date updated", "contest_id", contestID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "End date updated"})
}

// ReplaceCriteria handles PUT /contests/{id}/criteria
// Replacing the criterion set voids every vote already cast: all scores
// and feedback for the contest are deleted in the same transaction.
func (h *ContestHandler) ReplaceCriteria(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Criteria []models.CriterionInput `json:"criteria"`
	}
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	criteria, msg := validateCriteria(req.Criteria)
	if msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
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

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Feedback references entries, not criteria, so it does not ride the
	// criteria cascade and must go explicitly.
	_, err = tx.Exec(`
		DELETE FROM feedback
		WHERE entry_id IN (SELECT id FROM entries WHERE contest_id = $1)
	`, contestID)
	if err != nil {
		slog.Error("failed to delete feedback", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Deleting the criteria cascades their score rows.
	_, err = tx.Exec("DELETE FROM criteria WHERE contest_id = $1", contestID)
	if err != nil {
		slog.Error("failed to delete criteria", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	inserted := []models.Criterion{}
	for _, c := range criteria {
		critID, err := auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate criterion ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		_, err = tx.Exec(`
			INSERT INTO criteria (id, contest_id, name, description, weight)
			VALUES ($1, $2, $3, $4, $5)
		`, critID, contestID, c.Name, c.Description, c.Weight)
		if err != nil {
			slog.Error("failed to insert criterion", "error", err, "contest_id", contestID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		inserted = append(inserted, models.Criterion{
			ID:          critID,
			Name:        c.Name,
			Description: c.Description,
			Weight:      c.Weight,
		})
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit criteria replacement", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("criteria replaced", "contest_id", contestID, "criteria", len(inserted), "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, inserted)
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/khan"
	"github.com/kascribe/server/middleware"
	"github.com/kascribe/server/models"
)

type EntryHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	khan *khan.Client
}

func NewEntryHandler(db *sql.DB, cfg cliparse.Config, kc *khan.Client) *EntryHandler {
	return &EntryHandler{db: db, cfg: cfg, khan: kc}
}

// entrySelect joins the bracket and the viewer's feedback row so a single
// scan fills the whole Entry shape.
const entrySelect = `
	SELECT e.id, e.program_id, b.id, b.name, f.user_id IS NOT NULL
	FROM entries e
	LEFT JOIN brackets b ON b.id = e.bracket_id
	LEFT JOIN feedback f ON f.entry_id = e.id AND f.user_id = $1
`

func scanEntry(row interface{ Scan(...interface{}) error }) (models.Entry, error) {
	var e models.Entry
	var bracketID, bracketName sql.NullString
	if err := row.Scan(&e.ID, &e.ProgramID, &bracketID, &bracketName, &e.UserHasJudged); err != nil {
		return models.Entry{}, err
	}
	if bracketID.Valid {
		e.Bracket = &models.Bracket{ID: bracketID.String, Name: bracketName.String}
	}
	return e, nil
}

// contestExists404 checks the contest and writes a 404 when absent.
func contestExists404(db *sql.DB, w http.ResponseWriter, contestID string) bool {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM contests WHERE id = $1)", contestID).Scan(&exists)
	if err != nil {
		slog.Error("failed to query contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return false
	}
	if !exists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return false
	}
	return true
}

// AddEntry handles POST /contests/{id}/entries
// Registering the same program twice is not an error: the existing entry
// comes back with is_new false and nothing changes.
func (h *EntryHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
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

	var req models.AddEntryRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ProgramID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "program_id is required")
		return
	}

	if !contestExists404(h.db, w, contestID) {
		return
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

	entry, isNew, err := h.addEntry(contestID, req.ProgramID)
	if err != nil {
		slog.Error("failed to add entry", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add entry")
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
		slog.Info("entry added", "contest_id", contestID, "entry_id", entry.ID,
			"program_id", req.ProgramID, "by", user.ID)
	}

	middleware.JSONResponse(w, status, models.AddEntryResponse{Entry: entry, IsNew: isNew})
}

// addEntry inserts one entry unless the program is already registered.
// The UNIQUE(contest_id, program_id) constraint backstops the check under
// concurrent requests.
func (h *EntryHandler) addEntry(contestID string, programID int64) (models.Entry, bool, error) {
	var existing models.Entry
	err := h.db.QueryRow(`
		SELECT id, program_id FROM entries WHERE contest_id = $1 AND program_id = $2
	`, contestID, programID).Scan(&existing.ID, &existing.ProgramID)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return models.Entry{}, false, err
	}

	entryID, err := auth.GenerateID(16)
	if err != nil {
		return models.Entry{}, false, err
	}

	_, err = h.db.Exec(`
		INSERT INTO entries (id, contest_id, program_id) VALUES ($1, $2, $3)
	`, entryID, contestID, programID)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race; return whoever won.
			err = h.db.QueryRow(`
				SELECT id, program_id FROM entries WHERE contest_id = $1 AND program_id = $2
			`, contestID, programID).Scan(&existing.ID, &existing.ProgramID)
			return existing, false, err
		}
		return models.Entry{}, false, err
	}

	return models.Entry{ID: entryID, ProgramID: programID}, true, nil
}

// ListEntries handles GET /contests/{id}/entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}

	contestID := r.PathValue("id")
	if contestID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id is required")
		return
	}
	if !contestExists404(h.db, w, contestID) {
		return
	}

	page, limit := parsePagination(r, 50)

	rows, err := h.db.Query(entrySelect+`
		WHERE e.contest_id = $2
		ORDER BY e.id
		LIMIT $3 OFFSET $4
	`, user.ID, contestID, limit, page*limit)
	if err != nil {
		slog.Error("failed to query entries", "error", err, "contest_id", contestID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			slog.Error("failed to scan entry", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate entries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entries)
}

// GetEntry handles GET /contests/{id}/entries/{entryId}
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
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

	row := h.db.QueryRow(entrySelect+`
		WHERE e.id = $2 AND e.contest_id = $3
	`, user.ID, entryID, contestID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Entry not found")
		return
	}
	if err != nil {
		slog.Error("failed to query entry", "error", err, "entry_id", entryID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, entry)
}

// SetBracket handles PUT /contests/{id}/entries/{entryId}/bracket
// The bracket must belong to the same contest; null clears the assignment.
func (h *EntryHandler) SetBracket(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	entryID := r.PathValue("entryId")
	if contestID == "" || entryID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and entry id are required")
		return
	}

	var req models.SetEntryBracketRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.BracketID != nil {
		var sameContest bool
		err := h.db.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM brackets WHERE id = $1 AND contest_id = $2)
		`, *req.BracketID, contestID).Scan(&sameContest)
		if err != nil {
			slog.Error("failed to query bracket", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if !sameContest {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Bracket does not belong to this contest")
			return
		}
	}

	res, err := h.db.Exec(`
		UPDATE entries SET bracket_id = $1 WHERE id = $2 AND contest_id = $3
	`, req.BracketID, entryID, contestID)
	if err != nil {
		slog.Error("failed to set entry bracket", "error", err, "entry_id", entryID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Entry not found")
		return
	}

	slog.Info("entry bracket set", "entry_id", entryID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Bracket updated"})
}

// DeleteEntry handles DELETE /contests/{id}/entries/{entryId}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}
	if !requireAdmin(w, user) {
		return
	}

	contestID := r.PathValue("id")
	entryID := r.PathValue("entryId")
	if contestID == "" || entryID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id and entry id are required")
		return
	}

	res, err := h.db.Exec(`
		DELETE FROM entries WHERE id = $1 AND contest_id = $2
	`, entryID, contestID)
	if err != nil {
		slog.Error("failed to delete entry", "error", err, "entry_id", entryID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Entry not found")
		return
	}

	slog.Info("entry deleted", "contest_id", contestID, "entry_id", entryID, "by", user.ID)

	middleware.JSONResponse(w, http.StatusOK, map[string]string{"message": "Entry deleted"})
}

// ImportSpinOffs handles POST /contests/{id}/spinoffs
// Walks the external forks listing of the contest's program and registers
// every spin-off as an entry. Already-registered programs are skipped.
// Any page failure aborts the whole import with nothing committed.
func (h *EntryHandler) ImportSpinOffs(w http.ResponseWriter, r *http.Request) {
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

	var programID int64
	err := h.db.QueryRow("SELECT program_id FROM contests WHERE id = $1", contestID).Scan(&programID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}
	if err != nil {
		slog.Error("failed to query contest", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// The walk can span many pages; give it a generous multiple of the
	// per-request timeout.
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Duration(h.cfg.HTTPTimeout)*time.Second)
	defer cancel()

	started := time.Now()
	spinOffs, err := h.khan.TopSpinOffs(ctx, programID)
	if err != nil {
		slog.Error("spin-off listing failed", "error", err, "program_id", programID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Program registry unavailable")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	imported := []models.Entry{}
	skipped := 0
	for _, spinOffID := range spinOffs {
		var exists bool
		err := tx.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM entries WHERE contest_id = $1 AND program_id = $2)
		`, contestID, spinOffID).Scan(&exists)
		if err != nil {
			slog.Error("failed to check entry", "error", err, "program_id", spinOffID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if exists {
			skipped++
			continue
		}

		entryID, err := auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate entry ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		_, err = tx.Exec(`
			INSERT INTO entries (id, contest_id, program_id) VALUES ($1, $2, $3)
		`, entryID, contestID, spinOffID)
		if err != nil {
			slog.Error("failed to insert entry", "error", err, "program_id", spinOffID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		imported = append(imported, models.Entry{ID: entryID, ProgramID: spinOffID})
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit spin-off import", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("spin-offs imported",
		"contest_id", contestID,
		"program_id", programID,
		"found", humanize.Comma(int64(len(spinOffs))),
		"imported", len(imported),
		"skipped", skipped,
		"took", humanize.RelTime(started, time.Now(), "", ""),
		"by", user.ID,
	)

	middleware.JSONResponse(w, http.StatusOK, models.ImportSpinOffsResponse{
		Imported: imported,
		Skipped:  skipped,
	})
}

// RandomEntry handles GET /contests/{id}/entries/random
// Picks uniformly among the entries the viewing judge has not voted on.
// When none remain, responds with judging_finished instead of an entry.
func (h *EntryHandler) RandomEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := sessionUser(h.db, h.cfg, w, r)
	if !ok {
		return
	}

	contestID := r.PathValue("id")
	if contestID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id is required")
		return
	}

	var isJudge bool
	err := h.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM judges WHERE contest_id = $1 AND user_id = $2)
	`, contestID, user.ID).Scan(&isJudge)
	if err != nil {
		slog.Error("failed to query judge", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !isJudge {
		if !contestExists404(h.db, w, contestID) {
			return
		}
		middleware.ErrorResponse(w, http.StatusForbidden, "Not a judge of this contest")
		return
	}

	var remaining int
	err = h.db.QueryRow(`
		SELECT COUNT(*)
		FROM entries e
		LEFT JOIN feedback f ON f.entry_id = e.id AND f.user_id = $1
		WHERE e.contest_id = $2 AND f.user_id IS NULL
	`, user.ID, contestID).Scan(&remaining)
	if err != nil {
		slog.Error("failed to count unjudged entries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if remaining == 0 {
		middleware.JSONResponse(w, http.StatusOK, models.RandomEntryResponse{JudgingFinished: true})
		return
	}

	row := h.db.QueryRow(entrySelect+`
		WHERE e.contest_id = $2 AND f.user_id IS NULL
		ORDER BY e.id
		LIMIT 1 OFFSET $3
	`, user.ID, contestID, rand.Intn(remaining))

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		// The last unjudged entry vanished between the count and the pick.
		middleware.JSONResponse(w, http.StatusOK, models.RandomEntryResponse{JudgingFinished: true})
		return
	}
	if err != nil {
		slog.Error("failed to pick random entry", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RandomEntryResponse{Entry: &entry})
}

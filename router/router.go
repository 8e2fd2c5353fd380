// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/kascribe/server/cliparse"
	"github.com/kascribe/server/handlers"
	"github.com/kascribe/server/khan"
	"github.com/kascribe/server/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, kc *khan.Client) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(db, cfg)
	contestHandler := handlers.NewContestHandler(db, cfg, kc)
	bracketHandler := handlers.NewBracketHandler(db, cfg)
	judgeHandler := handlers.NewJudgeHandler(db, cfg)
	entryHandler := handlers.NewEntryHandler(db, cfg, kc)
	voteHandler := handlers.NewVoteHandler(db, cfg)
	resultsHandler := handlers.NewResultsHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Accounts and sessions
	mux.HandleFunc("POST /users", middleware.WithLogging(userHandler.CreateUser))
	mux.HandleFunc("GET /users", middleware.WithLogging(userHandler.ListUsers))
	mux.HandleFunc("PUT /users/{id}/level", middleware.WithLogging(userHandler.SetUserLevel))
	mux.HandleFunc("GET /me", middleware.WithLogging(userHandler.Me))
	mux.HandleFunc("POST /sessions/{id}", middleware.WithLogging(userHandler.MintSession))

	// Contest management (admin operations)
	mux.HandleFunc("POST /contests", middleware.WithLogging(contestHandler.CreateContest))
	mux.HandleFunc("GET /contests", middleware.WithLogging(contestHandler.ListContests))
	mux.HandleFunc("GET /contests/{id}", middleware.WithLogging(contestHandler.GetContest))
	mux.HandleFunc("DELETE /contests/{id}", middleware.WithLogging(contestHandler.DeleteContest))
	mux.HandleFunc("PUT /contests/{id}/info", middleware.WithLogging(contestHandler.UpdateInfo))
	mux.HandleFunc("PUT /contests/{id}/end-date", middleware.WithLogging(contestHandler.UpdateEndDate))
	mux.HandleFunc("PUT /contests/{id}/criteria", middleware.WithLogging(contestHandler.ReplaceCriteria))

	// Brackets and judge roster
	mux.HandleFunc("POST /contests/{id}/brackets", middleware.WithLogging(bracketHandler.AddBracket))
	mux.HandleFunc("DELETE /contests/{id}/brackets/{bracketId}", middleware.WithLogging(bracketHandler.DeleteBracket))
	mux.HandleFunc("POST /contests/{id}/judges/{userId}", middleware.WithLogging(judgeHandler.AddJudge))
	mux.HandleFunc("DELETE /contests/{id}/judges/{userId}", middleware.WithLogging(judgeHandler.RemoveJudge))

	// Entries
	mux.HandleFunc("GET /contests/{id}/entries", middleware.WithLogging(entryHandler.ListEntries))
	mux.HandleFunc("POST /contests/{id}/entries", middleware.WithLogging(entryHandler.AddEntry))
	mux.HandleFunc("POST /contests/{id}/spinoffs", middleware.WithLogging(entryHandler.ImportSpinOffs))
	mux.HandleFunc("GET /contests/{id}/entries/random", middleware.WithLogging(entryHandler.RandomEntry))
	mux.HandleFunc("GET /contests/{id}/entries/{entryId}", middleware.WithLogging(entryHandler.GetEntry))
	mux.HandleFunc("DELETE /contests/{id}/entries/{entryId}", middleware.WithLogging(entryHandler.DeleteEntry))
	mux.HandleFunc("PUT /contests/{id}/entries/{entryId}/bracket", middleware.WithLogging(entryHandler.SetBracket))

	// Voting and results
	mux.HandleFunc("POST /contests/{id}/entries/{entryId}/votes", middleware.WithLogging(voteHandler.CastVote))
	mux.HandleFunc("GET /contests/{id}/results", middleware.WithLogging(resultsHandler.GetResults))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("kascribe API v1"))
	})

	return mux
}

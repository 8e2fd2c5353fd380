// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kascribe/server/models"
	"github.com/kascribe/server/testutil"
)

// TestConcurrentDuplicateVotes verifies that simultaneous votes from the same
// judge on the same entry produce exactly one ledger record
func TestConcurrentDuplicateVotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	voteHandler := NewVoteHandler(db, cfg)

	contestID := testutil.CreateTestContest(t, db, 1234, time.Now().Add(-time.Hour))
	critID := testutil.AddTestCriterion(t, db, contestID, "Overall", 100)
	entryID := testutil.AddTestEntry(t, db, contestID, 1001)

	judge, token := testutil.CreateTestUser(t, db, cfg, "Racer", models.LevelMember)
	testutil.AddTestJudge(t, db, contestID, judge.ID)

	attempts := 10
	var created atomic.Int32
	var conflicted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/contests/"+contestID+"/entries/"+entryID+"/votes",
				models.CastVoteRequest{
					Votes: []models.VoteItem{{CriterionID: critID, Score: score}},
				}, map[string]string{"X-Session-Token": token})
			req.SetPathValue("id", contestID)
			req.SetPathValue("entryId", entryID)
			w := httptest.NewRecorder()

			voteHandler.CastVote(w, req)

			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicted.Add(1)
			default:
				t.Errorf("Unexpected status %d: %s", w.Code, w.Body.String())
			}
		}(i * 10)
	}

	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 successful vote, got %d", created.Load())
	}
	if conflicted.Load() != int32(attempts)-1 {
		t.Errorf("Expected %d conflicts, got %d", attempts-1, conflicted.Load())
	}

	var scoreRows, feedbackRows int
	db.QueryRow(`SELECT COUNT(*) FROM scores WHERE entry_id = $1`, entryID).Scan(&scoreRows)
	db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE entry_id = $1`, entryID).Scan(&feedbackRows)
	if scoreRows != 1 || feedbackRows != 1 {
		t.Errorf("Expected 1 score and 1 feedback row, got %d and %d", scoreRows, feedbackRows)
	}
}

// TestConcurrentBootstrap verifies that simultaneous sessionless requests
// against an empty user table produce exactly one admin
func TestConcurrentBootstrap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	userHandler := NewUserHandler(db, cfg)

	attempts := 6
	var created atomic.Int32
	var unauthorized atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/users", models.CreateUserRequest{
				Name: "Founder " + string(rune('A'+idx)),
				KAID: "kaid_founder_" + string(rune('a'+idx)),
			}, nil)
			w := httptest.NewRecorder()

			userHandler.CreateUser(w, req)

			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusUnauthorized:
				unauthorized.Add(1)
			default:
				t.Errorf("Unexpected status %d: %s", w.Code, w.Body.String())
			}
		}(i)
	}

	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 bootstrap admin, got %d", created.Load())
	}
	if unauthorized.Load() != int32(attempts)-1 {
		t.Errorf("Expected %d unauthorized, got %d", attempts-1, unauthorized.Load())
	}

	var total, admins int
	db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total)
	db.QueryRow(`SELECT COUNT(*) FROM users WHERE level = $1`, models.LevelAdmin).Scan(&admins)
	if total != 1 || admins != 1 {
		t.Errorf("Expected 1 user who is an admin, got %d users and %d admins", total, admins)
	}
}

// TestConcurrentVotesFromDifferentJudges verifies that distinct judges voting
// on the same entry at the same time all succeed
func TestConcurrentVotesFromDifferentJudges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	voteHandler := NewVoteHandler(db, cfg)

	contestID := testutil.CreateTestContest(t, db, 1234, time.Now().Add(-time.Hour))
	critID := testutil.AddTestCriterion(t, db, contestID, "Overall", 100)
	entryID := testutil.AddTestEntry(t, db, contestID, 1001)

	numJudges := 8
	tokens := make([]string, numJudges)
	for i := 0; i < numJudges; i++ {
		judge, token := testutil.CreateTestUser(t, db, cfg, "Judge "+string(rune('A'+i)), models.LevelMember)
		testutil.AddTestJudge(t, db, contestID, judge.ID)
		tokens[i] = token
	}

	var created atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numJudges; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/contests/"+contestID+"/entries/"+entryID+"/votes",
				models.CastVoteRequest{
					Votes: []models.VoteItem{{CriterionID: critID, Score: idx * 10}},
				}, map[string]string{"X-Session-Token": tokens[idx]})
			req.SetPathValue("id", contestID)
			req.SetPathValue("entryId", entryID)
			w := httptest.NewRecorder()

			voteHandler.CastVote(w, req)

			if w.Code == http.StatusCreated {
				created.Add(1)
			} else {
				t.Errorf("Judge %d got status %d: %s", idx, w.Code, w.Body.String())
			}
		}(i)
	}

	wg.Wait()

	if int(created.Load()) != numJudges {
		t.Errorf("Expected %d successful votes, got %d", numJudges, created.Load())
	}

	var feedbackRows int
	db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE entry_id = $1`, entryID).Scan(&feedbackRows)
	if feedbackRows != numJudges {
		t.Errorf("Expected %d feedback rows, got %d", numJudges, feedbackRows)
	}
}

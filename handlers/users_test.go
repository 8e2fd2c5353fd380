// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kascribe/server/auth"
	"github.com/kascribe/server/models"
)

func TestCreateUser_Bootstrap(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	// Empty database: no session needed, level forced to admin
	req := jsonRequest("POST", "/users", models.CreateUserRequest{
		Name:  "First Admin",
		KAID:  "kaid_first",
		Level: models.LevelMember,
	}, "")
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", w.Code, w.Body.String())
	}

	var resp models.CreateUserResponse
	decodeBody(t, w, &resp)

	if resp.User.Level != models.LevelAdmin {
		t.Errorf("Expected bootstrap user to be admin, got level %d", resp.User.Level)
	}
	if resp.SessionToken == "" {
		t.Error("Expected a session token")
	}
	if _, err := auth.ParseSessionToken(resp.SessionToken, cfg.SessionSalt); err != nil {
		t.Errorf("Expected a valid session token: %v", err)
	}

	t.Run("second create requires a session", func(t *testing.T) {
		req := jsonRequest("POST", "/users", models.CreateUserRequest{
			Name: "Second", KAID: "kaid_second", Level: models.LevelMember,
		}, "")
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401 without a session, got %d", w.Code)
		}
	})

	t.Run("admin can create members", func(t *testing.T) {
		req := jsonRequest("POST", "/users", models.CreateUserRequest{
			Name: "Second", KAID: "kaid_second", Level: models.LevelMember,
		}, resp.SessionToken)
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("Expected status 201, got %d. Body: %s", w.Code, w.Body.String())
		}
	})

	t.Run("duplicate kaid conflicts", func(t *testing.T) {
		req := jsonRequest("POST", "/users", models.CreateUserRequest{
			Name: "Imposter", KAID: "kaid_second", Level: models.LevelMember,
		}, resp.SessionToken)
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", w.Code)
		}
	})

	t.Run("over-long name rejected", func(t *testing.T) {
		req := jsonRequest("POST", "/users", models.CreateUserRequest{
			Name: strings.Repeat("é", models.MaxNameLen+1), KAID: "kaid_third", Level: models.LevelMember,
		}, resp.SessionToken)
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d. Body: %s", w.Code, w.Body.String())
		}
	})
}

func TestCreateUser_RestoresRemoved(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	_, adminToken := createTestUser(t, db, cfg, "Admin", models.LevelAdmin)
	removed, _ := createTestUser(t, db, cfg, "Gone", models.LevelRemoved)

	req := jsonRequest("POST", "/users", models.CreateUserRequest{
		Name:  "Back Again",
		KAID:  removed.KAID,
		Level: models.LevelMember,
	}, adminToken)
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", w.Code, w.Body.String())
	}

	var resp models.CreateUserResponse
	decodeBody(t, w, &resp)

	// Same row restored, not a new one
	if resp.User.ID != removed.ID {
		t.Errorf("Expected restored user to keep id %s, got %s", removed.ID, resp.User.ID)
	}
	if resp.User.Name != "Back Again" {
		t.Errorf("Expected updated name, got %q", resp.User.Name)
	}
	if resp.User.Level != models.LevelMember {
		t.Errorf("Expected level member, got %d", resp.User.Level)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 users (no duplicate row), got %d", count)
	}
}

func TestListUsers_HidesRemoved(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	_, token := createTestUser(t, db, cfg, "Member", models.LevelMember)
	createTestUser(t, db, cfg, "Another", models.LevelMember)
	createTestUser(t, db, cfg, "Gone", models.LevelRemoved)

	req := jsonRequest("GET", "/users", nil, token)
	w := httptest.NewRecorder()

	handler.ListUsers(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var users []models.User
	decodeBody(t, w, &users)

	if len(users) != 2 {
		t.Errorf("Expected 2 visible users, got %d", len(users))
	}
	for _, u := range users {
		if u.Level == models.LevelRemoved {
			t.Errorf("Removed user %s leaked into listing", u.ID)
		}
	}
}

func TestSetUserLevel(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	_, adminToken := createTestUser(t, db, cfg, "Admin", models.LevelAdmin)
	target, targetToken := createTestUser(t, db, cfg, "Target", models.LevelMember)

	setLevel := func(t *testing.T, token, userID string, level models.UserLevel) *httptest.ResponseRecorder {
		t.Helper()
		req := jsonRequest("PUT", "/users/"+userID+"/level", models.SetUserLevelRequest{Level: level}, token)
		req.SetPathValue("id", userID)
		w := httptest.NewRecorder()
		handler.SetUserLevel(w, req)
		return w
	}

	t.Run("promote to admin", func(t *testing.T) {
		w := setLevel(t, adminToken, target.ID, models.LevelAdmin)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d. Body: %s", w.Code, w.Body.String())
		}

		var level models.UserLevel
		if err := db.QueryRow("SELECT level FROM users WHERE id = $1", target.ID).Scan(&level); err != nil {
			t.Fatalf("Failed to query level: %v", err)
		}
		if level != models.LevelAdmin {
			t.Errorf("Expected level admin, got %d", level)
		}
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		// Demote target back first so its token is non-admin
		setLevel(t, adminToken, target.ID, models.LevelMember)

		w := setLevel(t, targetToken, target.ID, models.LevelAdmin)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
	})

	t.Run("remove user", func(t *testing.T) {
		w := setLevel(t, adminToken, target.ID, models.LevelRemoved)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		// A removed user's session stops working
		req := jsonRequest("GET", "/me", nil, targetToken)
		rec := httptest.NewRecorder()
		handler.Me(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected status 403 for removed user, got %d", rec.Code)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		w := setLevel(t, adminToken, target.ID, 5)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		w := setLevel(t, adminToken, "nope", models.LevelMember)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	user, token := createTestUser(t, db, cfg, "Someone", models.LevelMember)

	req := jsonRequest("GET", "/me", nil, token)
	w := httptest.NewRecorder()

	handler.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp models.User
	decodeBody(t, w, &resp)
	if resp.ID != user.ID {
		t.Errorf("Expected user %s, got %s", user.ID, resp.ID)
	}

	t.Run("forged token rejected", func(t *testing.T) {
		req := jsonRequest("GET", "/me", nil, user.ID+".forged-signature")
		w := httptest.NewRecorder()

		handler.Me(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})
}

func TestMintSession(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewUserHandler(db, cfg)

	_, adminToken := createTestUser(t, db, cfg, "Admin", models.LevelAdmin)
	member, _ := createTestUser(t, db, cfg, "Member", models.LevelMember)
	removed, _ := createTestUser(t, db, cfg, "Gone", models.LevelRemoved)

	mint := func(t *testing.T, token, userID string) *httptest.ResponseRecorder {
		t.Helper()
		req := jsonRequest("POST", "/sessions/"+userID, nil, token)
		req.SetPathValue("id", userID)
		w := httptest.NewRecorder()
		handler.MintSession(w, req)
		return w
	}

	t.Run("mint for member", func(t *testing.T) {
		w := mint(t, adminToken, member.ID)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d. Body: %s", w.Code, w.Body.String())
		}

		var resp models.SessionTokenResponse
		decodeBody(t, w, &resp)

		userID, err := auth.ParseSessionToken(resp.SessionToken, cfg.SessionSalt)
		if err != nil {
			t.Fatalf("Expected valid token: %v", err)
		}
		if userID != member.ID {
			t.Errorf("Expected token for %s, got %s", member.ID, userID)
		}
	})

	t.Run("removed user rejected", func(t *testing.T) {
		w := mint(t, adminToken, removed.ID)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		w := mint(t, adminToken, "nope")
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package khan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestProgramExists(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"found", http.StatusOK, true},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
		{"redirect not followed as success", http.StatusBadRequest, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(`{"id":5916999726448640}`))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, 5*time.Second)
			exists, err := client.ProgramExists(context.Background(), 5916999726448640)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if exists != tc.expected {
				t.Errorf("Expected exists=%v, got %v", tc.expected, exists)
			}
			if gotPath != "/api/labs/scratchpads/5916999726448640" {
				t.Errorf("Unexpected request path: %s", gotPath)
			}
		})
	}
}

func TestProgramExists_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the request fails

	client := NewClient(srv.URL, time.Second)
	_, err := client.ProgramExists(context.Background(), 42)
	if err == nil {
		t.Error("Expected error when server is unreachable")
	}
}

func TestTopSpinOffs_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor":   "end",
			"complete": true,
			"scratchpads": []map[string]string{
				{"url": "https://www.khanacademy.org/computer-programming/spin-off/101"},
				{"url": "https://www.khanacademy.org/computer-programming/spin-off/102"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	ids, err := client.TopSpinOffs(context.Background(), 999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int64{101, 102}
	if len(ids) != len(expected) {
		t.Fatalf("Expected %d ids, got %d", len(expected), len(ids))
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Expected ids[%d]=%d, got %d", i, id, ids[i])
		}
	}
}

func TestTopSpinOffs_Pagination(t *testing.T) {
	// Three pages; the cursor from each page must be echoed on the next
	// request, and the page counter must advance.
	pages := []struct {
		cursor   string
		complete bool
		ids      []int64
	}{
		{"c1", false, []int64{1, 2, 3}},
		{"c2", false, []int64{4, 5}},
		{"c3", true, []int64{6}},
	}

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests >= len(pages) {
			t.Errorf("Unexpected extra request %d", requests)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		if got := q.Get("page"); got != strconv.Itoa(requests) {
			t.Errorf("Request %d: expected page=%d, got %s", requests, requests, got)
		}
		if got := q.Get("limit"); got != "50" {
			t.Errorf("Request %d: expected limit=50, got %s", requests, got)
		}
		if requests == 0 {
			if q.Get("cursor") != "" {
				t.Errorf("First request should not carry a cursor, got %q", q.Get("cursor"))
			}
		} else if got := q.Get("cursor"); got != pages[requests-1].cursor {
			t.Errorf("Request %d: expected cursor %q, got %q", requests, pages[requests-1].cursor, got)
		}

		page := pages[requests]
		requests++

		pads := make([]map[string]string, 0, len(page.ids))
		for _, id := range page.ids {
			pads = append(pads, map[string]string{
				"url": fmt.Sprintf("https://www.khanacademy.org/computer-programming/x/%d", id),
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor":      page.cursor,
			"complete":    page.complete,
			"scratchpads": pads,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	ids, err := client.TopSpinOffs(context.Background(), 999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if requests != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}

	expected := []int64{1, 2, 3, 4, 5, 6}
	if len(ids) != len(expected) {
		t.Fatalf("Expected %d ids, got %d: %v", len(expected), len(ids), ids)
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Expected ids[%d]=%d, got %d", i, id, ids[i])
		}
	}
}

func TestTopSpinOffs_IncompleteResponse(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"missing cursor", `{"complete":true,"scratchpads":[]}`},
		{"missing complete", `{"cursor":"c","scratchpads":[]}`},
		{"missing scratchpads", `{"cursor":"c","complete":true}`},
		{"null body", `null`},
		{"not JSON", `<html>maintenance</html>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, 5*time.Second)
			_, err := client.TopSpinOffs(context.Background(), 999)
			if err == nil {
				t.Error("Expected error for malformed response")
			}
		})
	}
}

func TestTopSpinOffs_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.TopSpinOffs(context.Background(), 999)
	if err == nil {
		t.Error("Expected error for non-2xx status")
	}
}

func TestTopSpinOffs_BadScratchpadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor":   "c",
			"complete": true,
			"scratchpads": []map[string]string{
				{"url": "https://www.khanacademy.org/computer-programming/x/not-a-number"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.TopSpinOffs(context.Background(), 999)
	if err == nil {
		t.Error("Expected error for non-numeric program id in url")
	}
}

func TestTopSpinOffs_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"cursor":"c","complete":true,"scratchpads":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.TopSpinOffs(ctx, 999)
	if err == nil {
		t.Error("Expected error when context deadline passes")
	}
}

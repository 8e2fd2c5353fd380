// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package khan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// spinOffPageLimit is the page size used when walking the top-forks listing.
const spinOffPageLimit = 50

// existsProjection asks the scratchpad endpoint for just the id field.
const existsProjection = `{"id":1}`

// spinOffProjection asks the top-forks endpoint for the cursor, the
// completion flag, and each scratchpad's url (the program id is its last
// path segment).
const spinOffProjection = `{"cursor":1,"complete":1,"scratchpads":[{"url":1}]}`

// Client talks to the program registry's public API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client rooted at base (e.g. "https://www.khanacademy.org").
// Requests time out after the given duration.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// ProgramExists reports whether the registry knows the given program id.
// A non-2xx status means the program does not exist; only transport
// failures produce an error.
func (c *Client) ProgramExists(ctx context.Context, programID int64) (bool, error) {
	u := fmt.Sprintf("%s/api/labs/scratchpads/%d?projection=%s",
		c.base, programID, url.QueryEscape(existsProjection))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode >= 200 && res.StatusCode < 300, nil
}

type spinOffPage struct {
	Cursor      *string `json:"cursor"`
	Complete    *bool   `json:"complete"`
	Scratchpads []struct {
		URL string `json:"url"`
	} `json:"scratchpads"`
}

// TopSpinOffs walks the paginated top-forks listing for a program and
// returns the program ids of every spin-off, in listing order. Pages are
// fetched until the registry reports completion.
func (c *Client) TopSpinOffs(ctx context.Context, programID int64) ([]int64, error) {
	var ids []int64
	cursor := ""

	for page := 0; ; page++ {
		pg, err := c.fetchSpinOffPage(ctx, programID, page, cursor)
		if err != nil {
			return nil, err
		}

		for _, pad := range pg.Scratchpads {
			id, err := programIDFromURL(pad.URL)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}

		if *pg.Complete {
			return ids, nil
		}
		cursor = *pg.Cursor
	}
}

func (c *Client) fetchSpinOffPage(ctx context.Context, programID int64, page int, cursor string) (*spinOffPage, error) {
	q := url.Values{}
	q.Set("casing", "camel")
	q.Set("subject", "all")
	q.Set("sort", "1")
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(spinOffPageLimit))
	q.Set("lang", "en")
	q.Set("projection", spinOffProjection)
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	u := fmt.Sprintf("%s/api/internal/scratchpads/%d/top-forks?%s", c.base, programID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("top-forks page %d: unexpected status %d", page, res.StatusCode)
	}

	var pg spinOffPage
	if err := json.NewDecoder(res.Body).Decode(&pg); err != nil {
		return nil, fmt.Errorf("top-forks page %d: %w", page, err)
	}

	// The registry occasionally returns partial documents; treat a page
	// missing any expected field as an error rather than guessing.
	if pg.Cursor == nil || pg.Complete == nil || pg.Scratchpads == nil {
		return nil, fmt.Errorf("top-forks page %d: incomplete response", page)
	}

	return &pg, nil
}

func programIDFromURL(raw string) (int64, error) {
	idx := strings.LastIndexByte(raw, '/')
	id, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("scratchpad url %q: %w", raw, err)
	}
	return id, nil
}

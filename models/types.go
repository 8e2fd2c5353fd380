package models

import "time"

// User privilege levels, ordered. A removed user keeps their row but loses
// all access; an admin can manage contests without being a judge.
type UserLevel int

const (
	LevelRemoved UserLevel = 0
	LevelMember  UserLevel = 1
	LevelAdmin   UserLevel = 2
)

// Field length limits, enforced by trim-then-truncate on writes.
const (
	MaxNameLen        = 255
	MaxDescriptionLen = 500
	MaxFeedbackLen    = 5000
)

// Request types

type CreateUserRequest struct {
	Name  string    `json:"name"`
	KAID  string    `json:"kaid"`
	Level UserLevel `json:"level"`
}

type SetUserLevelRequest struct {
	Level UserLevel `json:"level"`
}

type CriterionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

type CreateContestRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ProgramID   int64            `json:"program_id"`
	EndDate     int64            `json:"end_date"` // unix millis
	Criteria    []CriterionInput `json:"criteria"`
	Brackets    []string         `json:"brackets"`
	Judges      []string         `json:"judges"` // user ids
}

type UpdateContestInfoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateEndDateRequest struct {
	EndDate int64 `json:"end_date"` // unix millis
}

type AddBracketRequest struct {
	Name string `json:"name"`
}

type AddEntryRequest struct {
	ProgramID int64 `json:"program_id"`
}

type SetEntryBracketRequest struct {
	// Null clears the entry's bracket.
	BracketID *string `json:"bracket_id"`
}

// One per criterion; the set of ids must match the contest's criteria exactly.
type VoteItem struct {
	CriterionID string `json:"id"`
	Score       int    `json:"score"`
}

type CastVoteRequest struct {
	Votes    []VoteItem `json:"votes"`
	Feedback string     `json:"feedback"`
}

// Response types

type CreateUserResponse struct {
	User         User   `json:"user"`
	SessionToken string `json:"session_token"`
}

type SessionTokenResponse struct {
	SessionToken string `json:"session_token"`
}

type AddEntryResponse struct {
	Entry Entry `json:"entry"`
	IsNew bool  `json:"is_new"`
}

type ImportSpinOffsResponse struct {
	Imported []Entry `json:"imported"`
	Skipped  int     `json:"skipped"`
}

type CastVoteResponse struct {
	Message string `json:"message"`
}

type RandomEntryResponse struct {
	Entry           *Entry `json:"entry"`
	JudgingFinished bool   `json:"judging_finished"`
}

// Domain types

type User struct {
	ID    string    `json:"id"`
	KAID  string    `json:"kaid"`
	Name  string    `json:"name"`
	Level UserLevel `json:"level"`
}

type Criterion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
}

type Bracket struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Entry struct {
	ID        string   `json:"id"`
	ProgramID int64    `json:"program_id"`
	Bracket   *Bracket `json:"bracket"`
	// Whether the viewing judge has already voted on this entry.
	UserHasJudged bool `json:"user_has_judged"`
}

// Contest is the full aggregate as loaded for one request. Counts are
// recomputed from storage on every fetch; there is no stored status flag.
type Contest struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	ProgramID        int64       `json:"program_id"`
	EndDate          time.Time   `json:"end_date"`
	CreatedAt        time.Time   `json:"created_at"`
	Criteria         []Criterion `json:"criteria"`
	Brackets         []Bracket   `json:"brackets"`
	Judges           []User      `json:"judges"`
	EntryCount       int         `json:"entry_count"`
	JudgedEntryCount int         `json:"judged_entry_count"`
}

// ContestBrief is the listing shape: no criteria/brackets/judges.
type ContestBrief struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ProgramID        int64     `json:"program_id"`
	EndDate          time.Time `json:"end_date"`
	CreatedAt        time.Time `json:"created_at"`
	EntryCount       int       `json:"entry_count"`
	JudgedEntryCount int       `json:"judged_entry_count"`
}

// ContestView decorates a Contest with the viewer-specific derived flags.
type ContestView struct {
	Contest
	EndsIn            string `json:"ends_in"`
	UserCanJudge      bool   `json:"user_can_judge"`
	UserCanViewResult bool   `json:"user_can_view_results"`
	// Number of entries the viewing judge has voted on; null for non-judges.
	UserJudgedEntryCount *int `json:"user_judged_entry_count"`
}

// EntryResult is one leaderboard row: the average of complete per-judge
// weighted totals for an entry.
type EntryResult struct {
	EntryID   string  `json:"entry_id"`
	ProgramID int64   `json:"program_id"`
	Average   float64 `json:"average"`
}

// IsJudge reports whether the user is on the contest's judge roster.
// Membership is independent of privilege level.
func (c *Contest) IsJudge(u User) bool {
	for _, j := range c.Judges {
		if j.ID == u.ID {
			return true
		}
	}
	return false
}

// IsJudgeable reports whether the viewer may cast votes right now: the
// contest has entries, is not fully judged, is past its end date, and the
// viewer is a judge.
func (c *Contest) IsJudgeable(viewer User, now time.Time) bool {
	return c.EntryCount > 0 && c.JudgedEntryCount != c.EntryCount &&
		now.After(c.EndDate) && c.IsJudge(viewer)
}

// ResultsDisclosed reports whether the viewer may see the leaderboard:
// admins always; judges once every judge has voted on every entry and the
// contest is over.
func (c *Contest) ResultsDisclosed(viewer User, now time.Time) bool {
	if viewer.Level >= LevelAdmin {
		return true
	}
	return c.EntryCount > 0 && c.JudgedEntryCount == c.EntryCount &&
		now.After(c.EndDate) && c.IsJudge(viewer)
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

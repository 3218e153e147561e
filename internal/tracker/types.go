// Package tracker drives a browser against a team's tracker page and turns the rendered DOM into
// structured team and match records.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound means the tracker site reports no such team.
	ErrNotFound = errors.New("tracker id not found")
	// ErrPageLoadTimeout means the profile page never became ready.
	ErrPageLoadTimeout = errors.New("page did not load")
	// ErrFieldMissing means a required element never resolved.
	ErrFieldMissing = errors.New("required field missing")
)

type Result string

const (
	Win  Result = "Win"
	Draw Result = "Draw"
	Loss Result = "Loss"
)

// ResultFromScore is the result of a match from the home team's point of view.
func ResultFromScore(home, away int) Result {
	switch {
	case home > away:
		return Win
	case home == away:
		return Draw
	default:
		return Loss
	}
}

type TeamStats struct {
	GamesPlayed   int     `json:"games_played"`
	GamesWon      int     `json:"games_won"`
	GamesLost     int     `json:"games_lost"`
	WinPercentage float64 `json:"win_percentage"`
}

type MatchSummary struct {
	Index     int     `json:"index"`
	HomeTeam  string  `json:"home_team"`
	AwayTeam  string  `json:"away_team"`
	HomeScore int     `json:"home_score"`
	AwayScore int     `json:"away_score"`
	Result    Result  `json:"result"`
	Date      *string `json:"date"`
}

// StatValue holds a single side of a statistic row, it is either an integer or free text
// (ex. "54%").
type StatValue struct {
	Int     int
	Text    string
	Numeric bool
}

func IntStat(v int) StatValue {
	return StatValue{Int: v, Numeric: true}
}

func TextStat(v string) StatValue {
	return StatValue{Text: v}
}

// ParseStatValue keeps digit-only text as an integer and anything else as text.
func ParseStatValue(text string) StatValue {
	if text != "" && isDigits(text) {
		n, err := strconv.Atoi(text)
		if err == nil {
			return IntStat(n)
		}
	}
	return TextStat(text)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (v StatValue) String() string {
	if v.Numeric {
		return strconv.Itoa(v.Int)
	}
	return v.Text
}

func (v StatValue) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Int)
	}
	return json.Marshal(v.Text)
}

func (v *StatValue) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = IntStat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("stat value must be an integer or a string: %w", err)
	}
	*v = TextStat(s)
	return nil
}

type StatPair struct {
	Home StatValue `json:"home"`
	Away StatValue `json:"away"`
}

type MatchStatistics struct {
	HomeTeam string              `json:"home_team"`
	AwayTeam string              `json:"away_team"`
	Stats    map[string]StatPair `json:"stats"`
}

func (s *MatchStatistics) Empty() bool {
	return s == nil || len(s.Stats) == 0
}

const NoAssist = "No assist"

type GoalEvent struct {
	Time   string `json:"time"`
	Scorer string `json:"scorer"`
	Team   string `json:"team"`
	Assist string `json:"assist"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// ScrapeResult is everything known about one tracked team at one point in time.
type ScrapeResult struct {
	Status           Status           `json:"status"`
	Message          string           `json:"message,omitempty"`
	TeamName         string           `json:"team_name,omitempty"`
	TeamStats        *TeamStats       `json:"team_stats,omitempty"`
	Matches          []MatchSummary   `json:"matches,omitempty"`
	Form             []Result         `json:"form,omitempty"`
	RecentMatch      *MatchSummary    `json:"recent_match,omitempty"`
	RecentMatchStats *MatchStatistics `json:"recent_match_stats,omitempty"`
	RecentMatchGoals []GoalEvent      `json:"recent_match_goals,omitempty"`
}

func Pending(message string) ScrapeResult {
	return ScrapeResult{Status: StatusPending, Message: message}
}

// Failed converts err into an error result, the message is meant for API consumers.
func Failed(err error) ScrapeResult {
	message := err.Error()
	switch {
	case errors.Is(err, ErrNotFound):
		message = "Invalid tracker ID or page did not load"
	case errors.Is(err, ErrPageLoadTimeout):
		message = "Invalid tracker ID or page did not load"
	case errors.Is(err, ErrFieldMissing):
		message = "Could not read team page"
	}
	return ScrapeResult{Status: StatusError, Message: message}
}

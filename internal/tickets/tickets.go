// Package tickets keeps match tickets: a public code that anyone can share plus a secret token
// that gates reading and updating the match result. Tickets live in memory for the lifetime of
// the process.
package tickets

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/chrono"
	"dlstracker-backend/internal/components/telemetry"
)

const (
	report_store_create = "store.create"
	report_store_update = "store.update"
	report_store_count  = "store.count"
)

var (
	ErrMalformedCode  = errors.New("invalid match code format")
	ErrTicketNotFound = errors.New("match not found")
	ErrForbidden      = errors.New("invalid token")
	ErrNoMatchData    = errors.New("match data must not be null")
)

// maximum number of public codes tried before giving up on a collision
const maxCreateAttempts = 32

type Ticket struct {
	Code      string
	Token     string
	Player1   string
	Player2   string
	TeamA     string
	TeamB     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	// ResultFetched is true iff MatchData is set.
	ResultFetched bool
	MatchData     json.RawMessage
}

type CreateParams struct {
	Player1 string
	Player2 string
	TeamA   string
	TeamB   string
}

type Store struct {
	rand RandomAPI
	time chrono.API
	tel  telemetry.API

	mutex   sync.Mutex
	tickets map[string]*Ticket
}

type StoreOption func(s *Store)

func WithCustomRandomAPI(rand RandomAPI) StoreOption {
	return func(s *Store) {
		s.rand = rand
	}
}

func WithCustomTimeAPI(time chrono.API) StoreOption {
	return func(s *Store) {
		s.time = time
	}
}

func NewStore(tel telemetry.API, options ...StoreOption) *Store {
	assert.NotNil(tel)
	s := &Store{
		rand:    defaultRandomAPI{},
		time:    chrono.NewStandardImpl(),
		tel:     tel,
		tickets: map[string]*Ticket{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// FullCode is the shareable form of a ticket, CODE@[TOKEN].
func FullCode(code, token string) string {
	return fmt.Sprintf("%s@[%s]", code, token)
}

// ParseFullCode splits a full code into its public code and token.
func ParseFullCode(full string) (code, token string, err error) {
	parts := strings.Split(full, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedCode, full)
	}
	return parts[0], strings.Trim(parts[1], "[]"), nil
}

// Create stores a new ticket and returns its full code, the only time the token is disclosed.
func (s *Store) Create(params CreateParams) (string, error) {
	token, err := s.rand.Token()
	if err != nil {
		s.tel.ReportBroken(report_store_create, fmt.Errorf("generate token: %w", err))
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code, err := s.rand.MatchCode()
		if err != nil {
			s.tel.ReportBroken(report_store_create, fmt.Errorf("generate match code: %w", err))
			return "", err
		}
		if _, taken := s.tickets[code]; taken {
			continue
		}

		s.tickets[code] = &Ticket{
			Code:      code,
			Token:     token,
			Player1:   params.Player1,
			Player2:   params.Player2,
			TeamA:     params.TeamA,
			TeamB:     params.TeamB,
			CreatedAt: s.time.Now(),
		}
		s.tel.ReportCount(report_store_count, int64(len(s.tickets)))
		return FullCode(code, token), nil
	}

	err = fmt.Errorf("no free match code after %d attempts", maxCreateAttempts)
	s.tel.ReportBroken(report_store_create, err, len(s.tickets))
	return "", err
}

// authorize must be called with the mutex held.
func (s *Store) authorize(code, token string) (*Ticket, error) {
	ticket, ok := s.tickets[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, code)
	}
	if subtle.ConstantTimeCompare([]byte(ticket.Token), []byte(token)) != 1 {
		return nil, ErrForbidden
	}
	return ticket, nil
}

func (t *Ticket) clone() Ticket {
	out := *t
	if t.MatchData != nil {
		out.MatchData = append(json.RawMessage(nil), t.MatchData...)
	}
	if t.UpdatedAt != nil {
		updated := *t.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}

// Lookup returns a copy of the ticket addressed by a full code.
func (s *Store) Lookup(full string) (Ticket, error) {
	code, token, err := ParseFullCode(full)
	if err != nil {
		return Ticket{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	ticket, err := s.authorize(code, token)
	if err != nil {
		return Ticket{}, err
	}
	return ticket.clone(), nil
}

type MatchResult struct {
	Pending   bool
	HomeTeam  string
	AwayTeam  string
	MatchData json.RawMessage
}

// Result is the stored match data, pending until the first update.
func (s *Store) Result(full string) (MatchResult, error) {
	ticket, err := s.Lookup(full)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		Pending:   !ticket.ResultFetched,
		HomeTeam:  ticket.TeamA,
		AwayTeam:  ticket.TeamB,
		MatchData: ticket.MatchData,
	}, nil
}

type MatchStats struct {
	Pending  bool
	HomeTeam string
	AwayTeam string
	Stats    json.RawMessage
	Goals    json.RawMessage
}

var emptyList = json.RawMessage("[]")

// Stats is the stats and goals subset of the stored match data. It stays pending until match
// data containing a "stats" key has been stored.
func (s *Store) Stats(full string) (MatchStats, error) {
	ticket, err := s.Lookup(full)
	if err != nil {
		return MatchStats{}, err
	}
	out := MatchStats{
		Pending:  true,
		HomeTeam: ticket.TeamA,
		AwayTeam: ticket.TeamB,
	}
	if !ticket.ResultFetched {
		return out, nil
	}

	var fields map[string]json.RawMessage
	err = json.Unmarshal(ticket.MatchData, &fields)
	if err != nil {
		// match data is not an object, there are no stats to show
		return out, nil
	}
	stats, ok := fields["stats"]
	if !ok {
		return out, nil
	}
	out.Pending = false
	out.Stats = stats
	out.Goals = emptyList
	if goals, ok := fields["goals"]; ok {
		out.Goals = goals
	}
	return out, nil
}

// Update replaces the match data of a ticket, every update fully replaces the previous one.
func (s *Store) Update(code, token string, matchData json.RawMessage) error {
	trimmed := bytes.TrimSpace(matchData)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrNoMatchData
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	ticket, err := s.authorize(code, token)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			s.tel.ReportWarning(report_store_update, "token mismatch", code)
		}
		return err
	}

	now := s.time.Now()
	ticket.MatchData = append(json.RawMessage(nil), trimmed...)
	ticket.ResultFetched = true
	ticket.UpdatedAt = &now
	return nil
}

// Count is the number of tickets ever created.
func (s *Store) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.tickets)
}

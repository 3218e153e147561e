package tickets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"dlstracker-backend/internal/components/chrono/chronotest"
	"dlstracker-backend/internal/components/telemetry/telemetrytest"

	"github.com/stretchr/testify/require"
)

// fakeRandom hands out the given codes in order, then repeats the last one.
type fakeRandom struct {
	mutex sync.Mutex
	codes []string
	token string
	err   error
}

func (f *fakeRandom) MatchCode() (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return "", f.err
	}
	code := f.codes[0]
	if len(f.codes) > 1 {
		f.codes = f.codes[1:]
	}
	return code, nil
}

func (f *fakeRandom) Token() (string, error) {
	return f.token, nil
}

const testToken = "AbCdEfGh12345678"

func newTestStore(codes ...string) *Store {
	return NewStore(
		&telemetrytest.Recorder{},
		WithCustomRandomAPI(&fakeRandom{codes: codes, token: testToken}),
		WithCustomTimeAPI(chronotest.NewClock()),
	)
}

var testParams = CreateParams{Player1: "alice", Player2: "bob", TeamA: "Red Lions", TeamB: "Blue Sharks"}

func TestLookup(t *testing.T) {
	store := newTestStore("ARN123")
	full, err := store.Create(testParams)
	require.NoError(t, err)
	require.Equal(t, "ARN123@[AbCdEfGh12345678]", full)

	ticket, err := store.Lookup(full)
	require.NoError(t, err)
	require.Equal(t, "ARN123", ticket.Code)
	require.Equal(t, "Red Lions", ticket.TeamA)
	require.False(t, ticket.ResultFetched)

	_, err = store.Lookup("ARN123@[XXXXXXXXXXXXXXXX]")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = store.Lookup("BAD")
	require.ErrorIs(t, err, ErrMalformedCode)

	_, err = store.Lookup("ARN1@23@[x]")
	require.ErrorIs(t, err, ErrMalformedCode)

	_, err = store.Lookup(fmt.Sprintf("ARN999@[%s]", testToken))
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCreateRetriesCollision(t *testing.T) {
	store := newTestStore("ARN001", "ARN001", "ARN002")
	first, err := store.Create(testParams)
	require.NoError(t, err)
	second, err := store.Create(testParams)
	require.NoError(t, err)

	require.Equal(t, "ARN001@[AbCdEfGh12345678]", first)
	require.Equal(t, "ARN002@[AbCdEfGh12345678]", second)
	require.Equal(t, 2, store.Count())
}

func TestCreateGivesUp(t *testing.T) {
	store := newTestStore("ARN001")
	_, err := store.Create(testParams)
	require.NoError(t, err)
	_, err = store.Create(testParams)
	require.Error(t, err)
	require.Equal(t, 1, store.Count())
}

func TestCreateRandomFailure(t *testing.T) {
	tel := &telemetrytest.Recorder{}
	store := NewStore(tel, WithCustomRandomAPI(&fakeRandom{err: errors.New("entropy exhausted"), token: testToken}))
	_, err := store.Create(testParams)
	require.Error(t, err)
	require.True(t, tel.Has(telemetrytest.KindBroken, report_store_create))
}

func TestUpdateThenRead(t *testing.T) {
	store := newTestStore("ARN123")
	full, err := store.Create(testParams)
	require.NoError(t, err)

	res, err := store.Result(full)
	require.NoError(t, err)
	require.True(t, res.Pending)
	require.Nil(t, res.MatchData)

	first := json.RawMessage(`{"score":"2-1","stats":{"possession":{"home":55,"away":45}}}`)
	require.NoError(t, store.Update("ARN123", testToken, first))

	res, err = store.Result(full)
	require.NoError(t, err)
	require.False(t, res.Pending)
	require.JSONEq(t, string(first), string(res.MatchData))
	require.Equal(t, "Red Lions", res.HomeTeam)
	require.Equal(t, "Blue Sharks", res.AwayTeam)

	ticket, err := store.Lookup(full)
	require.NoError(t, err)
	require.True(t, ticket.ResultFetched)
	require.NotNil(t, ticket.UpdatedAt)

	second := json.RawMessage(`{"score":"0-0"}`)
	require.NoError(t, store.Update("ARN123", testToken, second))
	res, err = store.Result(full)
	require.NoError(t, err)
	require.JSONEq(t, string(second), string(res.MatchData))
}

func TestUpdateAuthorization(t *testing.T) {
	store := newTestStore("ARN123")
	_, err := store.Create(testParams)
	require.NoError(t, err)

	data := json.RawMessage(`{"score":"1-0"}`)
	require.ErrorIs(t, store.Update("ARN999", testToken, data), ErrTicketNotFound)
	require.ErrorIs(t, store.Update("ARN123", "wrong", data), ErrForbidden)
	require.ErrorIs(t, store.Update("ARN123", testToken, json.RawMessage("null")), ErrNoMatchData)
	require.ErrorIs(t, store.Update("ARN123", testToken, nil), ErrNoMatchData)

	res, err := store.Result(FullCode("ARN123", testToken))
	require.NoError(t, err)
	require.True(t, res.Pending)
}

func TestStats(t *testing.T) {
	store := newTestStore("ARN123")
	full, err := store.Create(testParams)
	require.NoError(t, err)

	stats, err := store.Stats(full)
	require.NoError(t, err)
	require.True(t, stats.Pending)

	require.NoError(t, store.Update("ARN123", testToken, json.RawMessage(`{"score":"1-0"}`)))
	stats, err = store.Stats(full)
	require.NoError(t, err)
	require.True(t, stats.Pending, "match data without stats")

	require.NoError(t, store.Update("ARN123", testToken, json.RawMessage(`{"stats":{"shots":{"home":3,"away":1}}}`)))
	stats, err = store.Stats(full)
	require.NoError(t, err)
	require.False(t, stats.Pending)
	require.JSONEq(t, `{"shots":{"home":3,"away":1}}`, string(stats.Stats))
	require.JSONEq(t, `[]`, string(stats.Goals))

	require.NoError(t, store.Update("ARN123", testToken, json.RawMessage(`{"stats":{},"goals":[{"scorer":"Smith"}]}`)))
	stats, err = store.Stats(full)
	require.NoError(t, err)
	require.JSONEq(t, `[{"scorer":"Smith"}]`, string(stats.Goals))
}

func TestDefaultRandomAPI(t *testing.T) {
	r := defaultRandomAPI{}
	for i := 0; i < 20; i++ {
		code, err := r.MatchCode()
		require.NoError(t, err)
		require.Regexp(t, `^ARN\d{3}$`, code)
	}
}

package resultcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dlstracker-backend/internal/components/chrono/chronotest"
	"dlstracker-backend/internal/components/telemetry/telemetrytest"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tracker"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	calls   atomic.Int64
	running atomic.Int64
	maxSeen atomic.Int64
	// when non-nil every scrape blocks until it is closed
	release chan struct{}
	result  func(id identity.TrackedIdentity, call int64) tracker.ScrapeResult
}

func (f *fakeScraper) Scrape(ctx context.Context, id identity.TrackedIdentity) tracker.ScrapeResult {
	call := f.calls.Add(1)
	running := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if running <= seen || f.maxSeen.CompareAndSwap(seen, running) {
			break
		}
	}

	if f.release != nil {
		<-f.release
	}
	if f.result != nil {
		return f.result(id, call)
	}
	return tracker.ScrapeResult{
		Status:   tracker.StatusSuccess,
		TeamName: fmt.Sprintf("team %s #%d", id, call),
	}
}

func mustIdentity(t testing.TB, raw string) identity.TrackedIdentity {
	t.Helper()
	id, err := identity.Parse(raw)
	require.NoError(t, err)
	return id
}

func waitFor(t testing.TB, cache *Cache, id identity.TrackedIdentity) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	require.NoError(t, cache.Wait(ctx, id))
}

func TestCacheFreshness(t *testing.T) {
	clock := chronotest.NewClock()
	scraper := &fakeScraper{}
	cache := NewCache(scraper, &telemetrytest.Recorder{}, WithCustomTimeAPI(clock))
	id := mustIdentity(t, "abcd1234")
	ctx := context.Background()

	require.Equal(t, tracker.Pending(MessageFetchStarted), cache.Get(ctx, id))
	waitFor(t, cache, id)

	first := cache.Get(ctx, id)
	require.Equal(t, tracker.StatusSuccess, first.Status)
	require.EqualValues(t, 1, scraper.calls.Load())

	clock.Advance(time.Minute*5 - time.Second)
	if diff := cmp.Diff(first, cache.Get(ctx, id)); diff != "" {
		t.Fatalf("cached payload changed (-want +got):\n%s", diff)
	}
	require.EqualValues(t, 1, scraper.calls.Load())

	clock.Advance(time.Second)
	require.Equal(t, tracker.Pending(MessageFetchStarted), cache.Get(ctx, id))
	waitFor(t, cache, id)
	require.EqualValues(t, 2, scraper.calls.Load())

	second := cache.Get(ctx, id)
	require.Equal(t, fmt.Sprintf("team %s #2", id), second.TeamName)
}

func TestCacheSingleInflight(t *testing.T) {
	scraper := &fakeScraper{release: make(chan struct{})}
	cache := NewCache(scraper, &telemetrytest.Recorder{})
	id := mustIdentity(t, "abcd1234")

	const callers = 50
	var started atomic.Int64
	var fetching atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := cache.Get(context.Background(), id)
			if res.Status != tracker.StatusPending {
				return
			}
			switch res.Message {
			case MessageFetchStarted:
				started.Add(1)
			case MessageFetching:
				fetching.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, started.Load())
	require.EqualValues(t, callers-1, fetching.Load())
	require.Equal(t, 1, cache.InFlight())

	close(scraper.release)
	waitFor(t, cache, id)
	require.EqualValues(t, 1, scraper.calls.Load())
	require.Equal(t, 0, cache.InFlight())
	require.Equal(t, tracker.StatusSuccess, cache.Get(context.Background(), id).Status)
}

// pausingStore holds the next Load after it has read the store, until resume is closed.
type pausingStore struct {
	*MemoryStore
	pauseNext atomic.Bool
	paused    chan struct{}
	resume    chan struct{}
}

func (s *pausingStore) Load(ctx context.Context, id identity.TrackedIdentity) (Entry, bool, error) {
	entry, ok, err := s.MemoryStore.Load(ctx, id)
	if s.pauseNext.CompareAndSwap(true, false) {
		close(s.paused)
		<-s.resume
	}
	return entry, ok, err
}

func TestCacheGetAfterScrapeFinishes(t *testing.T) {
	store := &pausingStore{
		MemoryStore: NewMemoryStore(),
		paused:      make(chan struct{}),
		resume:      make(chan struct{}),
	}
	scraper := &fakeScraper{release: make(chan struct{})}
	cache := NewCache(scraper, &telemetrytest.Recorder{}, WithStore(store))
	id := mustIdentity(t, "abcd1234")
	ctx := context.Background()

	require.Equal(t, tracker.Pending(MessageFetchStarted), cache.Get(ctx, id))

	// the second caller misses the store, then the scrape saves and finishes before it locks
	store.pauseNext.Store(true)
	second := make(chan tracker.ScrapeResult, 1)
	go func() {
		second <- cache.Get(ctx, id)
	}()
	<-store.paused
	close(scraper.release)
	waitFor(t, cache, id)
	close(store.resume)

	res := <-second
	require.Equal(t, tracker.StatusSuccess, res.Status)
	require.Equal(t, fmt.Sprintf("team %s #1", id), res.TeamName)
	require.EqualValues(t, 1, scraper.calls.Load())
	require.Equal(t, 0, cache.InFlight())
}

func TestCacheStoresErrors(t *testing.T) {
	scraper := &fakeScraper{
		result: func(identity.TrackedIdentity, int64) tracker.ScrapeResult {
			return tracker.Failed(tracker.ErrNotFound)
		},
	}
	cache := NewCache(scraper, &telemetrytest.Recorder{}, WithCustomTimeAPI(chronotest.NewClock()))
	id := mustIdentity(t, "zzzz9999")

	cache.Get(context.Background(), id)
	waitFor(t, cache, id)

	res := cache.Get(context.Background(), id)
	require.Equal(t, tracker.StatusError, res.Status)
	require.NotEmpty(t, res.Message)
	require.EqualValues(t, 1, scraper.calls.Load())

	count, err := cache.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCacheRecoversScraperPanic(t *testing.T) {
	scraper := &fakeScraper{
		result: func(identity.TrackedIdentity, int64) tracker.ScrapeResult {
			panic("boom")
		},
	}
	cache := NewCache(scraper, &telemetrytest.Recorder{})
	id := mustIdentity(t, "abcd1234")

	cache.Get(context.Background(), id)
	waitFor(t, cache, id)
	require.Equal(t, tracker.StatusError, cache.Get(context.Background(), id).Status)
}

func TestCacheMaxConcurrent(t *testing.T) {
	scraper := &fakeScraper{release: make(chan struct{})}
	cache := NewCache(scraper, &telemetrytest.Recorder{}, WithMaxConcurrent(1))

	ids := []identity.TrackedIdentity{
		mustIdentity(t, "aaaa1111"),
		mustIdentity(t, "bbbb2222"),
		mustIdentity(t, "cccc3333"),
	}
	for _, id := range ids {
		require.Equal(t, MessageFetchStarted, cache.Get(context.Background(), id).Message)
	}
	require.Equal(t, 3, cache.InFlight())

	close(scraper.release)
	for _, id := range ids {
		waitFor(t, cache, id)
	}
	require.EqualValues(t, 3, scraper.calls.Load())
	require.EqualValues(t, 1, scraper.maxSeen.Load())
}

func TestCacheSearch(t *testing.T) {
	names := map[identity.TrackedIdentity]string{
		mustIdentity(t, "aaaa1111"): "Red Lions FC",
		mustIdentity(t, "bbbb2222"): "Blue Sharks",
	}
	scraper := &fakeScraper{
		result: func(id identity.TrackedIdentity, _ int64) tracker.ScrapeResult {
			return tracker.ScrapeResult{Status: tracker.StatusSuccess, TeamName: names[id]}
		},
	}
	cache := NewCache(scraper, &telemetrytest.Recorder{})
	for id := range names {
		cache.Get(context.Background(), id)
		waitFor(t, cache, id)
	}

	entry, ok, err := cache.Search(context.Background(), "red lions fc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mustIdentity(t, "aaaa1111"), entry.Identity)

	_, ok, err = cache.Search(context.Background(), "Completely Different")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheSweeper(t *testing.T) {
	clock := chronotest.NewClock()
	cache := NewCache(&fakeScraper{}, &telemetrytest.Recorder{}, WithCustomTimeAPI(clock))
	old := mustIdentity(t, "aaaa1111")
	recent := mustIdentity(t, "bbbb2222")

	cache.Get(context.Background(), old)
	waitFor(t, cache, old)
	clock.Advance(time.Hour)
	cache.Get(context.Background(), recent)
	waitFor(t, cache, recent)
	clock.Advance(time.Minute)

	cron := &chronotest.Cron{}
	require.NoError(t, cache.StartSweeper(cron, "@every 10m", time.Minute*30))
	require.Equal(t, []string{"@every 10m"}, cron.Specs())
	require.Equal(t, 1, cron.Fire("@every 10m"))

	count, err := cache.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	_, ok, err := cache.store.Load(context.Background(), recent)
	require.NoError(t, err)
	require.True(t, ok)
}

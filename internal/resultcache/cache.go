// Package resultcache serves scrape results for a freshness window and makes sure a team is
// never scraped by two sessions at once.
package resultcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/chrono"
	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tracker"
	"dlstracker-backend/lib/textutil"

	"golang.org/x/sync/semaphore"
)

const (
	report_cache_load     = "cache.load"
	report_cache_save     = "cache.save"
	report_cache_inflight = "cache.inflight"
	report_cache_sweep    = "cache.sweep"
	report_cache_search   = "cache.search"
)

const (
	MessageFetchStarted = "Data fetch started"
	MessageFetching     = "Data is being fetched"
)

// Scraper produces a finished (success or error) result for a team.
type Scraper interface {
	Scrape(ctx context.Context, id identity.TrackedIdentity) tracker.ScrapeResult
}

type Cache struct {
	scraper   Scraper
	store     Store
	time      chrono.API
	tel       telemetry.API
	freshness time.Duration
	sem       *semaphore.Weighted
	// sessions outlive the request that started them
	background context.Context

	mutex    sync.Mutex
	inflight map[identity.TrackedIdentity]chan struct{}
}

type Option func(c *Cache)

func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		c.freshness = d
	}
}

// WithMaxConcurrent bounds how many scrapes run at once across all teams, n <= 0 means no bound.
func WithMaxConcurrent(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithCustomTimeAPI(time chrono.API) Option {
	return func(c *Cache) {
		c.time = time
	}
}

// WithBackgroundContext sets the parent context of every scrape session.
func WithBackgroundContext(ctx context.Context) Option {
	return func(c *Cache) {
		c.background = ctx
	}
}

func NewCache(scraper Scraper, tel telemetry.API, options ...Option) *Cache {
	assert.NotNil(scraper)
	assert.NotNil(tel)

	c := &Cache{
		scraper:    scraper,
		store:      NewMemoryStore(),
		time:       chrono.NewStandardImpl(),
		tel:        tel,
		freshness:  time.Minute * 5,
		background: context.Background(),
		inflight:   map[identity.TrackedIdentity]chan struct{}{},
	}
	for _, opt := range options {
		opt(c)
	}
	assert.NotNil(c.store)
	assert.NotNil(c.time)
	return c
}

func (c *Cache) fresh(entry Entry) bool {
	return chrono.Since(c.time, entry.FetchedAt) < c.freshness
}

func (c *Cache) cached(ctx context.Context, id identity.TrackedIdentity) (tracker.ScrapeResult, bool) {
	entry, ok, err := c.store.Load(ctx, id)
	if err != nil {
		c.tel.ReportBroken(report_cache_load, err, id.String())
		return tracker.ScrapeResult{}, false
	}
	if !ok || !c.fresh(entry) {
		return tracker.ScrapeResult{}, false
	}
	return entry.Result, true
}

// Get returns the cached result of id when it is fresh, otherwise it makes sure a scrape is
// running and returns a pending result. It never blocks on a scrape.
func (c *Cache) Get(ctx context.Context, id identity.TrackedIdentity) tracker.ScrapeResult {
	result, ok := c.cached(ctx, id)
	if ok {
		return result
	}

	c.mutex.Lock()
	if _, running := c.inflight[id]; running {
		c.mutex.Unlock()
		return tracker.Pending(MessageFetching)
	}
	// run saves before it clears its in-flight marker, so a scrape that finished since the first
	// load is visible now
	result, ok = c.cached(ctx, id)
	if ok {
		c.mutex.Unlock()
		return result
	}
	done := make(chan struct{})
	c.inflight[id] = done
	inflight := len(c.inflight)
	c.mutex.Unlock()

	c.tel.ReportCount(report_cache_inflight, int64(inflight))
	go c.run(id, done)

	return tracker.Pending(MessageFetchStarted)
}

func (c *Cache) run(id identity.TrackedIdentity, done chan struct{}) {
	defer func() {
		c.mutex.Lock()
		delete(c.inflight, id)
		inflight := len(c.inflight)
		c.mutex.Unlock()
		close(done)
		c.tel.ReportCount(report_cache_inflight, int64(inflight))
	}()

	var result tracker.ScrapeResult
	if c.sem != nil {
		err := c.sem.Acquire(c.background, 1)
		if err != nil {
			result = tracker.Failed(fmt.Errorf("waiting for a free browser: %w", err))
		} else {
			result = c.scrape(id)
			c.sem.Release(1)
		}
	} else {
		result = c.scrape(id)
	}

	err := c.store.Save(c.background, Entry{
		Identity:  id,
		FetchedAt: c.time.Now(),
		Result:    result,
	})
	if err != nil {
		c.tel.ReportBroken(report_cache_save, err, id.String())
	}
}

func (c *Cache) scrape(id identity.TrackedIdentity) (result tracker.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = tracker.Failed(fmt.Errorf("scrape panicked: %v", r))
		}
	}()
	return c.scraper.Scrape(c.background, id)
}

// Wait blocks until no scrape of id is in flight.
func (c *Cache) Wait(ctx context.Context, id identity.TrackedIdentity) error {
	c.mutex.Lock()
	done, ok := c.inflight[id]
	c.mutex.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight is the number of scrapes currently running or queued.
func (c *Cache) InFlight() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.inflight)
}

// Count is the number of teams with a stored result, fresh or not.
func (c *Cache) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

const searchThreshold = 0.85

// Search finds the cached successful result whose team name is most similar to name. Only teams
// that were scraped before can be found.
func (c *Cache) Search(ctx context.Context, name string) (Entry, bool, error) {
	entries, err := c.store.All(ctx)
	if err != nil {
		c.tel.ReportBroken(report_cache_search, err, name)
		return Entry{}, false, err
	}

	type candidate struct {
		entry      Entry
		similarity float64
	}
	candidates := []candidate{}
	for _, e := range entries {
		if e.Result.Status != tracker.StatusSuccess || e.Result.TeamName == "" {
			continue
		}
		sim := textutil.Similarity(name, e.Result.TeamName)
		if sim >= searchThreshold {
			candidates = append(candidates, candidate{entry: e, similarity: sim})
		}
	}
	if len(candidates) == 0 {
		return Entry{}, false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].entry.FetchedAt.After(candidates[j].entry.FetchedAt)
	})
	return candidates[0].entry, true, nil
}

// StartSweeper evicts entries older than retention on the given cron schedule.
func (c *Cache) StartSweeper(cron chrono.CronAPI, spec string, retention time.Duration) error {
	return cron.Cron(spec, func() {
		c.Sweep(c.background, retention)
	})
}

// Sweep evicts entries fetched more than retention ago.
func (c *Cache) Sweep(ctx context.Context, retention time.Duration) int {
	removed, err := c.store.Evict(ctx, c.time.Now().Add(-retention))
	if err != nil {
		c.tel.ReportBroken(report_cache_sweep, err)
		return 0
	}
	if removed > 0 {
		c.tel.ReportDebug("evicted stale results", removed)
	}
	return removed
}

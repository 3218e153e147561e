package tracker

import (
	"context"
	"fmt"
	"time"

	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/identity"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("dlstracker.tracker")

const (
	report_session_run     = "session.run"
	report_session_release = "session.release"
)

type State int

const (
	StateCreated State = iota
	StateLoading
	StateValidating
	StateExtracting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateValidating:
		return "validating"
	case StateExtracting:
		return "extracting"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is a single scrape of one team with its own browser.
type Session struct {
	ID       string
	Identity identity.TrackedIdentity

	state     State
	browser   Browser
	extractor *Extractor
	opts      Options
	tel       telemetry.API
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) transition(next State) {
	s.tel.ReportDebug("session state", s.state.String(), next.String())
	s.state = next
}

// Run sequences the extraction steps. Only loading the page and finding the team name can fail
// the session, every other step degrades to a missing field.
func (s *Session) Run(ctx context.Context) (ScrapeResult, error) {
	s.transition(StateLoading)
	err := s.extractor.Load(ctx, s.Identity)
	if err != nil {
		return ScrapeResult{}, err
	}

	s.transition(StateValidating)
	// cards first so team name extraction can collect opponent names from them
	_, err = s.extractor.ExtractMatchCards(ctx)
	if err != nil {
		s.tel.ReportDebug("continuing without match cards", err)
	}
	teamName, err := s.extractor.ExtractTeamName(ctx)
	if err != nil {
		return ScrapeResult{}, err
	}

	s.transition(StateExtracting)
	result := ScrapeResult{
		Status:   StatusSuccess,
		TeamName: teamName,
	}

	stats, err := s.extractor.ExtractOverviewStats(ctx)
	if err == nil {
		result.TeamStats = &stats
	}

	result.Matches = s.extractor.ExtractMatchSummaries(s.opts.MatchLimit)
	result.Form = ExtractForm(result.Matches, s.opts.FormLimit)

	var recent *MatchSummary
	if len(result.Matches) > 0 && result.Matches[0].Index == 0 {
		recent = &result.Matches[0]
		copied := *recent
		result.RecentMatch = &copied
	}

	detail := s.extractor.ExtractMatchDetail(ctx, 0, recent)
	if !detail.Empty() {
		result.RecentMatchStats = &detail
	}
	goals := s.extractor.ExtractGoals(0, recent)
	if len(goals) > 0 {
		result.RecentMatchGoals = goals
	}

	return result, nil
}

// Scraper runs scrape sessions, each one with a fresh browser from the factory.
type Scraper struct {
	factory   BrowserFactory
	selectors Selectors
	opts      Options
	timeout   time.Duration
	tel       telemetry.API
}

type ScraperOption func(s *Scraper)

func WithSelectors(sel Selectors) ScraperOption {
	return func(s *Scraper) {
		s.selectors = sel
	}
}

func WithOptions(opts Options) ScraperOption {
	return func(s *Scraper) {
		s.opts = opts
	}
}

// WithSessionTimeout bounds the wall clock time of a whole session.
func WithSessionTimeout(timeout time.Duration) ScraperOption {
	return func(s *Scraper) {
		s.timeout = timeout
	}
}

func NewScraper(factory BrowserFactory, tel telemetry.API, options ...ScraperOption) Scraper {
	assert.NotNil(factory)
	assert.NotNil(tel)

	s := Scraper{
		factory:   factory,
		selectors: DefaultSelectors(),
		opts:      DefaultOptions(),
		timeout:   time.Minute * 2,
		tel:       tel,
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

// Scrape runs one session for id. It never returns a pending result and never panics, failures
// are folded into an error status.
func (s Scraper) Scrape(ctx context.Context, id identity.TrackedIdentity) (result ScrapeResult) {
	sessionId := uuid.NewString()
	tel := telemetry.NewScopedAPI("session", s.tel).WithParams(sessionId)

	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionId),
		attribute.String("team_id", id.String()),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scrape session panicked: %v", r)
			s.tel.ReportBroken(report_session_run, err, id.String())
			span.SetStatus(codes.Error, err.Error())
			result = Failed(err)
		}
	}()

	browser, err := s.factory(ctx)
	if err != nil {
		s.tel.ReportBroken(report_session_run, fmt.Errorf("start browser: %w", err), id.String())
		span.SetStatus(codes.Error, err.Error())
		return Failed(fmt.Errorf("start browser: %w", err))
	}
	defer func() {
		err := browser.Close()
		if err != nil {
			s.tel.ReportWarning(report_session_release, err, id.String())
		}
	}()

	session := &Session{
		ID:        sessionId,
		Identity:  id,
		state:     StateCreated,
		browser:   browser,
		extractor: NewExtractor(browser, s.selectors, s.opts, tel),
		opts:      s.opts,
		tel:       tel,
	}

	result, err = session.Run(ctx)
	session.transition(StateDone)
	if err != nil {
		s.tel.ReportWarning(report_session_run, err, id.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Failed(err)
	}
	span.SetAttributes(
		attribute.String("team_name", result.TeamName),
		attribute.Int("matches", len(result.Matches)),
	)
	return result
}

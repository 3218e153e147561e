package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/lib/htmlutil"
	"dlstracker-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_load            = "extractor.load"
	report_extractor_match_cards     = "extractor.extract-match-cards"
	report_extractor_team_name       = "extractor.extract-team-name"
	report_extractor_overview        = "extractor.extract-overview-stats"
	report_extractor_match_summaries = "extractor.extract-match-summaries"
	report_extractor_match_detail    = "extractor.extract-match-detail"
	report_extractor_goals           = "extractor.extract-goals"
)

const Unknown = "Unknown"

// Options controls the timing and limits of an Extractor.
type Options struct {
	BaseURL string
	// SettleDelay is a fixed pause after navigation to let client side rendering finish.
	SettleDelay  time.Duration
	LoadTimeout  time.Duration
	FieldTimeout time.Duration
	PanelTimeout time.Duration
	// ToggleDelay is the pause after the alternate stats toggle before waiting again.
	ToggleDelay  time.Duration
	PollInterval time.Duration
	MatchLimit   int
	FormLimit    int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:      "https://tracker.ftgames.com",
		SettleDelay:  time.Second * 5,
		LoadTimeout:  time.Second * 10,
		FieldTimeout: time.Second * 10,
		PanelTimeout: time.Second * 5,
		ToggleDelay:  time.Millisecond * 1500,
		PollInterval: time.Millisecond * 250,
		MatchLimit:   10,
		FormLimit:    5,
	}
}

// Extractor reads one loaded tracker page. It is bound to a single browser and is not safe for
// concurrent use.
type Extractor struct {
	browser Browser
	sel     Selectors
	opts    Options
	tel     telemetry.API

	cardLocator Locator
	cards       *goquery.Selection
	teamName    string
	opponents   []string
}

func NewExtractor(browser Browser, sel Selectors, opts Options, tel telemetry.API) *Extractor {
	assert.NotNil(browser)
	assert.NotNil(tel)
	return &Extractor{
		browser: browser,
		sel:     sel,
		opts:    opts,
		tel:     tel,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Load navigates to the profile page of id and checks that the page exists.
func (e *Extractor) Load(ctx context.Context, id identity.TrackedIdentity) error {
	url := id.ProfileURL(e.opts.BaseURL)
	err := e.browser.Navigate(ctx, url)
	if err != nil {
		e.tel.ReportWarning(report_extractor_load, err, url)
		return fmt.Errorf("%w: navigate: %v", ErrPageLoadTimeout, err)
	}
	err = sleep(ctx, e.opts.SettleDelay)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoadTimeout, err)
	}

	err = e.browser.WaitReady(ctx, string(e.sel.Body), e.opts.LoadTimeout)
	if err != nil {
		e.tel.ReportWarning(report_extractor_load, err, url)
		return fmt.Errorf("%w: %v", ErrPageLoadTimeout, err)
	}

	doc, err := e.browser.Snapshot(ctx)
	if err != nil {
		e.tel.ReportWarning(report_extractor_load, err, url)
		return fmt.Errorf("%w: snapshot: %v", ErrPageLoadTimeout, err)
	}
	if e.sel.NotFoundText != "" && strings.Contains(doc.Text(), e.sel.NotFoundText) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ExtractMatchCards resolves the match cards once, later steps reuse the result.
func (e *Extractor) ExtractMatchCards(ctx context.Context) (int, error) {
	doc, err := e.browser.Snapshot(ctx)
	if err != nil {
		e.tel.ReportBroken(report_extractor_match_cards, err)
		return 0, err
	}
	cards, used, ok := ResolveDoc(doc, e.sel.Cards)
	if !ok {
		e.tel.ReportWarning(report_extractor_match_cards, "no match cards found")
		return 0, fmt.Errorf("%w: match cards", ErrFieldMissing)
	}
	e.cards = cards
	e.cardLocator = used
	e.tel.ReportDebug("found match cards", cards.Length(), string(used))
	return cards.Length(), nil
}

func (e *Extractor) card(index int) (*goquery.Selection, bool) {
	if e.cards == nil || index < 0 || index >= e.cards.Length() {
		return nil, false
	}
	return e.cards.Eq(index), true
}

// refreshCards re-reads the cached card list from a newer snapshot using the locator that
// matched originally.
func (e *Extractor) refreshCards(doc *goquery.Document) {
	if e.cardLocator == "" {
		return
	}
	cards := doc.Find(string(e.cardLocator))
	if cards.Length() > 0 {
		e.cards = cards
	}
}

// ExtractTeamName finds the tracked team's name and the opponent name of every card.
func (e *Extractor) ExtractTeamName(ctx context.Context) (string, error) {
	_, sel, err := Poll(ctx, e.browser, e.sel.TeamName, e.opts.FieldTimeout, e.opts.PollInterval)
	if err != nil {
		e.tel.ReportWarning(report_extractor_team_name, err)
		return "", err
	}
	name := htmlutil.CleanText(sel.First())
	if name == "" {
		return "", fmt.Errorf("%w: team name is empty", ErrFieldMissing)
	}
	e.teamName = name

	e.opponents = e.opponents[:0]
	if e.cards != nil {
		e.cards.Slice(0, min(e.cards.Length(), e.opts.MatchLimit)).Each(func(i int, card *goquery.Selection) {
			truncated := card.Find(string(e.sel.Opponent))
			opponent := ""
			if truncated.Length() > 1 {
				opponent = htmlutil.CleanText(truncated.Eq(1))
			}
			if opponent == "" {
				e.tel.ReportDebug("opponent name missing", i)
				opponent = Unknown
			}
			e.opponents = append(e.opponents, opponent)
		})
	}
	return name, nil
}

func (e *Extractor) opponent(index int) string {
	if index < len(e.opponents) {
		return e.opponents[index]
	}
	return Unknown
}

func parseOverview(sel *goquery.Selection) (TeamStats, error) {
	if sel.Length() < 4 {
		return TeamStats{}, fmt.Errorf("expected 4 values, got %d", sel.Length())
	}
	texts := htmlutil.CleanTexts(sel)
	played, err := strconv.Atoi(texts[0])
	if err != nil {
		return TeamStats{}, err
	}
	won, err := strconv.Atoi(texts[1])
	if err != nil {
		return TeamStats{}, err
	}
	lost, err := strconv.Atoi(texts[2])
	if err != nil {
		return TeamStats{}, err
	}
	percentage, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(texts[3], "%")), 64)
	if err != nil {
		return TeamStats{}, err
	}
	return TeamStats{
		GamesPlayed:   played,
		GamesWon:      won,
		GamesLost:     lost,
		WinPercentage: percentage,
	}, nil
}

// ExtractOverviewStats reads games played, won, lost and win percentage in that order.
func (e *Extractor) ExtractOverviewStats(ctx context.Context) (TeamStats, error) {
	doc, err := e.browser.Snapshot(ctx)
	if err != nil {
		e.tel.ReportBroken(report_extractor_overview, err)
		return TeamStats{}, err
	}
	for _, loc := range e.sel.Overview {
		stats, err := parseOverview(doc.Find(string(loc)))
		if err != nil {
			e.tel.ReportDebug("overview locator did not parse", string(loc), err)
			continue
		}
		return stats, nil
	}
	e.tel.ReportWarning(report_extractor_overview, "could not find team overview statistics")
	return TeamStats{}, fmt.Errorf("%w: overview stats", ErrFieldMissing)
}

func parseScore(text string) (int, int, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed score %q", text)
	}
	home, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", text, err)
	}
	away, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", text, err)
	}
	return home, away, nil
}

// ExtractMatchSummaries parses the score of each of the first limit cards, cards that cannot be
// parsed are reported and skipped.
func (e *Extractor) ExtractMatchSummaries(limit int) []MatchSummary {
	if e.cards == nil {
		return nil
	}
	summaries := []MatchSummary{}
	for i := 0; i < min(limit, e.cards.Length()); i++ {
		card := e.cards.Eq(i)

		scoreSel, _, ok := Resolve(card, e.sel.Score)
		if !ok {
			e.tel.ReportWarning(report_extractor_match_summaries, "score missing", i)
			continue
		}
		home, away, err := parseScore(htmlutil.CleanText(scoreSel.First()))
		if err != nil {
			e.tel.ReportWarning(report_extractor_match_summaries, err, i)
			continue
		}

		var date *string
		if dateSel, _, ok := Resolve(card, e.sel.Date); ok {
			text := htmlutil.CleanText(dateSel.First())
			if text != "" {
				date = &text
			}
		}

		summaries = append(summaries, MatchSummary{
			Index:     i,
			HomeTeam:  e.teamName,
			AwayTeam:  e.opponent(i),
			HomeScore: home,
			AwayScore: away,
			Result:    ResultFromScore(home, away),
			Date:      date,
		})
	}
	return summaries
}

func (e *Extractor) toggleScript(index int) string {
	return fmt.Sprintf(`(() => {
	let el = document.querySelectorAll(%s)[%d];
	if (el) {
		el.scrollIntoView({block: 'center'});
		setTimeout(() => {
			el.dispatchEvent(new MouseEvent("click", { bubbles: true }));
		}, 500);
	}
})()`, strconv.Quote(e.sel.StatsToggle), index)
}

func (e *Extractor) alternateToggleScript(index int) string {
	cardLocator := e.cardLocator
	if cardLocator == "" && len(e.sel.Cards) > 0 {
		cardLocator = e.sel.Cards[0]
	}
	return fmt.Sprintf(`(() => {
	let matches = document.querySelectorAll(%s);
	if (%d < matches.length) {
		let match = matches[%d];
		match.scrollIntoView({block: 'center'});
		setTimeout(() => {
			let svgs = match.querySelectorAll('svg');
			if (svgs.length > 0) {
				svgs[0].dispatchEvent(new MouseEvent("click", { bubbles: true, cancelable: true }));
			}
		}, 700);
	}
})()`, strconv.Quote(string(cardLocator)), index, index)
}

// openStatsPanel clicks the stats toggle of card index and returns the snapshot in which the
// panel is visible.
func (e *Extractor) openStatsPanel(ctx context.Context, index int) (*goquery.Document, *goquery.Selection, error) {
	err := e.browser.Evaluate(ctx, e.toggleScript(index))
	if err != nil {
		e.tel.ReportWarning(report_extractor_match_detail, fmt.Errorf("toggle: %w", err), index)
	}
	doc, panel, err := Poll(ctx, e.browser, e.sel.StatsPanel, e.opts.PanelTimeout, e.opts.PollInterval)
	if err == nil {
		return doc, panel, nil
	}

	e.tel.ReportDebug("stats panel did not appear, trying alternate toggle", index)
	err = e.browser.Evaluate(ctx, e.alternateToggleScript(index))
	if err != nil {
		e.tel.ReportWarning(report_extractor_match_detail, fmt.Errorf("alternate toggle: %w", err), index)
	}
	err = sleep(ctx, e.opts.ToggleDelay)
	if err != nil {
		return nil, nil, err
	}
	return Poll(ctx, e.browser, e.sel.StatsPanel, e.opts.PanelTimeout, e.opts.PollInterval)
}

// statRows returns the rows of the first stats container that has any, searching inside the
// panel before the rest of the document.
func (e *Extractor) statRows(doc *goquery.Document, panel *goquery.Selection) *goquery.Selection {
	for _, root := range []*goquery.Selection{panel, doc.Selection} {
		containers, _, ok := Resolve(root, e.sel.StatsContainer)
		if !ok {
			continue
		}
		for i := range containers.Nodes {
			rows := containers.Eq(i).Find(string(e.sel.StatRow))
			if rows.Length() > 0 {
				return rows
			}
		}
	}
	return nil
}

// ExtractMatchDetail opens the stats panel of card index and reads its rows. A panel that never
// opens yields empty statistics, not an error.
func (e *Extractor) ExtractMatchDetail(ctx context.Context, index int, summary *MatchSummary) MatchStatistics {
	stats := MatchStatistics{
		HomeTeam: e.teamName,
		AwayTeam: e.opponent(index),
		Stats:    map[string]StatPair{},
	}
	if summary != nil {
		stats.HomeTeam = summary.HomeTeam
		stats.AwayTeam = summary.AwayTeam
	}
	if _, ok := e.card(index); !ok {
		e.tel.ReportWarning(report_extractor_match_detail, "no match card for index", index)
		return stats
	}

	doc, panel, err := e.openStatsPanel(ctx, index)
	if err != nil {
		e.tel.ReportWarning(report_extractor_match_detail, fmt.Errorf("could not get stats panel to appear: %w", err), index)
		return stats
	}
	e.refreshCards(doc)

	rows := e.statRows(doc, panel)
	if rows == nil {
		e.tel.ReportWarning(report_extractor_match_detail, "no statistics rows found", index)
		return stats
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("p")
		if cells.Length() != 3 {
			return
		}
		label := textutil.NormalizeLabel(htmlutil.CleanText(cells.Eq(1)))
		if label == "" {
			return
		}
		stats.Stats[label] = StatPair{
			Home: ParseStatValue(htmlutil.CleanText(cells.Eq(0))),
			Away: ParseStatValue(htmlutil.CleanText(cells.Eq(2))),
		}
	})
	if len(stats.Stats) == 0 {
		e.tel.ReportWarning(report_extractor_match_detail, "statistics rows had no usable cells", index)
	}
	return stats
}

var assistWord = regexp.MustCompile(`(?i)assist`)

func (e *Extractor) parseGoal(entry *goquery.Selection, team string) (GoalEvent, bool) {
	goal := GoalEvent{Time: "?", Scorer: "", Team: team, Assist: NoAssist}

	if timeSel, _, ok := Resolve(entry, e.sel.GoalTime); ok {
		goal.Time = htmlutil.CleanText(timeSel.First())
	}
	if scorerSel, _, ok := Resolve(entry, e.sel.GoalScorer); ok {
		goal.Scorer = htmlutil.CleanText(scorerSel.First())
	}

	for _, text := range htmlutil.CleanTexts(entry.Find(string(e.sel.GoalAssist))) {
		if !strings.Contains(strings.ToLower(text), "assist") {
			continue
		}
		if name := strings.TrimSpace(assistWord.ReplaceAllString(text, "")); name != "" {
			goal.Assist = name
		}
		break
	}

	if goal.Time == "" || goal.Scorer == "" || goal.Scorer == Unknown {
		return goal, false
	}
	return goal, true
}

// ExtractGoals reads the goal entries of card index. Entry locators are tried in order and the
// first one that yields a usable goal wins.
func (e *Extractor) ExtractGoals(index int, summary *MatchSummary) []GoalEvent {
	card, ok := e.card(index)
	if !ok {
		e.tel.ReportWarning(report_extractor_goals, "no match card for index", index)
		return nil
	}
	team := e.teamName
	if summary != nil {
		team = summary.HomeTeam
	}

	for _, loc := range e.sel.GoalEntries {
		goals := []GoalEvent{}
		card.Find(string(loc)).Each(func(_ int, entry *goquery.Selection) {
			goal, ok := e.parseGoal(entry, team)
			if ok {
				goals = append(goals, goal)
			}
		})
		if len(goals) > 0 {
			return goals
		}
	}
	e.tel.ReportDebug("no goals found", index)
	return nil
}

// ExtractForm is the results of the first limit summaries.
func ExtractForm(summaries []MatchSummary, limit int) []Result {
	form := []Result{}
	for i, s := range summaries {
		if i >= limit {
			break
		}
		form = append(form, s.Result)
	}
	return form
}

package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Locator is a CSS selector for one candidate position of a field on the page.
type Locator string

// Resolve tries each locator against root in order and returns the first non-empty match.
// Absence is reported through ok, it is up to the caller whether that is fatal.
func Resolve(root *goquery.Selection, locators []Locator) (sel *goquery.Selection, used Locator, ok bool) {
	if root == nil {
		return nil, "", false
	}
	for _, loc := range locators {
		found := root.Find(string(loc))
		if found.Length() > 0 {
			return found, loc, true
		}
	}
	return nil, "", false
}

// ResolveDoc is Resolve over a whole document.
func ResolveDoc(doc *goquery.Document, locators []Locator) (*goquery.Selection, Locator, bool) {
	if doc == nil {
		return nil, "", false
	}
	return Resolve(doc.Selection, locators)
}

// Snapshotter returns the current state of a live DOM.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*goquery.Document, error)
}

// Poll re-snapshots the page until one of the locators resolves or timeout elapses. It returns
// the snapshot the match was found in so the caller can keep reading from it.
func Poll(
	ctx context.Context,
	snap Snapshotter,
	locators []Locator,
	timeout, interval time.Duration,
) (*goquery.Document, *goquery.Selection, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if interval <= 0 {
		interval = time.Millisecond * 100
	}

	var lastErr error
	for {
		doc, err := snap.Snapshot(ctx)
		if err == nil {
			sel, _, ok := ResolveDoc(doc, locators)
			if ok {
				return doc, sel, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, nil, fmt.Errorf("%w: %v (last snapshot error: %s)", ErrFieldMissing, locators, lastErr)
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrFieldMissing, locators)
		case <-time.After(interval):
		}
	}
}

// Selectors holds every locator the extractor uses, upstream markup drifts so these are kept
// in one place.
type Selectors struct {
	Body         Locator
	NotFoundText string

	Cards    []Locator
	TeamName []Locator
	// the opponent name is the second element matching this inside a card
	Opponent Locator
	Overview []Locator
	Score    []Locator
	Date     []Locator

	// StatsToggle is passed to document.querySelectorAll, the n-th match opens the n-th card's
	// stats panel.
	StatsToggle    string
	StatsPanel     []Locator
	StatsContainer []Locator
	StatRow        Locator

	GoalEntries []Locator
	GoalTime    []Locator
	GoalScorer  []Locator
	GoalAssist  Locator
}

func DefaultSelectors() Selectors {
	return Selectors{
		Body:         "body",
		NotFoundText: "Could not find player",

		Cards: []Locator{
			".bg-card.relative.m-2.rounded-md",
			".bg-card.m-2",
			".bg-card",
		},
		TeamName: []Locator{
			"span.font-HEAD.text-2xl",
			"header span.text-2xl",
			"header span",
		},
		Opponent: ".truncate",
		Overview: []Locator{
			".grid.grid-cols-2 .text-xl.font-HEAD.text-primary",
			".grid .text-xl.font-HEAD.text-primary",
		},
		Score: []Locator{
			`h1.text-lg.xs\:text-cxl.sm\:text-3xl`,
			`h1[class*="text-lg"]`,
			"h1",
		},
		Date: []Locator{".text-gray-400"},

		StatsToggle: "div.min-w-full > div:nth-of-type(2) svg",
		StatsPanel: []Locator{
			`div[class*="flex-1 w-full p-2 animate-in slide-in-from-left-10 fade-in-50"]`,
		},
		StatsContainer: []Locator{`div[class*="flex flex-col"]`},
		StatRow:        `div[class*="relative my-1"]`,

		GoalEntries: []Locator{
			`div[class*="leading-5 my-1"]`,
			`div[class*="my-1"][class*="leading-5"]`,
			`div[class*="flex"][class*="items-center"]`,
		},
		GoalTime: []Locator{`span[class*="text-gray-100"]`},
		GoalScorer: []Locator{
			`span[class*="text-white font-HEAD"]`,
			`span[class*="font-HEAD"]`,
		},
		GoalAssist: `div[class*="flex-row"]`,
	}
}

package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// fakeBrowser serves fixture html, optionally swapping the page after the n-th Evaluate call the
// way a click would.
type fakeBrowser struct {
	mutex sync.Mutex

	page          string
	afterEvaluate map[int]string
	navErr        error
	waitErr       error
	panicOn       string

	navigated []string
	evaluated []string
	closed    bool
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.panicOn == "navigate" {
		panic("navigate exploded")
	}
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeBrowser) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return f.waitErr
}

func (f *fakeBrowser) Evaluate(ctx context.Context, script string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.evaluated = append(f.evaluated, script)
	if next, ok := f.afterEvaluate[len(f.evaluated)]; ok {
		f.page = next
	}
	return nil
}

func (f *fakeBrowser) Snapshot(ctx context.Context) (*goquery.Document, error) {
	f.mutex.Lock()
	page := f.page
	f.mutex.Unlock()
	if page == "" {
		return nil, errors.New("no page loaded")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

func (f *fakeBrowser) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBrowser) isClosed() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.closed
}

func (f *fakeBrowser) factory() BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		return f, nil
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SettleDelay = 0
	opts.LoadTimeout = time.Second
	opts.FieldTimeout = time.Millisecond * 100
	opts.PanelTimeout = time.Millisecond * 30
	opts.ToggleDelay = 0
	opts.PollInterval = time.Millisecond * 5
	return opts
}

const statsPanel = `
<div class="flex-1 w-full p-2 animate-in slide-in-from-left-10 fade-in-50">
	<div class="flex flex-col">
		<div class="relative my-1"><p>54%</p><p>Possession</p><p>46%</p></div>
		<div class="relative my-1"><p>7</p><p>Shots on  Target</p><p>3</p></div>
		<div class="relative my-1"><p>1</p><p>broken</p></div>
	</div>
</div>`

const matchCards = `
<div class="min-w-full">
	<div class="bg-card relative m-2 rounded-md">
		<div>
			<span class="truncate">Red Lions</span>
			<span class="truncate">Blue Sharks</span>
		</div>
		<h1 class="text-lg xs:text-cxl sm:text-3xl">3-1</h1>
		<span class="text-gray-400">2 days ago</span>
		<div class="leading-5 my-1">
			<span class="text-gray-100">12'</span>
			<span class="text-white font-HEAD">Smith</span>
			<div class="flex-row">Jones assist</div>
		</div>
		<div class="leading-5 my-1">
			<span class="text-gray-100">55'</span>
			<span class="text-white font-HEAD">Brown</span>
		</div>
		<div class="leading-5 my-1">
			<span class="text-gray-100">70'</span>
		</div>
	</div>
	<div class="bg-card relative m-2 rounded-md">
		<div><span class="truncate">Red Lions</span></div>
		<h1 class="text-lg xs:text-cxl sm:text-3xl">1-1</h1>
	</div>
	<div class="bg-card relative m-2 rounded-md">
		<div><span class="truncate">Red Lions</span><span class="truncate">Nobody</span></div>
		<h1 class="text-lg xs:text-cxl sm:text-3xl">abandoned</h1>
	</div>
	<div class="bg-card relative m-2 rounded-md">
		<div><span class="truncate">Red Lions</span><span class="truncate">Green Foxes</span></div>
		<h1 class="text-lg xs:text-cxl sm:text-3xl">0-2</h1>
		<span class="text-gray-400">Yesterday</span>
	</div>
</div>`

func trackerPage(panel string) string {
	return fmt.Sprintf(`<html><body>
<header><span class="font-HEAD text-2xl">Red Lions</span></header>
<div class="grid grid-cols-2">
	<div class="text-xl font-HEAD text-primary">20</div>
	<div class="text-xl font-HEAD text-primary">12</div>
	<div class="text-xl font-HEAD text-primary">6</div>
	<div class="text-xl font-HEAD text-primary">60%%</div>
</div>
%s
%s
</body></html>`, matchCards, panel)
}

package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Browser is one exclusive browser tab.
//
// note: fault injection point
type Browser interface {
	Snapshotter
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector is present in the DOM or timeout elapses.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate runs a script in the page and discards its result.
	Evaluate(ctx context.Context, script string) error
	Close() error
}

// BrowserFactory starts a new browser, every scrape session gets its own.
type BrowserFactory func(ctx context.Context) (Browser, error)

type ChromeOptions struct {
	Headless bool
	// UserAgent overrides the default user agent when non-empty.
	UserAgent string
	// ExecPath is the chrome binary, empty searches the usual locations.
	ExecPath string
	// RemoteURL connects to an already running chrome devtools endpoint instead of starting one.
	RemoteURL string
}

// ChromeBrowser implements Browser with chromedp.
type ChromeBrowser struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func NewChromeBrowserFactory(opts ChromeOptions) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		return NewChromeBrowser(ctx, opts)
	}
}

// NewChromeBrowser starts chrome and opens a blank tab. The browser lives until Close is called
// or ctx is done.
func NewChromeBrowser(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
			chromedp.WindowSize(1920, 1080),
		)
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	// the first Run starts the browser
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeBrowser{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions on the tab, bounded by both the tab's lifetime and ctx.
func (b *ChromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, 0, chromedp.Navigate(url))
}

func (b *ChromeBrowser) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (b *ChromeBrowser) Evaluate(ctx context.Context, script string) error {
	return b.run(ctx, 0, chromedp.Evaluate(script, nil))
}

func (b *ChromeBrowser) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var html string
	err := b.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancelTab()
	b.cancelAlloc()
	return err
}

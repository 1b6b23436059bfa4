package automation

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options tunes the browser drivers. Zero values fall back to defaults.
type Options struct {
	Logger *logging.Logger

	// Headless controls whether launched browsers run without a window.
	Headless bool

	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration
	// SelectorTimeout bounds each wait for a form element.
	SelectorTimeout time.Duration
	// OutcomeTimeout bounds the post-submit wait for a verdict.
	OutcomeTimeout time.Duration

	// TypeDelayMin and TypeDelayMax bound the random per-character pause
	// while filling form fields.
	TypeDelayMin time.Duration
	TypeDelayMax time.Duration

	// DebuggerURL is the DevTools endpoint of an externally launched
	// browser that the Mercari driver may attach to.
	DebuggerURL string

	// OpenBrowser opens a URL in the user's default browser. Used by
	// manual-completion drivers; overridable in tests.
	OpenBrowser func(url string) error
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewLogger()
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = 15 * time.Second
	}
	if o.OutcomeTimeout <= 0 {
		o.OutcomeTimeout = 20 * time.Second
	}
	if o.TypeDelayMin <= 0 {
		o.TypeDelayMin = 50 * time.Millisecond
	}
	if o.TypeDelayMax <= o.TypeDelayMin {
		o.TypeDelayMax = o.TypeDelayMin + 100*time.Millisecond
	}
	if o.DebuggerURL == "" {
		o.DebuggerURL = "http://localhost:9222"
	}
	return o
}

// launchBrowser starts an isolated browser process and returns a tab context.
// The returned cleanup tears down both the tab and the process and is safe to
// call on every exit path.
func launchBrowser(ctx context.Context, opts Options, headless bool) (context.Context, func(), error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1280,800"),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cleanup := func() {
		tabCancel()
		allocCancel()
	}

	// an empty Run forces the process to start so launch failures surface
	// here instead of mid-flow
	if err := chromedp.Run(tabCtx); err != nil {
		cleanup()
		return nil, nil, &errors.ErrBrowserLaunch{Err: err}
	}
	return tabCtx, cleanup, nil
}

// attachBrowser connects to an already-running browser over its DevTools
// endpoint and opens a fresh tab in it.
func attachBrowser(ctx context.Context, debuggerURL string) (context.Context, func(), error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, debuggerURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cleanup := func() {
		tabCancel()
		allocCancel()
	}
	if err := chromedp.Run(tabCtx); err != nil {
		cleanup()
		return nil, nil, &errors.ErrBrowserLaunch{Err: err}
	}
	return tabCtx, cleanup, nil
}

// blockHeavyResources intercepts requests and drops images, media, fonts and
// stylesheets. Login flows only need documents, scripts and XHR.
func blockHeavyResources(ctx context.Context) error {
	if err := chromedp.Run(ctx, fetch.Enable()); err != nil {
		return err
	}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(ctx)
			exec := cdp.WithExecutor(ctx, c.Target)
			switch e.ResourceType {
			case network.ResourceTypeImage, network.ResourceTypeMedia,
				network.ResourceTypeFont, network.ResourceTypeStylesheet:
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(exec)
			default:
				_ = fetch.ContinueRequest(e.RequestID).Do(exec)
			}
		}()
	})
	return nil
}

// navigate loads url within opts.NavigationTimeout.
func navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return &errors.ErrNavigationTimeout{URL: url, Err: err}
	}
	return nil
}

// waitVisible waits for sel to appear within timeout.
func waitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// typeLikeHuman clicks sel and types text one character at a time with a
// random pause between keystrokes.
func typeLikeHuman(ctx context.Context, sel, text string, minDelay, maxDelay time.Duration) error {
	if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return err
	}
	spread := int64(maxDelay - minDelay)
	for _, r := range text {
		if err := chromedp.Run(ctx, chromedp.SendKeys(sel, string(r), chromedp.ByQuery)); err != nil {
			return err
		}
		delay := minDelay + time.Duration(rand.Int63n(spread+1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// clickSubmit clicks the form's submit control.
func clickSubmit(ctx context.Context, sel string) error {
	return chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

// loginOutcome is the verdict of the post-submit race.
type loginOutcome struct {
	// Navigated is true when the page moved away from the login URL.
	Navigated bool
	// ErrorText is the scraped text of the site's error element, when one
	// appeared.
	ErrorText string
}

// awaitOutcome races page navigation away from the login URL against the
// appearance of an error element. Whichever resolves first wins and the
// loser's wait is cancelled. On timeout both waits are torn down and a
// zero-value outcome is returned so the caller can inspect the page itself.
func awaitOutcome(ctx context.Context, loginPathHint, errorSel string, timeout time.Duration) loginOutcome {
	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan loginOutcome, 2)

	go func() {
		for {
			var href string
			if err := chromedp.Run(raceCtx, chromedp.Location(&href)); err != nil {
				return
			}
			if href != "" && !strings.Contains(href, loginPathHint) {
				results <- loginOutcome{Navigated: true}
				return
			}
			select {
			case <-raceCtx.Done():
				return
			case <-time.After(250 * time.Millisecond):
			}
		}
	}()

	go func() {
		if err := chromedp.Run(raceCtx, chromedp.WaitVisible(errorSel, chromedp.ByQuery)); err != nil {
			return
		}
		var text string
		_ = chromedp.Run(raceCtx, chromedp.Text(errorSel, &text, chromedp.ByQuery))
		results <- loginOutcome{ErrorText: strings.TrimSpace(text)}
	}()

	select {
	case out := <-results:
		return out
	case <-raceCtx.Done():
		return loginOutcome{}
	}
}

// elementExists reports whether sel currently matches anything on the page.
func elementExists(ctx context.Context, sel string) bool {
	var found bool
	script := `document.querySelector(` + jsString(sel) + `) !== null`
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false
	}
	return found
}

// currentURL returns the page's current location, or "" on error.
func currentURL(ctx context.Context) string {
	var href string
	if err := chromedp.Run(ctx, chromedp.Location(&href)); err != nil {
		return ""
	}
	return href
}

// harvestCookies captures all cookies visible to the current browser context.
func harvestCookies(ctx context.Context) ([]models.SessionCookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]models.SessionCookie, 0, len(raw))
	for _, c := range raw {
		cookie := models.SessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

package automation

import (
	"context"
	"net/http"
	"time"

	"github.com/relistr/relistr/internal/models"
)

// mercariDriver runs the shared form flow, but prefers attaching to an
// already-running debuggable browser over launching its own. Mercari's
// bot detection is far less aggressive against a browser the user started
// themselves. When no such browser is listening, the driver launches a
// visible one instead of a headless one for the same reason.
type mercariDriver struct {
	form *formDriver
}

func newMercariDriver(opts Options) *mercariDriver {
	form := newFormDriver(models.MarketplaceMercari, formSelectors{
		Username:      `input[name="email"]`,
		Password:      `input[name="password"]`,
		Submit:        `button[type="submit"]`,
		ErrorMessage:  `[data-testid="LoginError"], [role="alert"]`,
		LoginPathHint: "/login",
	}, opts)
	return &mercariDriver{form: form}
}

func (d *mercariDriver) Marketplace() models.Marketplace {
	return models.MarketplaceMercari
}

func (d *mercariDriver) Login(ctx context.Context, creds Credentials) (*models.LoginResult, error) {
	opts := d.form.opts

	if debuggerReachable(ctx, opts.DebuggerURL) {
		opts.Logger.Info("attaching to running browser", "debugger_url", opts.DebuggerURL)
		tabCtx, cleanup, err := attachBrowser(ctx, opts.DebuggerURL)
		if err == nil {
			defer cleanup()
			return d.form.run(tabCtx, creds)
		}
		opts.Logger.Warn("attach failed, launching own browser", "error", err.Error())
	}

	tabCtx, cleanup, err := launchBrowser(ctx, opts, false)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return d.form.run(tabCtx, creds)
}

// debuggerReachable probes the DevTools version endpoint with a short
// deadline.
func debuggerReachable(ctx context.Context, debuggerURL string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, debuggerURL+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

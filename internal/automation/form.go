package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/models"
)

// formSelectors parameterizes the shared form-login flow for one marketplace.
type formSelectors struct {
	// Username and Password locate the credential inputs, Submit the
	// control that sends the form.
	Username string
	Password string
	Submit   string
	// ErrorMessage locates the site's inline login-error element.
	ErrorMessage string
	// LoginPathHint is a URL fragment that identifies the login page; the
	// post-submit check treats a URL still containing it as a rejection.
	LoginPathHint string
}

// formDriver runs the headless form-login state machine with
// marketplace-specific selectors. Poshmark, Depop, eBay and Bonanza all use
// this shape.
type formDriver struct {
	marketplace models.Marketplace
	selectors   formSelectors
	opts        Options
}

func newFormDriver(marketplace models.Marketplace, selectors formSelectors, opts Options) *formDriver {
	return &formDriver{marketplace: marketplace, selectors: selectors, opts: opts.withDefaults()}
}

func (d *formDriver) Marketplace() models.Marketplace {
	return d.marketplace
}

func (d *formDriver) Login(ctx context.Context, creds Credentials) (*models.LoginResult, error) {
	tabCtx, cleanup, err := launchBrowser(ctx, d.opts, d.opts.Headless)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return d.run(tabCtx, creds)
}

// run executes the flow on an already-open tab. Split out so the Mercari
// driver can reuse it on an attached browser.
func (d *formDriver) run(tabCtx context.Context, creds Credentials) (*models.LoginResult, error) {
	info := d.marketplace.Info()
	log := d.opts.Logger

	if err := blockHeavyResources(tabCtx); err != nil {
		log.Warn("resource blocking unavailable, continuing without it",
			"marketplace", d.marketplace, "error", err.Error())
	}

	log.Debug("navigating to login page", "marketplace", d.marketplace, "url", info.LoginURL)
	if err := navigate(tabCtx, info.LoginURL, d.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	if err := waitVisible(tabCtx, d.selectors.Username, d.opts.SelectorTimeout); err != nil {
		return nil, &errors.ErrFormNotFound{Marketplace: string(d.marketplace)}
	}
	if err := waitVisible(tabCtx, d.selectors.Password, d.opts.SelectorTimeout); err != nil {
		return nil, &errors.ErrFormNotFound{Marketplace: string(d.marketplace)}
	}

	if err := typeLikeHuman(tabCtx, d.selectors.Username, creds.Username, d.opts.TypeDelayMin, d.opts.TypeDelayMax); err != nil {
		return nil, &errors.ErrFormNotFound{Marketplace: string(d.marketplace)}
	}
	if err := typeLikeHuman(tabCtx, d.selectors.Password, creds.Password, d.opts.TypeDelayMin, d.opts.TypeDelayMax); err != nil {
		return nil, &errors.ErrFormNotFound{Marketplace: string(d.marketplace)}
	}

	if !elementExists(tabCtx, d.selectors.Submit) {
		return nil, &errors.ErrSubmitControlMissing{Marketplace: string(d.marketplace)}
	}
	if err := clickSubmit(tabCtx, d.selectors.Submit); err != nil {
		return nil, &errors.ErrSubmitControlMissing{Marketplace: string(d.marketplace)}
	}

	outcome := awaitOutcome(tabCtx, d.selectors.LoginPathHint, d.selectors.ErrorMessage, d.opts.OutcomeTimeout)

	if reason := d.rejectionReason(tabCtx, outcome); reason != "" {
		log.Info("login rejected", "marketplace", d.marketplace)
		return &models.LoginResult{
			Success: false,
			Message: reason,
		}, nil
	}

	cookies, err := harvestCookies(tabCtx)
	if err != nil {
		log.Warn("cookie harvest failed after successful login",
			"marketplace", d.marketplace, "error", err.Error())
	}

	log.Info("login succeeded", "marketplace", d.marketplace, "cookies", len(cookies))
	return &models.LoginResult{
		Success: true,
		Message: fmt.Sprintf("Successfully connected to %s", info.DisplayName),
		Cookies: cookies,
	}, nil
}

// rejectionReason inspects the post-submit page and returns a user-facing
// failure message, or "" when the login looks successful.
func (d *formDriver) rejectionReason(tabCtx context.Context, outcome loginOutcome) string {
	if outcome.ErrorText != "" {
		return outcome.ErrorText
	}
	if outcome.Navigated {
		return ""
	}

	// no clear verdict from the race: check the page directly
	if elementExists(tabCtx, d.selectors.ErrorMessage) {
		return fmt.Sprintf("%s rejected the login - please check your username and password", d.marketplace.Info().DisplayName)
	}
	href := currentURL(tabCtx)
	if href == "" || strings.Contains(href, d.selectors.LoginPathHint) ||
		elementExists(tabCtx, d.selectors.Password) {
		return fmt.Sprintf("%s rejected the login - please check your username and password", d.marketplace.Info().DisplayName)
	}
	return ""
}

func newPoshmarkDriver(opts Options) *formDriver {
	return newFormDriver(models.MarketplacePoshmark, formSelectors{
		Username:      `input[name="login_form[username_email]"]`,
		Password:      `input[name="login_form[password]"]`,
		Submit:        `button[type="submit"]`,
		ErrorMessage:  `.error_banner, .form__error-message`,
		LoginPathHint: "/login",
	}, opts)
}

func newDepopDriver(opts Options) *formDriver {
	return newFormDriver(models.MarketplaceDepop, formSelectors{
		Username:      `input[name="username"]`,
		Password:      `input[name="password"]`,
		Submit:        `button[type="submit"]`,
		ErrorMessage:  `[data-testid="login-error"], [role="alert"]`,
		LoginPathHint: "/login",
	}, opts)
}

func newEbayDriver(opts Options) *formDriver {
	return newFormDriver(models.MarketplaceEbay, formSelectors{
		Username:      `input[name="userid"]`,
		Password:      `input[name="pass"]`,
		Submit:        `button[name="sgnBt"], #sgnBt`,
		ErrorMessage:  `#errf, .signin-error-msg`,
		LoginPathHint: "signin.ebay.com",
	}, opts)
}

func newBonanzaDriver(opts Options) *formDriver {
	return newFormDriver(models.MarketplaceBonanza, formSelectors{
		Username:      `input[name="email"]`,
		Password:      `input[name="password"]`,
		Submit:        `input[type="submit"], button[type="submit"]`,
		ErrorMessage:  `.flash_error, .error_message`,
		LoginPathHint: "/login",
	}, opts)
}

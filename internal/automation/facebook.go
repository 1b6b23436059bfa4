package automation

import (
	"context"
	"fmt"

	"github.com/cli/browser"

	"github.com/relistr/relistr/internal/models"
)

// facebookDriver is the manual-completion variant. Facebook aggressively
// blocks automated logins, so instead of driving a headless browser the
// driver opens the login page in the user's own browser and reports success
// immediately with RequiresManualLogin set. No in-process verification of
// the credentials happens.
type facebookDriver struct {
	opts Options
}

func newFacebookDriver(opts Options) *facebookDriver {
	opts = opts.withDefaults()
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.OpenURL
	}
	return &facebookDriver{opts: opts}
}

func (d *facebookDriver) Marketplace() models.Marketplace {
	return models.MarketplaceFacebook
}

func (d *facebookDriver) Login(ctx context.Context, creds Credentials) (*models.LoginResult, error) {
	info := models.MarketplaceFacebook.Info()

	d.opts.Logger.Info("opening login page for manual completion", "marketplace", d.Marketplace())
	if err := d.opts.OpenBrowser(info.LoginURL); err != nil {
		d.opts.Logger.Warn("could not open default browser", "error", err.Error())
		return &models.LoginResult{
			Success:             true,
			Message:             fmt.Sprintf("Open %s in your browser and sign in to finish connecting %s", info.LoginURL, info.DisplayName),
			RequiresManualLogin: true,
		}, nil
	}

	return &models.LoginResult{
		Success:             true,
		Message:             fmt.Sprintf("We opened %s in your browser - sign in there to finish connecting", info.DisplayName),
		RequiresManualLogin: true,
	}, nil
}

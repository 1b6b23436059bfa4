// Package automation drives marketplace login flows through a real browser
// and harvests the resulting session cookies.
package automation

import (
	"context"
	"sort"

	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/models"
)

// Credentials is the plaintext login pair handed to a driver. It never
// leaves process memory and is not logged.
type Credentials struct {
	Username string
	Password string
}

// Driver performs the login flow for one marketplace.
//
// Login returns a non-nil *LoginResult for every business outcome, including
// rejected credentials (Success=false with a user-facing Message). The error
// return is reserved for infrastructure failures the caller cannot phrase to
// the end user, such as a browser that failed to launch.
type Driver interface {
	Marketplace() models.Marketplace
	Login(ctx context.Context, creds Credentials) (*models.LoginResult, error)
}

// Registry maps marketplaces to their drivers. The set of drivers is fixed at
// construction; there is no open plugin surface.
type Registry struct {
	drivers map[models.Marketplace]Driver
}

// NewRegistry builds a registry with the standard driver for every supported
// marketplace.
func NewRegistry(opts Options) *Registry {
	r := &Registry{drivers: make(map[models.Marketplace]Driver)}
	for _, d := range []Driver{
		newPoshmarkDriver(opts),
		newMercariDriver(opts),
		newDepopDriver(opts),
		newEbayDriver(opts),
		newFacebookDriver(opts),
		newBonanzaDriver(opts),
	} {
		r.drivers[d.Marketplace()] = d
	}
	return r
}

// NewRegistryWith builds a registry over an explicit driver set. Used by
// tests and by callers that stub out individual marketplaces.
func NewRegistryWith(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[models.Marketplace]Driver)}
	for _, d := range drivers {
		r.drivers[d.Marketplace()] = d
	}
	return r
}

// Get returns the driver for a marketplace.
func (r *Registry) Get(marketplace models.Marketplace) (Driver, error) {
	d, ok := r.drivers[marketplace]
	if !ok {
		return nil, &errors.ErrInvalidMarketplace{Marketplace: string(marketplace)}
	}
	return d, nil
}

// Marketplaces lists the registered marketplaces in stable order.
func (r *Registry) Marketplaces() []models.Marketplace {
	out := make([]models.Marketplace, 0, len(r.drivers))
	for m := range r.drivers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

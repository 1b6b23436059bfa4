package models

import (
	"strings"
	"time"

	apperrors "github.com/relistr/relistr/internal/errors"
)

// Marketplace identifies a third-party resale platform.
type Marketplace string

const (
	MarketplacePoshmark Marketplace = "poshmark"
	MarketplaceMercari  Marketplace = "mercari"
	MarketplaceDepop    Marketplace = "depop"
	MarketplaceEbay     Marketplace = "ebay"
	MarketplaceFacebook Marketplace = "facebook"
	MarketplaceBonanza  Marketplace = "bonanza"
)

// RateBudget is the request budget a marketplace tolerates per window.
type RateBudget struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// MarketplaceInfo is static reference data for a supported marketplace.
// It is never mutated at runtime.
type MarketplaceInfo struct {
	ID             Marketplace `json:"id"`
	DisplayName    string      `json:"display_name"`
	LoginURL       string      `json:"login_url"`
	RequiresAPIKey bool        `json:"requires_api_key"`
	RateLimit      RateBudget  `json:"rate_limit"`
}

// Marketplaces is the closed set of supported marketplaces keyed by identifier.
// Budgets mirror each platform's observed abuse thresholds: low-volume sites get
// tighter budgets than high-volume ones.
var Marketplaces = map[Marketplace]MarketplaceInfo{
	MarketplacePoshmark: {
		ID:          MarketplacePoshmark,
		DisplayName: "Poshmark",
		LoginURL:    "https://poshmark.com/login",
		RateLimit:   RateBudget{Requests: 100, Window: time.Minute},
	},
	MarketplaceMercari: {
		ID:          MarketplaceMercari,
		DisplayName: "Mercari",
		LoginURL:    "https://www.mercari.com/login/",
		RateLimit:   RateBudget{Requests: 300, Window: time.Minute},
	},
	MarketplaceDepop: {
		ID:          MarketplaceDepop,
		DisplayName: "Depop",
		LoginURL:    "https://www.depop.com/login",
		RateLimit:   RateBudget{Requests: 200, Window: time.Minute},
	},
	MarketplaceEbay: {
		ID:             MarketplaceEbay,
		DisplayName:    "eBay",
		LoginURL:       "https://signin.ebay.com/ws/eBayISAPI.dll?SignIn",
		RequiresAPIKey: true,
		RateLimit:      RateBudget{Requests: 5000, Window: time.Hour},
	},
	MarketplaceFacebook: {
		ID:          MarketplaceFacebook,
		DisplayName: "Facebook Marketplace",
		LoginURL:    "https://www.facebook.com/login",
		RateLimit:   RateBudget{Requests: 200, Window: time.Minute},
	},
	MarketplaceBonanza: {
		ID:          MarketplaceBonanza,
		DisplayName: "Bonanza",
		LoginURL:    "https://www.bonanza.com/login",
		RateLimit:   RateBudget{Requests: 150, Window: time.Minute},
	},
}

// AllMarketplaces returns the supported identifiers in a stable order.
func AllMarketplaces() []Marketplace {
	return []Marketplace{
		MarketplacePoshmark,
		MarketplaceMercari,
		MarketplaceDepop,
		MarketplaceEbay,
		MarketplaceFacebook,
		MarketplaceBonanza,
	}
}

// ParseMarketplace validates a marketplace identifier from external input.
func ParseMarketplace(s string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Marketplaces[m]; !ok {
		return "", &apperrors.ErrInvalidMarketplace{Marketplace: s}
	}
	return m, nil
}

// IsValid reports whether the marketplace is in the supported set.
func (m Marketplace) IsValid() bool {
	_, ok := Marketplaces[m]
	return ok
}

// Info returns the reference data for the marketplace.
func (m Marketplace) Info() MarketplaceInfo {
	return Marketplaces[m]
}

func (m Marketplace) String() string {
	return string(m)
}

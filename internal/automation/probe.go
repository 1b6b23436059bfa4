package automation

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/pkg/headers"
)

// probeURLs are lightweight pages that require an authenticated session.
// A 200 means the harvested cookies are still valid; 401/403 or a redirect
// back to the login page means the session expired.
var probeURLs = map[models.Marketplace]string{
	models.MarketplacePoshmark: "https://poshmark.com/feed",
	models.MarketplaceMercari:  "https://www.mercari.com/mypage/",
	models.MarketplaceDepop:    "https://www.depop.com/sellinghub/",
	models.MarketplaceEbay:     "https://www.ebay.com/mys/home",
	models.MarketplaceBonanza:  "https://www.bonanza.com/booths/mine",
}

// ProbeResult is the verdict of one session check.
type ProbeResult struct {
	Alive      bool
	StatusCode int
	Throttle   headers.Throttle
}

// SessionProbe checks whether harvested marketplace cookies still carry a
// live session, without starting a browser. It presents a Chrome TLS
// fingerprint so the check is indistinguishable from regular page traffic.
type SessionProbe struct {
	client      *http.Client
	userAgents  []string
	langs       []string
	rng         *rand.Rand
	mu          sync.Mutex
	defaultUA   string
	defaultLang string
}

// NewSessionProbe builds a probe. With useUTLS the transport performs its
// TLS handshakes with a Chrome 120 ClientHello.
func NewSessionProbe(useUTLS bool) *SessionProbe {
	client := &http.Client{
		Timeout:   20 * time.Second,
		Transport: newProbeTransport(useUTLS),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// a redirect to a login page is the signal we are after
			return http.ErrUseLastResponse
		},
	}

	return &SessionProbe{
		client: client,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		langs:       []string{"en-US,en;q=0.9", "en-GB,en;q=0.8"},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		defaultUA:   defaultUserAgent,
		defaultLang: "en-US,en;q=0.9",
	}
}

// Check probes the marketplace with the given cookies.
func (p *SessionProbe) Check(ctx context.Context, marketplace models.Marketplace, cookies []models.SessionCookie) (*ProbeResult, error) {
	url, ok := probeURLs[marketplace]
	if !ok {
		return nil, fmt.Errorf("no session probe for marketplace %q", marketplace)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	p.applyHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		StatusCode: resp.StatusCode,
		Throttle:   headers.Parse(resp),
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		result.Alive = true
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		result.Alive = !strings.Contains(loc, "login") && !strings.Contains(loc, "signin")
	}
	return result, nil
}

func (p *SessionProbe) applyHeaders(req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ua := p.defaultUA
	lang := p.defaultLang
	if len(p.userAgents) > 0 {
		ua = p.userAgents[p.rng.Intn(len(p.userAgents))]
	}
	if len(p.langs) > 0 {
		lang = p.langs[p.rng.Intn(len(p.langs))]
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", lang)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if req.Header.Get("Sec-CH-UA") == "" {
		req.Header.Set("Sec-CH-UA", `"Chromium";v="120", "Not(A:Brand";v="8", "Google Chrome";v="120"`)
	}
	if req.Header.Get("Sec-CH-UA-Platform") == "" {
		req.Header.Set("Sec-CH-UA-Platform", `"Windows"`)
	}
}

func newProbeTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"h2", "http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}

package automation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/models"
)

// withProbeURL repoints one marketplace's probe target at a test server for
// the duration of the test.
func withProbeURL(t *testing.T, marketplace models.Marketplace, url string) {
	t.Helper()
	old := probeURLs[marketplace]
	probeURLs[marketplace] = url
	t.Cleanup(func() { probeURLs[marketplace] = old })
}

func TestSessionProbeAlive(t *testing.T) {
	var gotCookie, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	withProbeURL(t, models.MarketplacePoshmark, srv.URL)

	p := NewSessionProbe(false)
	res, err := p.Check(context.Background(), models.MarketplacePoshmark, []models.SessionCookie{
		{Name: "session", Value: "abc123"},
	})
	require.NoError(t, err)
	assert.True(t, res.Alive)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "abc123", gotCookie)
	assert.NotEmpty(t, gotUA)
}

func TestSessionProbeExpiredRedirectsToLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://poshmark.com/login", http.StatusFound)
	}))
	defer srv.Close()
	withProbeURL(t, models.MarketplacePoshmark, srv.URL)

	p := NewSessionProbe(false)
	res, err := p.Check(context.Background(), models.MarketplacePoshmark, nil)
	require.NoError(t, err)
	assert.False(t, res.Alive)
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestSessionProbeUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	withProbeURL(t, models.MarketplaceDepop, srv.URL)

	p := NewSessionProbe(false)
	res, err := p.Check(context.Background(), models.MarketplaceDepop, nil)
	require.NoError(t, err)
	assert.False(t, res.Alive)
}

func TestSessionProbeThrottleHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	withProbeURL(t, models.MarketplaceEbay, srv.URL)

	p := NewSessionProbe(false)
	res, err := p.Check(context.Background(), models.MarketplaceEbay, nil)
	require.NoError(t, err)
	assert.False(t, res.Alive)
	assert.True(t, res.Throttle.Limited)
	assert.Equal(t, float64(60), res.Throttle.RetryAfter.Seconds())
}

func TestSessionProbeNoTargetForFacebook(t *testing.T) {
	p := NewSessionProbe(false)
	_, err := p.Check(context.Background(), models.MarketplaceFacebook, nil)
	assert.Error(t, err)
}

func TestDebuggerReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.True(t, debuggerReachable(context.Background(), srv.URL))
	assert.False(t, debuggerReachable(context.Background(), "http://127.0.0.1:1"))
}

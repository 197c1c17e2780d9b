package directory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/httpclient"
)

// newTestAdapter builds an adapter against a test server URL with a
// short timeout and no global rate limit.
func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()

	cfg := &common.ScraperConfig{
		RequestTimeout:    "5s",
		UserAgentRotation: true,
	}
	logger := arbor.NewLogger()
	return NewAdapter(baseURL, httpclient.NewFetcher(cfg, logger), 50, logger)
}

// newTestServer serves fixed HTML bodies keyed by exact request path.
// Unknown paths return 404.
func newTestServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewAdapterNormalizesDomain(t *testing.T) {
	tests := []struct {
		name          string
		domain        string
		wantBase      string
		wantDomain    string
		wantCanonical string
	}{
		{"bare domain", "yello.ae", "https://yello.ae", "yello.ae", "yello.ae"},
		{"https url", "https://www.yello.ae", "https://www.yello.ae", "www.yello.ae", "yello.ae"},
		{"legacy alias", "http://yellowpages.ae", "http://yellowpages.ae", "yellowpages.ae", "yello.ae"},
		{"trailing slash", "https://www.businesslist.com.ng/", "https://www.businesslist.com.ng", "www.businesslist.com.ng", "businesslist.com.ng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, tt.domain)
			assert.Equal(t, tt.wantBase, a.baseURL)
			assert.Equal(t, tt.wantDomain, a.domainName)
			assert.Equal(t, tt.wantCanonical, a.Domain())
		})
	}
}

func TestFactoryRejectsEmptyDomain(t *testing.T) {
	factory := NewFactory(&common.ScraperConfig{RequestTimeout: "5s"}, arbor.NewLogger())

	_, err := factory.ForDomain("  ")
	require.Error(t, err)

	adapter, err := factory.ForDomain("yello.ae")
	require.NoError(t, err)
	require.NotNil(t, adapter)
}

func TestAbsoluteURL(t *testing.T) {
	a := newTestAdapter(t, "https://yello.ae")

	assert.Equal(t, "https://yello.ae/company/acme", a.absoluteURL("/company/acme"))
	assert.Equal(t, "https://other.example/x", a.absoluteURL("https://other.example/x"))
	assert.Equal(t, "", a.absoluteURL(""))

	// Fragments never survive resolution.
	resolved := a.absoluteURL("/location/dubai#top")
	assert.False(t, strings.Contains(resolved, "#"))
}

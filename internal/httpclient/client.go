package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewCrawlClient builds the HTTP client a job's workers share.
// Directory crawls hit the same host with many concurrent requests, so
// idle connections per host are raised well above the transport
// default of 2 to avoid reconnecting on every page.
func NewCrawlClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

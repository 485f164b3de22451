package proxy

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/false2true/false2true/internal/helper"
)

// upstreamManager chooses the upstream proxy of a request and dials through it.
type upstreamManager struct {
	upstream    string
	sslInsecure bool
	proxyFn     func(*http.Request) (*url.URL, error)
}

func newUpstreamManager(upstream string, sslInsecure bool) *upstreamManager {
	return &upstreamManager{
		upstream:    upstream,
		sslInsecure: sslInsecure,
	}
}

// proxyURL returns the upstream proxy for req, nil meaning direct. A
// function set with SetUpstreamProxy wins over the configured upstream, which
// wins over the HTTP_PROXY family of environment variables.
func (m *upstreamManager) proxyURL(req *http.Request) (*url.URL, error) {
	if m.proxyFn != nil {
		return m.proxyFn(req)
	}
	if m.upstream != "" {
		return url.Parse(m.upstream)
	}
	if req.Method == http.MethodConnect {
		return http.ProxyFromEnvironment(&http.Request{URL: &url.URL{Scheme: "https", Host: req.Host}})
	}
	return http.ProxyFromEnvironment(req)
}

// dial connects to the target of the CONNECT request req.
func (m *upstreamManager) dial(ctx context.Context, req *http.Request) (net.Conn, error) {
	proxyURL, err := m.proxyURL(req)
	if err != nil {
		return nil, err
	}
	address := connectAddr(req)
	if proxyURL != nil {
		return helper.GetProxyConn(ctx, proxyURL, address, m.sslInsecure)
	}
	return (&net.Dialer{}).DialContext(ctx, "tcp", address)
}

func connectAddr(req *http.Request) string {
	if _, _, err := net.SplitHostPort(req.Host); err == nil {
		return req.Host
	}
	return helper.CanonicalAddr(&url.URL{Scheme: "https", Host: req.Host})
}

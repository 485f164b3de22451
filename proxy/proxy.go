// Package proxy implements the intercepting HTTP/HTTPS proxy the rewriting
// addons plug into.
//
// Plain HTTP requests are forwarded directly. CONNECT tunnels are either
// relayed untouched or, when the intercept rule selects the host, terminated
// with a certificate forged by the CA so the requests inside are seen in the
// clear. Every exchange is a Flow, and addons observe and modify flows through
// the events of the Addon interface.
package proxy

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/false2true/false2true/cert"
)

// Proxy is an intercepting proxy server.
type Proxy struct {
	config        *Config
	ca            cert.CA
	addonRegistry *AddonRegistry
	upstream      *upstreamManager

	entry    *entry
	attacker *attacker

	shouldIntercept func(req *http.Request) bool
	authProxy       func(res http.ResponseWriter, req *http.Request) (bool, error)
}

// NewProxy creates a proxy for config that forges certificates with ca.
func NewProxy(config *Config, ca cert.CA) (*Proxy, error) {
	if config == nil {
		return nil, errors.New("proxy: nil config")
	}
	if ca == nil {
		return nil, errors.New("proxy: nil ca")
	}
	if config.StreamLargeBodies <= 0 {
		config.StreamLargeBodies = DefaultStreamLargeBodies
	}
	if config.Upstream != "" {
		if _, err := url.Parse(config.Upstream); err != nil {
			return nil, fmt.Errorf("proxy: upstream: %w", err)
		}
	}

	p := &Proxy{
		config:        config,
		ca:            ca,
		addonRegistry: NewAddonRegistry(),
		upstream:      newUpstreamManager(config.Upstream, config.SslInsecure),
	}
	p.entry = newEntry(p)

	a, err := newAttacker(p)
	if err != nil {
		return nil, err
	}
	p.attacker = a

	return p, nil
}

// AddAddon registers addon. Addons receive events in registration order.
func (p *Proxy) AddAddon(addon Addon) {
	p.addonRegistry.Add(addon)
}

// Addons returns the registered addons.
func (p *Proxy) Addons() []Addon {
	return p.addonRegistry.Get()
}

// Start listens on Config.Addr and serves until the proxy is closed.
func (p *Proxy) Start() error {
	addr := p.config.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return p.Serve(ln)
}

// Serve accepts proxy clients on ln until the proxy is closed.
func (p *Proxy) Serve(ln net.Listener) error {
	go p.attacker.start()
	return p.entry.serve(ln)
}

// Close closes the listener and every connection immediately.
func (p *Proxy) Close() error {
	err := p.entry.close()
	p.attacker.close()
	return err
}

// Shutdown stops accepting clients and waits for idle connections, or for
// ctx to be done.
func (p *Proxy) Shutdown(ctx context.Context) error {
	err := p.entry.shutdown(ctx)
	if aerr := p.attacker.shutdown(ctx); err == nil {
		err = aerr
	}
	return err
}

// GetCertificate returns the root certificate clients must trust.
func (p *Proxy) GetCertificate() x509.Certificate {
	return *p.ca.GetRootCA()
}

// SetShouldInterceptRule sets the rule deciding, per CONNECT request, whether
// the tunnel is intercepted. Without a rule every tunnel is intercepted.
func (p *Proxy) SetShouldInterceptRule(rule func(req *http.Request) bool) {
	p.shouldIntercept = rule
}

// SetUpstreamProxy overrides Config.Upstream with a per request choice.
func (p *Proxy) SetUpstreamProxy(fn func(req *http.Request) (*url.URL, error)) {
	p.upstream.proxyFn = fn
}

// SetAuthProxy sets the authentication check run on every request the
// proxy receives. Rejected requests are answered with 407.
func (p *Proxy) SetAuthProxy(fn func(res http.ResponseWriter, req *http.Request) (bool, error)) {
	p.authProxy = fn
}

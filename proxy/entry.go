package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/false2true/false2true/internal/helper"
)

// wrapListener attaches a ConnContext to every accepted client connection
// and reports it to the addons.
type wrapListener struct {
	net.Listener
	proxy *Proxy
}

func (l *wrapListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	wc := newWrapClientConn(c, l.proxy)
	for _, addon := range l.proxy.addonRegistry.Get() {
		addon.ClientConnected(wc.connCtx.ClientConn)
	}
	return wc, nil
}

// entry is the http.Server clients talk to. It routes CONNECT requests to the
// tunnel handlers, absolute-form requests to the attacker and anything else
// to the AccessProxyServer addon event.
type entry struct {
	proxy  *Proxy
	server *http.Server
}

func newEntry(proxy *Proxy) *entry {
	e := &entry{proxy: proxy}
	e.server = &http.Server{
		Addr:    proxy.config.Addr,
		Handler: e,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if wc, ok := c.(*wrapClientConn); ok {
				return withConnContext(ctx, wc.connCtx)
			}
			return ctx
		},
	}
	return e
}

func (e *entry) serve(ln net.Listener) error {
	slog.Info("proxy listening", "addr", ln.Addr().String())
	return e.server.Serve(&wrapListener{Listener: ln, proxy: e.proxy})
}

func (e *entry) close() error {
	return e.server.Close()
}

func (e *entry) shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}

func (e *entry) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	proxy := e.proxy
	logger := slog.Default().With(
		"in", "proxy.entry.ServeHTTP",
		"host", req.Host,
	)

	if proxy.authProxy != nil {
		ok, err := proxy.authProxy(res, req)
		if !ok {
			logger.Warn("proxy authentication failed", "error", err)
			httpError(res, "", http.StatusProxyAuthRequired)
			return
		}
	}

	if req.Method == http.MethodConnect {
		e.handleConnect(res, req)
		return
	}

	if !req.URL.IsAbs() || req.URL.Host == "" {
		check := &helper.ResponseCheck{ResponseWriter: res}
		for _, addon := range proxy.addonRegistry.Get() {
			addon.AccessProxyServer(req, check)
		}
		if !check.Wrote {
			check.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(check, "This is a proxy server, direct requests are not allowed")
		}
		return
	}

	proxy.attacker.attack(res, req)
}

func (e *entry) handleConnect(res http.ResponseWriter, req *http.Request) {
	proxy := e.proxy
	logger := slog.Default().With(
		"in", "proxy.entry.handleConnect",
		"host", req.Host,
	)

	connCtx, ok := getConnContext(req.Context())
	if !ok {
		logger.Error("request without connection context")
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	intercept := proxy.shouldIntercept == nil || proxy.shouldIntercept(req)
	connCtx.Intercept = intercept

	f := newFlow()
	f.Request = newRequest(req)
	f.ConnContext = connCtx
	defer f.finish()

	for _, addon := range proxy.addonRegistry.Get() {
		addon.Requestheaders(f)
	}

	if !intercept {
		logger.Debug("begin transpond")
		e.directTransfer(res, req, f)
		return
	}

	logger.Debug("begin intercept")
	e.lazyAttack(res, req, f)
}

// establishConnection hijacks the client connection and answers the CONNECT.
func (e *entry) establishConnection(res http.ResponseWriter, f *Flow) (net.Conn, error) {
	cconn, _, err := res.(http.Hijacker).Hijack()
	if err != nil {
		res.WriteHeader(http.StatusBadGateway)
		return nil, err
	}
	if _, err := io.WriteString(cconn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		cconn.Close()
		return nil, err
	}

	f.Response = &Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
	}
	for _, addon := range e.proxy.addonRegistry.Get() {
		addon.Responseheaders(f)
	}
	return cconn, nil
}

// directTransfer relays the tunnel without looking inside it.
func (e *entry) directTransfer(res http.ResponseWriter, req *http.Request, f *Flow) {
	logger := slog.Default().With(
		"in", "proxy.entry.directTransfer",
		"host", req.Host,
	)

	upstreamConn, err := e.proxy.upstream.dial(req.Context(), req)
	if err != nil {
		logger.Error("dial upstream failed", "error", err)
		httpError(res, err.Error(), http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()
	f.ConnContext.ServerConn = newServerConn(connectAddr(req), upstreamConn)

	cconn, err := e.establishConnection(res, f)
	if err != nil {
		logger.Error("establish connection failed", "error", err)
		return
	}
	defer cconn.Close()

	transfer(logger, upstreamConn, cconn)
}

// lazyAttack answers the CONNECT first and decides from the first bytes the
// client sends whether the tunnel carries TLS. TLS is terminated and handed to
// the attacker; anything else is relayed to the upstream.
func (e *entry) lazyAttack(res http.ResponseWriter, req *http.Request, f *Flow) {
	logger := slog.Default().With(
		"in", "proxy.entry.lazyAttack",
		"host", req.Host,
	)

	cconn, err := e.establishConnection(res, f)
	if err != nil {
		logger.Error("establish connection failed", "error", err)
		return
	}

	wc, ok := cconn.(*wrapClientConn)
	if !ok {
		cconn.Close()
		logger.Error("hijacked connection is not a client connection")
		return
	}
	peek, err := wc.Peek(3)
	if err != nil {
		cconn.Close()
		logger.Debug("peek failed", "error", err)
		return
	}

	if !helper.IsTLS(peek) {
		serverConn, err := e.proxy.upstream.dial(req.Context(), req)
		if err != nil {
			cconn.Close()
			logger.Error("dial upstream failed", "error", err)
			return
		}
		f.ConnContext.ServerConn = newServerConn(connectAddr(req), serverConn)
		transfer(logger, serverConn, cconn)
		serverConn.Close()
		cconn.Close()
		return
	}

	f.ConnContext.ClientConn.TLS = true
	e.proxy.attacker.serveTLS(req.Context(), wc, req)
}

package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/false2true/false2true/internal/helper"
)

// hopHeaders are consumed by the proxy and never forwarded.
var hopHeaders = []string{
	"Proxy-Connection",
	"Proxy-Authorization",
	"Proxy-Authenticate",
}

// attacker forwards the flows the proxy sees in the clear: plain HTTP
// requests and requests from intercepted TLS tunnels.
type attacker struct {
	proxy    *Proxy
	client   *http.Client
	server   *http.Server
	listener *singleConnListener
}

func newAttacker(proxy *Proxy) (*attacker, error) {
	transport := &http.Transport{
		Proxy:              proxy.upstream.proxyURL,
		ForceAttemptHTTP2:  true,
		DisableCompression: true, // the original encoding reaches the addons
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: proxy.config.SslInsecure,
			KeyLogWriter:       helper.GetTLSKeyLogWriter(),
		},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}

	a := &attacker{
		proxy: proxy,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		listener: newSingleConnListener(),
	}
	a.server = &http.Server{
		Handler: a,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if tc, ok := c.(*tlsConn); ok {
				return withConnContext(ctx, tc.connCtx)
			}
			return ctx
		},
	}
	return a, nil
}

func (a *attacker) start() {
	if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("attacker server exited", "error", err)
	}
}

func (a *attacker) close() {
	a.listener.Close()
	a.server.Close()
}

func (a *attacker) shutdown(ctx context.Context) error {
	a.listener.Close()
	return a.server.Shutdown(ctx)
}

// serveTLS terminates the client's TLS with a certificate for the name the
// client asked for, falling back to the CONNECT host, and serves the
// requests inside as HTTP/1.1.
func (a *attacker) serveTLS(ctx context.Context, cconn *wrapClientConn, req *http.Request) {
	connCtx := cconn.connCtx
	logger := slog.Default().With(
		"in", "proxy.attacker.serveTLS",
		"host", req.Host,
	)

	connectHost, _, err := net.SplitHostPort(req.Host)
	if err != nil {
		connectHost = req.Host
	}

	clientTLSConn := tls.Server(cconn, &tls.Config{
		SessionTicketsDisabled: true,
		GetConfigForClient: func(chi *tls.ClientHelloInfo) (*tls.Config, error) {
			name := chi.ServerName
			if name == "" {
				name = connectHost
			}
			c, err := a.proxy.ca.GetCert(name)
			if err != nil {
				return nil, err
			}
			return &tls.Config{
				SessionTicketsDisabled: true,
				Certificates:           []tls.Certificate{*c},
				NextProtos:             []string{"http/1.1"},
			}, nil
		},
	})
	if err := clientTLSConn.HandshakeContext(ctx); err != nil {
		cconn.Close()
		logger.Debug("client handshake failed", "error", err)
		return
	}

	if !a.listener.accept(&tlsConn{Conn: clientTLSConn, connCtx: connCtx}) {
		clientTLSConn.Close()
	}
}

func (a *attacker) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if req.URL.Scheme == "" {
		req.URL.Scheme = "https"
	}
	if req.URL.Host == "" {
		req.URL.Host = req.Host
	}
	a.attack(res, req)
}

// attack runs one flow: it fires the addon events, forwards the request and
// replies to the client with whatever the addons left in f.Response.
func (a *attacker) attack(res http.ResponseWriter, req *http.Request) {
	proxy := a.proxy
	logger := slog.Default().With(
		"in", "proxy.attacker.attack",
		"url", req.URL.String(),
		"method", req.Method,
	)

	check := &helper.ResponseCheck{ResponseWriter: res}
	res = check
	defer func() {
		if err := recover(); err != nil {
			logger.Error("recovered from panic", "error", err)
			if !check.Wrote {
				httpError(res, "internal proxy error", http.StatusBadGateway)
			}
		}
	}()

	connCtx, ok := getConnContext(req.Context())
	if !ok {
		logger.Error("request without connection context")
		httpError(res, "", http.StatusInternalServerError)
		return
	}

	f := newFlow()
	f.Request = newRequest(req)
	f.ConnContext = connCtx
	defer f.finish()
	connCtx.FlowCount.Inc()

	addons := proxy.addonRegistry.Get()
	limit := proxy.config.StreamLargeBodies

	for _, addon := range addons {
		addon.Requestheaders(f)
		if f.Response != nil {
			a.reply(res, f.Response, logger)
			return
		}
	}

	var reqBody io.Reader = req.Body
	reqBuf, r, err := helper.ReaderToBuffer(req.Body, limit)
	if err != nil {
		logger.Error("read request body failed", "error", err)
		httpError(res, err.Error(), http.StatusBadGateway)
		return
	}
	if reqBuf == nil {
		logger.Debug("request body too large, streaming", "threshold", limit)
		f.Stream = true
		reqBody = r
	} else {
		f.Request.Body = reqBuf
		for _, addon := range addons {
			addon.Request(f)
			if f.Response != nil {
				a.reply(res, f.Response, logger)
				return
			}
		}
		reqBody = bytes.NewReader(f.Request.Body)
	}

	proxyRes, err := a.forward(req.Context(), f, reqBody)
	if err != nil {
		logErr(logger, err)
		httpError(res, err.Error(), http.StatusBadGateway)
		return
	}
	defer proxyRes.Body.Close()

	f.Response = &Response{
		StatusCode: proxyRes.StatusCode,
		Header:     proxyRes.Header,
		close:      proxyRes.Close,
	}

	for _, addon := range addons {
		addon.Responseheaders(f)
		if f.Response.Body != nil {
			a.reply(res, f.Response, logger)
			return
		}
	}

	if f.Stream {
		f.Response.BodyReader = proxyRes.Body
		a.reply(res, f.Response, logger)
		return
	}

	resBuf, r, err := helper.ReaderToBuffer(proxyRes.Body, limit)
	if err != nil {
		logErr(logger, err)
		httpError(res, err.Error(), http.StatusBadGateway)
		return
	}
	if resBuf == nil {
		logger.Debug("response body too large, streaming", "threshold", limit)
		f.Stream = true
		f.Response.BodyReader = r
		a.reply(res, f.Response, logger)
		return
	}

	f.Response.Body = resBuf
	for _, addon := range addons {
		addon.Response(f)
	}
	a.reply(res, f.Response, logger)
}

func (a *attacker) forward(ctx context.Context, f *Flow, body io.Reader) (*http.Response, error) {
	proxyReq, err := http.NewRequestWithContext(ctx, f.Request.Method, f.Request.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range f.Request.Header {
		for _, v := range values {
			proxyReq.Header.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		proxyReq.Header.Del(h)
	}
	if !f.Stream {
		proxyReq.ContentLength = int64(len(f.Request.Body))
	} else if raw := f.Request.Raw(); raw != nil {
		proxyReq.ContentLength = raw.ContentLength
	}
	return a.client.Do(proxyReq)
}

func (*attacker) reply(res http.ResponseWriter, response *Response, logger *slog.Logger) {
	for key, values := range response.Header {
		for _, v := range values {
			res.Header().Add(key, v)
		}
	}
	if response.close {
		res.Header().Set("Connection", "close")
	}
	res.WriteHeader(response.StatusCode)

	if response.BodyReader != nil {
		if _, err := io.Copy(res, response.BodyReader); err != nil {
			logErr(logger, err)
		}
		return
	}
	if len(response.Body) > 0 {
		if _, err := res.Write(response.Body); err != nil {
			logErr(logger, err)
		}
	}
}

package helper

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const connectTimeout = time.Minute

// GetProxyConn dials address through the upstream proxy at proxyURL.
// socks5 proxies are dialed with golang.org/x/net/proxy; http and https
// proxies are sent a CONNECT request.
func GetProxyConn(ctx context.Context, proxyURL *url.URL, address string, sslInsecure bool) (net.Conn, error) {
	if proxyURL.Scheme == "socks5" {
		return dialSOCKS5(ctx, proxyURL, address)
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", proxyURL.Host)
	if err != nil {
		return nil, err
	}

	if proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         proxyURL.Hostname(),
			InsecureSkipVerify: sslInsecure,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	if err := sendConnect(ctx, conn, proxyURL, address); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func dialSOCKS5(ctx context.Context, proxyURL *url.URL, address string) (net.Conn, error) {
	var auth *proxy.Auth
	if proxyURL.User != nil {
		pass, _ := proxyURL.User.Password()
		auth = &proxy.Auth{User: proxyURL.User.Username(), Password: pass}
	}
	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return nil, err
	}
	dc, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support DialContext")
	}
	return dc.DialContext(ctx, "tcp", address)
}

func sendConnect(ctx context.Context, conn net.Conn, proxyURL *url.URL, address string) error {
	connectReq := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: http.Header{},
	}
	if proxyURL.User != nil {
		connectReq.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(proxyURL.User.String())))
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if err := connectReq.Write(conn); err != nil {
			done <- result{err: err}
			return
		}
		// the upstream does not speak before it is spoken to, so the
		// buffered reader holds nothing past the CONNECT response
		resp, err := http.ReadResponse(bufio.NewReader(conn), connectReq)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case <-connectCtx.Done():
		conn.Close()
		<-done
		return connectCtx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return res.err
	}
	defer res.resp.Body.Close()
	if res.resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream proxy CONNECT %s: %s", address, res.resp.Status)
	}
	return nil
}

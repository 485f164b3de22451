package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/atomic"
)

// ClientConn is a connection from a proxy client.
type ClientConn struct {
	ID   uuid.UUID
	Conn net.Conn
	TLS  bool
}

func newClientConn(c net.Conn) *ClientConn {
	return &ClientConn{
		ID:   uuid.NewV4(),
		Conn: c,
	}
}

func (c *ClientConn) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	m["id"] = c.ID
	m["tls"] = c.TLS
	m["address"] = c.Conn.RemoteAddr().String()
	return json.Marshal(m)
}

// ServerConn is a connection from the proxy to an upstream server.
type ServerConn struct {
	ID      uuid.UUID
	Address string
	Conn    net.Conn
}

func newServerConn(address string, c net.Conn) *ServerConn {
	return &ServerConn{
		ID:      uuid.NewV4(),
		Address: address,
		Conn:    c,
	}
}

// ConnContext holds the state of one client connection, shared by every flow
// sent over it.
type ConnContext struct {
	ClientConn *ClientConn   `json:"clientConn"`
	ServerConn *ServerConn   `json:"serverConn"`
	Intercept  bool          `json:"intercept"` // whether TLS on this connection is intercepted
	FlowCount  atomic.Uint32 `json:"-"`         // number of flows sent over this connection
}

func newConnContext(c net.Conn) *ConnContext {
	return &ConnContext{
		ClientConn: newClientConn(c),
	}
}

// ID returns the id of the client connection.
func (c *ConnContext) ID() uuid.UUID {
	return c.ClientConn.ID
}

type connContextKey struct{}

func withConnContext(ctx context.Context, connCtx *ConnContext) context.Context {
	return context.WithValue(ctx, connContextKey{}, connCtx)
}

func getConnContext(ctx context.Context) (*ConnContext, bool) {
	connCtx, ok := ctx.Value(connContextKey{}).(*ConnContext)
	return connCtx, ok
}

// wrapClientConn buffers reads so the first bytes of a tunnel can be peeked,
// and reports the disconnect to addons exactly once.
type wrapClientConn struct {
	net.Conn
	r       *bufio.Reader
	connCtx *ConnContext
	proxy   *Proxy

	closeOnce sync.Once
	closeErr  error
}

func newWrapClientConn(c net.Conn, proxy *Proxy) *wrapClientConn {
	wc := &wrapClientConn{
		Conn:  c,
		r:     bufio.NewReader(c),
		proxy: proxy,
	}
	wc.connCtx = newConnContext(wc)
	return wc
}

func (c *wrapClientConn) Peek(n int) ([]byte, error) {
	return c.r.Peek(n)
}

func (c *wrapClientConn) Read(data []byte) (int, error) {
	return c.r.Read(data)
}

func (c *wrapClientConn) Close() error {
	c.closeOnce.Do(func() {
		slog.Debug("client conn close", "remoteAddr", c.Conn.RemoteAddr().String())
		c.closeErr = c.Conn.Close()
		for _, addon := range c.proxy.addonRegistry.Get() {
			addon.ClientDisconnected(c.connCtx.ClientConn)
		}
	})
	return c.closeErr
}

// singleConnListener hands already accepted connections to an http.Server.
type singleConnListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newSingleConnListener() *singleConnListener {
	return &singleConnListener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

func (l *singleConnListener) accept(c net.Conn) bool {
	select {
	case l.conns <- c:
		return true
	case <-l.done:
		return false
	}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, http.ErrServerClosed
	}
}

func (l *singleConnListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (*singleConnListener) Addr() net.Addr {
	return &net.TCPAddr{}
}

// tlsConn carries the connection context of the tunnel a TLS connection was
// opened in.
type tlsConn struct {
	*tls.Conn
	connCtx *ConnContext
}

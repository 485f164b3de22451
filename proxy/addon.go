package proxy

import (
	"log/slog"
	"net/http"
	"time"
)

// Addon receives the events of the proxy. Events of one flow are delivered in
// order; events of distinct flows may be delivered concurrently.
type Addon interface {
	// A client has connected. A connection can carry many flows.
	ClientConnected(*ClientConn)

	// A client connection has been closed.
	ClientDisconnected(*ClientConn)

	// The request headers were read. The body is empty at this point.
	Requestheaders(*Flow)

	// The full request has been read.
	Request(*Flow)

	// The response headers were read. The body is empty at this point.
	Responseheaders(*Flow)

	// The full response has been read. Not called for streamed flows.
	Response(*Flow)

	// A request addressed to the proxy itself rather than proxied.
	AccessProxyServer(req *http.Request, res http.ResponseWriter)
}

// BaseAddon implements every Addon method as a no-op.
type BaseAddon struct{}

func (*BaseAddon) ClientConnected(*ClientConn)                              {}
func (*BaseAddon) ClientDisconnected(*ClientConn)                           {}
func (*BaseAddon) Requestheaders(*Flow)                                     {}
func (*BaseAddon) Request(*Flow)                                            {}
func (*BaseAddon) Responseheaders(*Flow)                                    {}
func (*BaseAddon) Response(*Flow)                                           {}
func (*BaseAddon) AccessProxyServer(_ *http.Request, _ http.ResponseWriter) {}

// LogAddon logs connections and completed flows with the global slog logger.
type LogAddon struct {
	BaseAddon
}

func (*LogAddon) ClientConnected(client *ClientConn) {
	slog.Debug("client connected", "remoteAddr", client.Conn.RemoteAddr().String())
}

func (*LogAddon) ClientDisconnected(client *ClientConn) {
	slog.Debug("client disconnected", "remoteAddr", client.Conn.RemoteAddr().String())
}

func (*LogAddon) Requestheaders(f *Flow) {
	start := time.Now()
	go func() {
		<-f.Done()
		var statusCode int
		var contentLen int
		if f.Response != nil {
			statusCode = f.Response.StatusCode
			contentLen = len(f.Response.Body)
		}
		slog.Info("request completed",
			"clientAddr", f.ConnContext.ClientConn.Conn.RemoteAddr().String(),
			"method", f.Request.Method,
			"url", f.Request.URL.String(),
			"status", statusCode,
			"contentLength", contentLen,
			"durationMs", time.Since(start).Milliseconds(),
		)
	}()
}

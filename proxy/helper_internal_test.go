package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIsNormalErr(t *testing.T) {
	c := qt.New(t)

	for _, err := range []error{
		net.ErrClosed,
		io.ErrClosedPipe,
		fmt.Errorf("read tcp: %w", syscall.ECONNRESET),
		&net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)},
		&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
		os.ErrDeadlineExceeded,
	} {
		c.Assert(isNormalErr(err), qt.IsTrue, qt.Commentf("error %v", err))
	}
	c.Assert(isNormalErr(errors.New("tls: bad certificate")), qt.IsFalse)
}

func TestTransferRelaysBothDirections(t *testing.T) {
	c := qt.New(t)

	server, upstream := net.Pipe()
	client, downstream := net.Pipe()

	done := make(chan struct{})
	go func() {
		transfer(slog.New(slog.NewTextHandler(io.Discard, nil)), server, client)
		close(done)
	}()

	buf := make([]byte, 5)
	_, err := downstream.Write([]byte("hello"))
	c.Assert(err, qt.IsNil)
	_, err = io.ReadFull(upstream, buf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf), qt.Equals, "hello")

	_, err = upstream.Write([]byte("world"))
	c.Assert(err, qt.IsNil)
	_, err = io.ReadFull(downstream, buf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf), qt.Equals, "world")

	downstream.Close()
	upstream.Close()
	<-done
}

func TestHTTPErrorProxyAuthenticate(t *testing.T) {
	c := qt.New(t)

	rec := httptest.NewRecorder()
	httpError(rec, "auth required", http.StatusProxyAuthRequired)
	c.Assert(rec.Code, qt.Equals, http.StatusProxyAuthRequired)
	c.Assert(rec.Header().Get("Proxy-Authenticate"), qt.Equals, `Basic realm="proxy"`)
	c.Assert(rec.Body.String(), qt.Equals, "auth required\n")

	rec = httptest.NewRecorder()
	httpError(rec, "bad gateway", http.StatusBadGateway)
	c.Assert(rec.Header().Get("Proxy-Authenticate"), qt.Equals, "")
}

package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
)

// isNormalErr reports whether err only means a peer went away or was too
// slow.
func isNormalErr(err error) bool {
	switch {
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func logErr(logger *slog.Logger, err error) {
	if isNormalErr(err) {
		logger.Debug("peer gone", "error", err)
		return
	}
	logger.Error("unexpected error", "error", err)
}

// transfer relays a tunnel between client and server. It returns when both
// directions have ended or after the first failed one.
func transfer(logger *slog.Logger, server, client io.ReadWriteCloser) {
	errc := make(chan error, 2)
	relay := func(direction string, dst io.Writer, src io.Reader, finish func()) {
		n, err := io.Copy(dst, src)
		logger.Debug("relay ended", "direction", direction, "bytes", n, "error", err)
		finish()
		errc <- err
	}

	go relay("upload", server, client, func() { client.Close() })
	go relay("download", client, server, func() {
		server.Close()
		halfClose(client)
	})

	for range 2 {
		if err := <-errc; err != nil {
			logErr(logger, err)
			return
		}
	}
}

// halfClose stops reading from a client TCP connection so a client still
// uploading sees the tunnel end.
func halfClose(client io.ReadWriteCloser) {
	wc, ok := client.(*wrapClientConn)
	if !ok {
		return
	}
	if tcp, ok := wc.Conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
	}
}

func httpError(w http.ResponseWriter, errMsg string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if code == http.StatusProxyAuthRequired {
		w.Header().Set("Proxy-Authenticate", `Basic realm="proxy"`)
	}
	w.WriteHeader(code)
	fmt.Fprintln(w, errMsg)
}

// Package web serves the monitor of a running false2true proxy: a websocket
// stream of modified responses, the running total and the Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/false2true/false2true/addon"
)

// Monitor is the web monitor. It implements addon.Observer.
type Monitor struct {
	server   *http.Server
	upgrader websocket.Upgrader
	modified func() int64

	mu    sync.Mutex
	conns []*concurrentConn
}

// NewMonitor creates a monitor listening on addr. modified reports the
// running total; metrics, when not nil, is served on /metrics.
func NewMonitor(addr string, modified func() int64, metrics http.Handler) *Monitor {
	m := &Monitor{
		modified: modified,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/stats", m.handleStats)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	m.server = &http.Server{Addr: addr, Handler: mux}
	return m
}

// Handler returns the monitor's routes.
func (m *Monitor) Handler() http.Handler {
	return m.server.Handler
}

// Start listens on the monitor address and serves until Shutdown.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	return m.Serve(ln)
}

// Serve serves the monitor on ln until Shutdown.
func (m *Monitor) Serve(ln net.Listener) error {
	slog.Info("web monitor listening", "addr", ln.Addr().String())
	return m.server.Serve(ln)
}

// Shutdown stops the server and disconnects every subscriber.
func (m *Monitor) Shutdown(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	return err
}

func (m *Monitor) total() int64 {
	if m.modified == nil {
		return 0
	}
	return m.modified()
}

func (m *Monitor) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"modified": m.total()})
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(c)
	m.subscribe(conn)

	go conn.writeloop()
	conn.readloop()
	m.removeConn(conn)
}

// subscribe queues the stats greeting before c can receive any broadcast.
func (m *Monitor) subscribe(c *concurrentConn) {
	c.writeMessage(newMessageStats(m.total()))
	m.addConn(c)
}

func (m *Monitor) addConn(c *concurrentConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = append(m.conns, c)
}

func (m *Monitor) removeConn(c *concurrentConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = lo.Without(m.conns, c)
}

// Inspected broadcasts modified responses to every subscriber.
func (m *Monitor) Inspected(i addon.Inspection) {
	if i.Streamed || i.Result() != "modified" {
		return
	}
	msg := newMessageModified(i)

	m.mu.Lock()
	conns := append([]*concurrentConn(nil), m.conns...)
	m.mu.Unlock()
	for _, c := range conns {
		c.writeMessage(msg)
	}
}

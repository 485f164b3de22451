package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"

	"github.com/false2true/false2true/addon"
	"github.com/false2true/false2true/rewrite"
	"github.com/false2true/false2true/web"
)

type wsMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	ContentType string `json:"contentType"`
	FalseCount  int    `json:"falseCount"`
	Total       int64  `json:"total"`
}

func dial(c *qt.C, srv *httptest.Server) *websocket.Conn {
	c.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Cleanup(func() { conn.Close() })
	return conn
}

func read(c *qt.C, conn *websocket.Conn) wsMessage {
	c.Helper()

	c.Assert(conn.SetReadDeadline(time.Now().Add(5*time.Second)), qt.IsNil)
	mt, data, err := conn.ReadMessage()
	c.Assert(err, qt.IsNil)
	c.Assert(mt, qt.Equals, websocket.TextMessage)

	var msg wsMessage
	c.Assert(json.Unmarshal(data, &msg), qt.IsNil)
	return msg
}

func TestMonitorStreamsModifiedResponses(t *testing.T) {
	c := qt.New(t)

	total := int64(4)
	m := web.NewMonitor(":0", func() int64 { return total }, nil)
	srv := httptest.NewServer(m.Handler())
	c.Cleanup(srv.Close)

	conn := dial(c, srv)
	c.Assert(read(c, conn), qt.DeepEquals, wsMessage{Type: "stats", Total: 4})

	id := uuid.NewV4()
	m.Inspected(addon.Inspection{Status: rewrite.StatusUnchanged, URL: "http://example.com/skip"})
	m.Inspected(addon.Inspection{Streamed: true, URL: "http://example.com/big"})
	m.Inspected(addon.Inspection{
		FlowID:      id,
		Method:      http.MethodGet,
		URL:         "http://example.com/api/json",
		ContentType: "application/json",
		Status:      rewrite.StatusModified,
		FalseCount:  2,
		Total:       5,
	})

	c.Assert(read(c, conn), qt.DeepEquals, wsMessage{
		Type:        "modified",
		ID:          id.String(),
		URL:         "http://example.com/api/json",
		Method:      http.MethodGet,
		ContentType: "application/json",
		FalseCount:  2,
		Total:       5,
	})
}

func TestMonitorBroadcastsToEverySubscriber(t *testing.T) {
	c := qt.New(t)

	m := web.NewMonitor(":0", nil, nil)
	srv := httptest.NewServer(m.Handler())
	c.Cleanup(srv.Close)

	first := dial(c, srv)
	second := dial(c, srv)
	read(c, first)
	read(c, second)

	m.Inspected(addon.Inspection{Status: rewrite.StatusModified, URL: "http://example.com/", Total: 1})

	c.Assert(read(c, first).URL, qt.Equals, "http://example.com/")
	c.Assert(read(c, second).URL, qt.Equals, "http://example.com/")
}

func TestMonitorStats(t *testing.T) {
	c := qt.New(t)

	m := web.NewMonitor(":0", func() int64 { return 12 }, nil)
	srv := httptest.NewServer(m.Handler())
	c.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/stats")
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	c.Assert(resp.Header.Get("Content-Type"), qt.Equals, "application/json")
	var stats map[string]int64
	c.Assert(json.NewDecoder(resp.Body).Decode(&stats), qt.IsNil)
	c.Assert(stats, qt.DeepEquals, map[string]int64{"modified": 12})
}

func TestMonitorServesMetrics(t *testing.T) {
	c := qt.New(t)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "false2true_responses_modified 3\n")
	})
	m := web.NewMonitor(":0", nil, metrics)
	srv := httptest.NewServer(m.Handler())
	c.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)

	c.Assert(string(body), qt.Equals, "false2true_responses_modified 3\n")
}

func TestMonitorShutdownDisconnectsSubscribers(t *testing.T) {
	c := qt.New(t)

	m := web.NewMonitor("127.0.0.1:0", nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, qt.IsNil)
	go func() { _ = m.Serve(ln) }()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	defer conn.Close()

	c.Assert(conn.SetReadDeadline(time.Now().Add(5*time.Second)), qt.IsNil)
	_, _, err = conn.ReadMessage()
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Assert(m.Shutdown(ctx), qt.IsNil)

	_, _, err = conn.ReadMessage()
	c.Assert(err, qt.IsNotNil)
}

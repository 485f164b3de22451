package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueLen = 64
	writeWait    = 10 * time.Second
)

// concurrentConn is one /ws subscriber. Messages are queued and written by a
// single goroutine; a subscriber that falls behind loses messages instead of
// slowing the proxy down.
type concurrentConn struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(c *websocket.Conn) *concurrentConn {
	return &concurrentConn{
		conn:   c,
		send:   make(chan []byte, sendQueueLen),
		closed: make(chan struct{}),
	}
}

// writeMessage queues msg and reports whether it was accepted.
func (c *concurrentConn) writeMessage(msg *message) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg.toBytes():
		return true
	default:
		slog.Debug("websocket subscriber too slow, dropping message", "remoteAddr", c.conn.RemoteAddr().String())
		return false
	}
}

func (c *concurrentConn) writeloop() {
	defer c.close()
	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("write websocket message failed", "error", err)
				return
			}
		}
	}
}

// readloop discards what the subscriber sends and returns once it is gone.
func (c *concurrentConn) readloop() {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("read websocket message failed", "error", err)
			}
			return
		}
	}
}

func (c *concurrentConn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

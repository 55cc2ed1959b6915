package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla websocket connection to relay.Conn. Gorilla
// connections support one concurrent writer only, so every write goes
// through the mutex; the backend's fan-out and the close path may race.
type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	subject      string
	writeTimeout time.Duration
}

func newWSConn(ws *websocket.Conn, subject string, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		ws:           ws,
		subject:      subject,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) Subject() string { return c.subject }

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.ws.Close()
}

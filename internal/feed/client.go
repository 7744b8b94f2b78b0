package feed

import (
	"time"

	"github.com/gorilla/websocket"
)

// client is one feed subscriber. Messages are queued on send and written by
// writeLoop so a slow client never blocks quest notifications.
type client struct {
	conn         *websocket.Conn
	ip           string
	send         chan []byte
	writeTimeout time.Duration
}

func newClient(conn *websocket.Conn, ip string, buffer int, writeTimeout time.Duration) *client {
	return &client{
		conn:         conn,
		ip:           ip,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
	}
}

// writeLoop writes queued messages until send is closed.
func (c *client) writeLoop() {
	defer c.conn.Close()

	for message := range c.send {
		if c.writeTimeout > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards incoming messages and returns when the connection closes.
func (c *client) readLoop(maxMessageSize int64) {
	if maxMessageSize > 0 {
		c.conn.SetReadLimit(maxMessageSize)
	}
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// RemoteAddr returns the remote address as a string.
func (c *client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questgraph/internal/logger"
)

// Watcher is a feed client. It collects every message the hub sends.
type Watcher struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	messages []Message
	updates  chan Message
	done     chan struct{}
}

// Dial connects to a feed URL such as ws://127.0.0.1:4080/ws. origin is
// sent as the Origin header when not empty.
func Dial(url, origin string) (*Watcher, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	w := &Watcher{
		conn:     conn,
		messages: make([]Message, 0),
		updates:  make(chan Message, 64),
		done:     make(chan struct{}),
	}
	go w.readMessages()
	return w, nil
}

func (w *Watcher) readMessages() {
	defer close(w.done)
	defer close(w.updates)

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			logger.Warning("Ignoring malformed feed message", "error", err)
			continue
		}

		w.mu.Lock()
		w.messages = append(w.messages, m)
		w.mu.Unlock()

		// Updates is best effort; Messages keeps everything
		select {
		case w.updates <- m:
		default:
		}
	}
}

// Updates delivers messages as they arrive. It is closed with the connection.
func (w *Watcher) Updates() <-chan Message {
	return w.updates
}

// Done is closed once the connection ends
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Messages returns a copy of everything received so far
func (w *Watcher) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := make([]Message, len(w.messages))
	copy(result, w.messages)
	return result
}

// WaitFor waits for a message of the given type about quest.
func (w *Watcher) WaitFor(eventType, quest string, timeout time.Duration) (Message, bool) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		for _, m := range w.Messages() {
			if m.Type == eventType && m.Quest == quest {
				return m, true
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return Message{}, false
}

// Close sends a close frame and closes the connection.
func (w *Watcher) Close() error {
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return w.conn.Close()
}

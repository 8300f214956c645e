package app

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/engine"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = (eventPongWait * 9) / 10
	eventBuffer     = 64
)

// eventStreamer relays one document's engine events to a websocket client.
type eventStreamer struct {
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func newEventStreamer(corsOrigin string, log *logger.Logger) *eventStreamer {
	return &eventStreamer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin(corsOrigin),
		},
		log: log,
	}
}

// allowOrigin accepts requests without an Origin header, any origin when
// corsOrigin is "*", and otherwise only an exact host match.
func allowOrigin(corsOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || corsOrigin == "*" {
			return true
		}
		want, err := url.Parse(corsOrigin)
		if err != nil {
			return false
		}
		got, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return got.Scheme == want.Scheme && got.Host == want.Host
	}
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *logger.Logger
}

func (e *eventStreamer) serve(w http.ResponseWriter, r *http.Request, doc *engine.Document) {
	c := &eventClient{
		send: make(chan []byte, eventBuffer),
		done: make(chan struct{}),
		log:  e.log.With("item_id", doc.Page().ItemID),
	}
	// Subscribed before the handshake; early events wait in the send buffer.
	cancel := doc.Subscribe(c.enqueue)
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		close(c.done)
		e.log.Warn("event stream upgrade failed", "error", err)
		return
	}
	c.conn = conn
	c.log.Debug("event client connected")

	go c.writePump()
	c.readPump()

	cancel()
	close(c.done)
	c.log.Debug("event client disconnected")
}

// enqueue drops the event when the client is not keeping up.
func (c *eventClient) enqueue(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("failed to marshal event", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.Warn("event client too slow, dropping event", "type", ev.Type)
	}
}

// readPump discards client frames and returns when the connection closes.
func (c *eventClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("event stream closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

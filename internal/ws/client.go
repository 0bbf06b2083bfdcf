package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ipcscope/internal/errs"
	"ipcscope/internal/types"
)

// State tracks an observer connection's lifecycle.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one observer connection. Outbound messages flow through a
// buffered channel drained by a single writer goroutine, preserving the
// order they were enqueued for this observer.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.Mutex
	state State
	once  sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.NewString(),
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, hub.sendBuffer),
		state: StateConnecting,
	}
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// enqueue queues an outbound frame. Messages to a closed connection or a
// full buffer are dropped, never retried.
func (c *Client) enqueue(payload []byte) {
	if c.State() == StateClosed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("observer send buffer full, dropping message",
			zap.String("conn_id", c.ID))
	}
}

// shutdown transitions to Closed and wakes the writer so it can send the
// close frame. Safe to call more than once.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.setState(StateClosed)
		close(c.send)
	})
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. One per connection; exits on transport failure or
// shutdown.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the transport fails or the peer
// disconnects, then removes the observer from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("observer read failed",
					zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		c.handleInbound(raw)
	}
}

// handleInbound processes one observer-to-server frame. Only create_event is
// acted on; malformed or unknown frames are logged and dropped, and the
// connection stays open.
func (c *Client) handleInbound(raw []byte) {
	var in types.Inbound
	if err := sonic.Unmarshal(raw, &in); err != nil {
		c.hub.logger.Warn("malformed inbound message",
			zap.String("conn_id", c.ID), zap.Error(err))
		return
	}
	if c.hub.metrics != nil {
		c.hub.metrics.RecordWSMessage("in", in.Type)
	}

	switch in.Type {
	case TypeCreateEvent:
		var spec types.EventSpec
		if err := sonic.Unmarshal(in.Data, &spec); err != nil {
			c.hub.logger.Warn("malformed create_event payload",
				zap.String("conn_id", c.ID), zap.Error(err))
			return
		}
		if c.hub.creator == nil {
			return
		}
		if _, err := c.hub.creator.CreateEvent(spec); err != nil {
			if ve, ok := errs.AsValidation(err); ok {
				c.hub.logger.Warn("rejected inbound event",
					zap.String("conn_id", c.ID),
					zap.Strings("fields", ve.Fields))
				return
			}
			c.hub.logger.Warn("inbound event failed",
				zap.String("conn_id", c.ID), zap.Error(err))
		}
	default:
		c.hub.logger.Debug("ignoring inbound message",
			zap.String("conn_id", c.ID), zap.String("type", in.Type))
	}
}

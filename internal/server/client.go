package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gameportal/internal/chat"
)

// submitTimeout bounds how long a pump waits for room in the engine queue
// before dropping an inbound frame.
const submitTimeout = 5 * time.Second

// Client is one WebSocket connection. It implements chat.Conn: the engine
// queues frames through Send and releases the connection with Close.
type Client struct {
	id     string
	conn   *websocket.Conn
	engine *chat.Engine
	addr   string
	log    zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

var _ chat.Conn = (*Client)(nil)

// NewClient wraps conn. The send buffer holds up to sendBuffer queued frames.
func NewClient(id string, conn *websocket.Conn, engine *chat.Engine, addr string, maxMessageSize int64, sendBuffer int, log zerolog.Logger) *Client {
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		id:     id,
		conn:   conn,
		engine: engine,
		addr:   addr,
		log:    log.With().Str("conn_id", id).Str("remote_addr", addr).Logger(),
		send:   make(chan []byte, sendBuffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Send queues payload without blocking. It returns false when the buffer is
// full or the client has been closed.
func (c *Client) Send(payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("Recovered from panic in Send")
			ok = false
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close closes the send queue; the write pump then sends a close frame and
// tears down the connection. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// logReadError classifies the error that ended the read loop.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Msg("Frame exceeded maximum message size; closing connection")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info().Err(err).Msg("Client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info().Err(err).Msg("Client connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn().Err(err).Msg("Unexpected WebSocket close")
	default:
		c.log.Warn().Err(err).Msg("WebSocket read error")
	}
}

// processFrame decodes one inbound frame and hands it to the engine.
// Malformed frames are dropped; the connection stays open.
func (c *Client) processFrame(raw []byte) {
	ev, err := chat.DecodeEvent(c.id, raw)
	if err != nil {
		c.log.Debug().Err(err).Int("bytes", len(raw)).Msg("Dropping malformed chat frame")
		return
	}
	c.submit(ev)
}

func (c *Client) submit(ev chat.Event) bool {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if err := c.engine.Submit(ctx, ev); err != nil {
		if !errors.Is(err, chat.ErrEngineStopped) {
			c.log.Error().Err(err).Str("event", ev.Kind.String()).Msg("Failed to submit chat event")
		}
		return false
	}
	return true
}

// detach tells the engine the connection is gone. The disconnect waits for
// room in the queue for as long as the engine runs; it is never dropped.
func (c *Client) detach() {
	err := c.engine.Submit(context.Background(), chat.Event{Kind: chat.EventDisconnect, ConnID: c.id})
	if err != nil {
		// Stopped engines close every attached queue on the way out.
		c.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.detach()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("Error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debug().Int("message_type", messageType).Msg("Ignoring non-text frame")
			continue
		}
		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn().Err(err).Msg("Error closing connection in writePump")
	}
}

// handleMessage writes one outbound frame and returns false if the
// connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("Error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("Error writing frame")
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("Error writing close message")
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn().Err(err).Msg("Error writing ping message")
		return false
	}
	return true
}

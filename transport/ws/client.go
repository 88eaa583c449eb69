package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client binds one websocket to one authenticated principal. It is also
// the connection's EventSink: broadcasts land in the send channel and the
// write pump drains them. The send channel is buffered and never blocked
// on; a client that cannot keep up loses frames rather than stalling a
// room.
type Client struct {
	connID    domain.ConnID
	principal domain.Principal
	conn      *websocket.Conn
	send      chan []byte
	log       *slog.Logger
}

func NewClient(connID domain.ConnID, principal domain.Principal, conn *websocket.Conn, sendBuffer int, log *slog.Logger) *Client {
	return &Client{
		connID:    connID,
		principal: principal,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		log: log.With(
			"conn_id", connID,
			"user_id", principal.UserID),
	}
}

func (c *Client) ConnID() domain.ConnID       { return c.connID }
func (c *Client) Principal() domain.Principal { return c.principal }

// Consume implements the registry's EventSink: translate the event to its
// wire form and queue it for the write pump.
func (c *Client) Consume(_ context.Context, e event.DomainEvent) error {
	env, err := toOutbound(e)
	if err != nil {
		return err
	}
	if env.Event == "" {
		return nil
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case c.send <- raw:
		return nil
	default:
		return errors.ErrSlowConsumer
	}
}

// Send queues a reply to this client's own request, same path as a
// broadcast frame.
func (c *Client) Send(env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		c.log.Error("Failed to marshal envelope", "event", env.Event, "err", err)
		return
	}
	select {
	case c.send <- raw:
	default:
		c.log.Warn("Send buffer full, dropping frame", "event", env.Event)
	}
}

// ReadPump reads frames off the socket and hands each to handle, one at a
// time. Sequential handling is what gives a connection FIFO semantics.
// Returns when the socket dies or the context is canceled.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, env Envelope)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket closed unexpectedly", "err", err)
			} else {
				c.log.Debug("Websocket closed")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.SendError(errors.CodeValidation, "malformed envelope")
			continue
		}
		handle(ctx, env)
	}
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with pings. Closing the done channel stops it.
func (c *Client) WritePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case raw := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Debug("Write failed, closing", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendError(code errors.WireCode, message string) {
	env, err := NewEnvelope(EventError, ErrorOut{Code: code, Message: message})
	if err != nil {
		return
	}
	c.Send(env)
}

func (c *Client) Close() {
	_ = c.conn.Close()
}

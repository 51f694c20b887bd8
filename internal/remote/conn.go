package remote

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// client is one server-side websocket connection. All writes go through
// writePump; responses block until queued, pushed events are dropped when
// the client falls behind.
type client struct {
	conn   *websocket.Conn
	logger zerolog.Logger
	send   chan Envelope
	done   chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn, logger zerolog.Logger) *client {
	return &client{
		conn:   conn,
		logger: logger,
		send:   make(chan Envelope, clientSendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) reply(env Envelope) {
	select {
	case c.send <- env:
	case <-c.done:
	}
}

func (c *client) push(env Envelope) {
	select {
	case c.send <- env:
	case <-c.done:
	default:
		c.logger.Warn().Str("type", string(env.Type)).Msg("remote client too slow, dropping event")
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump writes queued envelopes until the client is closed, then
// flushes what is still queued and sends a close frame.
func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				c.logger.Debug().Err(err).Msg("remote client write failed")
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (c *client) flush() {
	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(env Envelope) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(env)
}

package wire

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrscan-dev/qrscan/internal/scanerr"
)

// DefaultTimeout bounds a request when the caller does not override it.
const DefaultTimeout = 10 * time.Second

type result struct {
	data string
	err  error
}

// Channel is a message channel to a decode worker. A single read pump
// matches replies to pending requests by correlation id; replies bearing
// unknown or stale ids are dropped. Concurrent requests on one channel
// are disambiguated purely by id, never queued.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan result
	closed   bool
	closeErr error
}

// NewChannel wraps an established websocket connection and starts its
// read pump.
func NewChannel(conn *websocket.Conn) *Channel {
	c := &Channel{
		conn:    conn,
		pending: make(map[int64]chan result),
	}
	go c.readPump()
	return c
}

// Send transmits a fire-and-forget message and returns its correlation
// id. No reply is expected or tracked.
func (c *Channel) Send(msgType string, data any) (int64, error) {
	id := NextID()
	return id, c.write(id, msgType, data)
}

// Request transmits a message and waits for the reply carrying the same
// correlation id. The pending entry is registered before sending, so
// even an immediate reply finds it.
//
// A reply with non-null data resolves to that data; null data fails with
// scanerr.ErrNoQRCodeFound. A channel-level failure rejects with the
// scanner error carrying the failure message, and an elapsed deadline
// rejects with scanerr.ErrTimeout. Timing out does not cancel the remote
// work; its eventual reply is dropped by the pump.
func (c *Channel) Request(ctx context.Context, msgType string, data any, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := NextID()
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return "", err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(id, msgType, data); err != nil {
		c.drop(id)
		return "", scanerr.Scanner(err.Error())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.data, r.err
	case <-timer.C:
		c.drop(id)
		return "", scanerr.ErrTimeout
	case <-ctx.Done():
		c.drop(id)
		return "", scanerr.Scanner(ctx.Err().Error())
	}
}

// Close sends the fire-and-forget close message and tears the connection
// down. The worker exits on receipt; no reply is awaited.
func (c *Channel) Close() error {
	if _, err := c.Send(TypeClose, nil); err != nil {
		slog.Debug("Close message not delivered", "error", err)
	}
	return c.conn.Close()
}

// Detach tears the connection down without the close message, leaving an
// externally managed worker running for other clients.
func (c *Channel) Detach() error {
	return c.conn.Close()
}

func (c *Channel) write(id int64, msgType string, data any) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(Message{ID: id, Type: msgType, Data: raw})
}

func (c *Channel) drop(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) readPump() {
	for {
		var reply Reply
		if err := c.conn.ReadJSON(&reply); err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[reply.ID]
		if ok {
			delete(c.pending, reply.ID)
		}
		c.mu.Unlock()
		if !ok {
			// Stale or superseded reply; its request stopped listening.
			slog.Debug("Dropping unmatched worker reply", "id", reply.ID)
			continue
		}

		if reply.Data == nil {
			ch <- result{err: scanerr.ErrNoQRCodeFound}
		} else {
			ch <- result{data: *reply.Data}
		}
	}
}

// fail marks the channel broken and rejects every pending request with
// the channel-level error message.
func (c *Channel) fail(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	failure := scanerr.Scanner(msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = failure
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- result{err: failure}
	}
}

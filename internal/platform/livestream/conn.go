package livestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by Send after the connection has been closed.
	ErrClosed = errors.New("livestream: connection closed")
	// ErrSlowConsumer is returned by Send when the client has fallen too far
	// behind; the connection is closed.
	ErrSlowConsumer = errors.New("livestream: client not reading")
)

const (
	MessageWarmup    = "warmup"
	MessageHeartbeat = "heartbeat"

	DefaultSendBuffer = 64
	DefaultWriteWait  = 10 * time.Second
)

// Frame is one server-sent event payload. Exactly one of UserID or
// RecipientID is set, depending on the stream.
type Frame struct {
	Message     any    `json:"message"`
	UserID      string `json:"userId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}

// Encode renders f as a single "data:" record terminated by a blank line.
func (f Frame) Encode() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out, nil
}

// Conn is a live event-stream connection. Send only queues a frame; the
// request goroutine writes queued frames in Pump, so a client that stops
// reading stalls its own stream and nothing else.
type Conn struct {
	w         io.Writer
	rc        *http.ResponseController
	flusher   http.Flusher
	writeWait time.Duration

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithSendBuffer sets how many frames may wait for the writer before the
// connection is treated as stalled and closed.
func WithSendBuffer(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.send = make(chan []byte, n)
		}
	}
}

// WithWriteWait bounds a single frame write.
func WithWriteWait(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.writeWait = d
		}
	}
}

// NewConn wraps w. When w is an http.ResponseWriter each write carries a
// deadline; otherwise frames are flushed if w implements http.Flusher.
func NewConn(w io.Writer, opts ...ConnOption) *Conn {
	c := &Conn{
		w:         w,
		writeWait: DefaultWriteWait,
		send:      make(chan []byte, DefaultSendBuffer),
		done:      make(chan struct{}),
	}
	if rw, ok := w.(http.ResponseWriter); ok {
		// echo.Response swallows flush errors; control the writer beneath it.
		if u, ok := rw.(interface{ Unwrap() http.ResponseWriter }); ok {
			rw = u.Unwrap()
		}
		c.rc = http.NewResponseController(rw)
	} else if f, ok := w.(http.Flusher); ok {
		c.flusher = f
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send queues one frame without blocking. A full queue means the client has
// stopped reading: the connection is closed and ErrSlowConsumer returned.
// After Close it returns ErrClosed.
func (c *Conn) Send(f Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.Close()
		return ErrSlowConsumer
	}
}

// Pump writes queued frames, and a heartbeat frame every interval, until ctx
// ends, the connection is closed, or a write fails. It must be called from a
// single goroutine.
func (c *Conn) Pump(ctx context.Context, interval time.Duration, heartbeat Frame) error {
	beat, err := heartbeat.Encode()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.write(beat); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) write(data []byte) error {
	if c.rc != nil {
		// Not every writer supports deadlines; the queue bound still applies.
		_ = c.rc.SetWriteDeadline(time.Now().Add(c.writeWait))
	}
	if _, err := c.w.Write(data); err != nil {
		c.Close()
		return fmt.Errorf("write frame: %w", err)
	}
	switch {
	case c.rc != nil:
		if err := c.rc.Flush(); err != nil {
			c.Close()
			return fmt.Errorf("flush frame: %w", err)
		}
	case c.flusher != nil:
		c.flusher.Flush()
	}
	return nil
}

// Close marks the connection closed. It never waits on an in-flight write
// and is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

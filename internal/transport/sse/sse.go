// Package sse implements Server-Sent Events for the streaming pull
// endpoint: a Client wrapping one long-lived HTTP response, and a
// mizu middleware that upgrades a matching request into one. Fanning
// events out to every connected Client is the caller's job; see
// internal/sync/broadcast.
package sse

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-mizu/mizu"
)

// Event is a single server-sent event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int
}

// Client is one connected SSE subscriber. Events delivered to Events
// are written to the underlying response by the middleware's run
// loop; callers use Send/SendData/SendEvent to publish to it.
type Client struct {
	Events chan *Event
	Done   chan struct{}

	closeOnce sync.Once

	w       http.ResponseWriter
	flusher http.Flusher
}

// Close signals the client's run loop to stop. Safe to call more than
// once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// Send enqueues event for delivery. It never blocks or panics on a
// closed client: a send after Close is a silent no-op.
func (c *Client) Send(event *Event) {
	select {
	case <-c.Done:
		return
	default:
	}
	select {
	case c.Events <- event:
	case <-c.Done:
	}
}

// SendData is shorthand for Send with only the Data field set.
func (c *Client) SendData(data string) {
	c.Send(&Event{Data: data})
}

// SendEvent is shorthand for Send with Event and Data set.
func (c *Client) SendEvent(event, data string) {
	c.Send(&Event{Event: event, Data: data})
}

// send writes event to the wire in SSE format and flushes. Multi-line
// data is split across repeated "data:" fields per the SSE spec.
func (c *Client) send(event *Event) {
	w := bufio.NewWriter(c.w)
	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	if event.Event != "" {
		fmt.Fprintf(w, "event: %s\n", event.Event)
	}
	if event.Retry != 0 {
		fmt.Fprintf(w, "retry: %d\n", event.Retry)
	}
	for _, line := range strings.Split(event.Data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	w.WriteString("\n")
	w.Flush()
	if c.flusher != nil {
		c.flusher.Flush()
	}
}

// Options configures the SSE middleware.
type Options struct {
	BufferSize int
	Retry      int
}

const defaultBufferSize = 16

// New returns a mizu middleware that upgrades matching requests into
// an SSE connection and invokes handle with the new Client, using
// default options.
func New(handle func(c *mizu.Ctx, client *Client)) mizu.Middleware {
	return WithOptions(handle, Options{})
}

// WithOptions is New with explicit buffer size and retry interval.
// A zero BufferSize falls back to defaultBufferSize.
func WithOptions(handle func(c *mizu.Ctx, client *Client), opts Options) mizu.Middleware {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return func(next mizu.Handler) mizu.Handler {
		return func(c *mizu.Ctx) error {
			if !acceptsEventStream(c.Request().Header.Get("Accept")) {
				return next(c)
			}

			flusher, ok := c.Writer().(http.Flusher)
			if !ok {
				return next(c)
			}

			header := c.Writer().Header()
			header.Set("Content-Type", "text/event-stream")
			header.Set("Cache-Control", "no-cache")
			header.Set("Connection", "keep-alive")
			c.Writer().WriteHeader(http.StatusOK)
			flusher.Flush()

			client := &Client{
				Events:  make(chan *Event, bufferSize),
				Done:    make(chan struct{}),
				w:       c.Writer(),
				flusher: flusher,
			}
			if opts.Retry != 0 {
				client.send(&Event{Retry: opts.Retry})
			}

			go handle(c, client)

			reqCtx := c.Request().Context()
			for {
				select {
				case event, ok := <-client.Events:
					if !ok {
						return nil
					}
					client.send(event)
				case <-client.Done:
					return nil
				case <-reqCtx.Done():
					client.Close()
					return nil
				}
			}
		}
	}
}

// acceptsEventStream reports whether an Accept header permits an SSE
// response: empty, a bare wildcard, or explicitly naming the
// event-stream media type.
func acceptsEventStream(accept string) bool {
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		media := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if media == "*/*" || media == "text/event-stream" {
			return true
		}
	}
	return false
}

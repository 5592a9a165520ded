// Package live is the client half of the per-ticket live channel: an
// explicit connection manager with connect, close and an on-event hook.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	serverlive "github.com/moajmalnk/skillmount-support/internal/live"
)

// ErrTransportDropped reports that the live channel closed unexpectedly.
var ErrTransportDropped = errors.New("live transport dropped")

// Options tune one connection. By default a dropped connection is NOT
// retried: live updates silently stop, matching the documented policy
// where staleness is preferred over surprise reconnect traffic. Set
// Reconnect to opt in to exponential backoff.
type Options struct {
	Reconnect  bool
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnDrop is called when the channel closes unexpectedly and no
	// reconnect will follow. Optional.
	OnDrop func(error)

	Dialer *websocket.Dialer
}

// Conn is one live subscription to a ticket, held while the ticket view is
// open and closed when it changes or goes away.
type Conn struct {
	url     string
	onEvent func(serverlive.Event)
	opts    Options

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
	done   chan struct{}
}

// Dial opens the live channel for one ticket. The bearer token rides in
// the connection URI because browser WebSocket clients cannot set headers.
func Dial(ctx context.Context, baseURL, ticketID, token string, onEvent func(serverlive.Event), opts Options) (*Conn, error) {
	u, err := wsURL(baseURL, ticketID, token)
	if err != nil {
		return nil, err
	}

	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	ws, _, err := opts.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		url:     u,
		onEvent: onEvent,
		opts:    opts,
		ws:      ws,
		done:    make(chan struct{}),
	}
	go c.readLoop(ws)
	return c, nil
}

func wsURL(baseURL, ticketID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/tickets/" + ticketID + "/live"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			c.handleDrop(err)
			return
		}

		var ev serverlive.Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			// Unknown frames are skipped, not fatal.
			continue
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

func (c *Conn) handleDrop(cause error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	if !c.opts.Reconnect {
		if c.opts.OnDrop != nil {
			c.opts.OnDrop(errors.Join(ErrTransportDropped, cause))
		}
		return
	}

	backoff := c.opts.MinBackoff
	for {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		ws, _, err := c.opts.Dialer.Dial(c.url, nil)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = ws.Close()
				return
			}
			c.ws = ws
			c.mu.Unlock()
			go c.readLoop(ws)
			return
		}

		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// Close tears the subscription down. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	close(c.done)
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return ws.Close()
	}
	return nil
}

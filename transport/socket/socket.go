// Package socket streams backend events over a websocket connection.
//
// Frames are JSON objects of the form {"event": "<name>", "data": {...}}. The transaction
// token is presented as a bearer credential during the handshake.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrEthical07/goGuardian/transport"
)

// Path is the websocket endpoint, relative to the service URL.
const Path = "/socket"

// Config controls the websocket connection.
type Config struct {
	HandshakeTimeout time.Duration
}

// Transport is a websocket event stream.
type Transport struct {
	endpoint string
	dialer   *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	wg     sync.WaitGroup
}

// New returns a transport for serviceURL. http and https schemes are mapped to ws and wss.
func New(serviceURL string, cfg Config) (*Transport, error) {
	u, err := url.Parse(strings.TrimSpace(serviceURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("socket: invalid service url %q", serviceURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("socket: unsupported scheme %q", u.Scheme)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Transport{
		endpoint: u.JoinPath(Path).String(),
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}, nil
}

// Connect dials the service and starts delivering frames to handler.
func (t *Transport) Connect(ctx context.Context, token string, handler transport.Handler) error {
	if handler == nil {
		return errors.New("socket: nil handler")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("socket: transport closed")
	}
	if t.conn != nil {
		t.mu.Unlock()
		return errors.New("socket: already connected")
	}
	t.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := t.dialer.DialContext(ctx, t.endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("socket: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("socket: dial failed: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return errors.New("socket: transport closed")
	}
	t.conn = conn
	t.mu.Unlock()

	t.wg.Add(1)
	go t.read(conn, handler)
	return nil
}

// Close closes the connection and waits for the reader to exit.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	t.wg.Wait()
	return err
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) read(conn *websocket.Conn, handler transport.Handler) {
	defer t.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			log.Print("goGuardian: socket read failed")
			handler(transport.NewErrorEvent(transport.ErrorPayload{
				Error:   "socket_error",
				Message: err.Error(),
			}))
			return
		}

		var ev transport.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			log.Print("goGuardian: dropping undecodable socket frame")
			continue
		}
		handler(ev)
	}
}

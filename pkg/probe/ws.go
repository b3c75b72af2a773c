// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package probe

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket channel
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketLink reaches a remote probe bridge over WebSocket. Each named
// channel is its own connection at <base-url>/<channel-name>, dialed lazily
// on first use.
type WebSocketLink struct {
	baseURL       string
	username      string
	password      string
	skipSSLVerify bool

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// OpenWebSocketLink validates the base URL and prepares a link. Channel
// connections are dialed on first Up/Down call; a dial failure there is a
// transport fault for the caller to treat as fatal.
func OpenWebSocketLink(baseURL, username, password string, skipSSLVerify bool) (*WebSocketLink, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	return &WebSocketLink{
		baseURL:       baseURL,
		username:      username,
		password:      password,
		skipSSLVerify: skipSSLVerify,
		conns:         make(map[string]*websocket.Conn),
	}, nil
}

func (w *WebSocketLink) Up(name string) (io.Reader, error) {
	conn, err := w.channel(name)
	if err != nil {
		return nil, err
	}
	return &wsReader{conn: conn}, nil
}

func (w *WebSocketLink) Down(name string) (io.Writer, error) {
	conn, err := w.channel(name)
	if err != nil {
		return nil, err
	}
	return &wsWriter{conn: conn}, nil
}

func (w *WebSocketLink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for name, conn := range w.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(w.conns, name)
	}
	return firstErr
}

func (w *WebSocketLink) channel(name string) (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if conn, ok := w.conns[name]; ok {
		return conn, nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if w.skipSSLVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	headers := http.Header{}
	if w.username != "" && w.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.username + ":" + w.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	wsURL := w.baseURL + "/" + name
	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	w.conns[name] = conn
	return conn, nil
}

// wsReader adapts a WebSocket connection to byte-level reading
type wsReader struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (r *wsReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrConnectionClosed
	}

	// Drain buffered message bytes first
	if r.bufOffset < len(r.buf) {
		n := copy(p, r.buf[r.bufOffset:])
		r.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			r.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		r.buf = data
		r.bufOffset = 0
		n := copy(p, r.buf)
		r.bufOffset = n
		return n, nil
	}
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

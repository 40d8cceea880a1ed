//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package service

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn implements a byte stream over a websocket connection. Each
// write is sent as one binary message and reads consume the messages
// in order.
type Conn struct {
	ws      *websocket.Conn
	r       io.Reader
	closeMu sync.Mutex
	closed  bool
}

// NewConn creates a byte stream for the websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws: ws,
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					if closeErr.Code == websocket.CloseNormalClosure {
						return 0, io.EOF
					}
					return 0, fmt.Errorf("%w: %v", io.ErrUnexpectedEOF, err)
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				return 0, fmt.Errorf("service: unexpected websocket message %d",
					mt)
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetDeadline sets the read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	return errors.Join(c.ws.SetReadDeadline(t), c.ws.SetWriteDeadline(t))
}

// Close sends the close message and closes the connection.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

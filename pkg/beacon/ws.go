// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package beacon

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type wsConn struct {
	ws   *websocket.Conn
	once sync.Once
}

// DialWebsocket returns a Dialer that connects to a host's beacon websocket
// endpoint at the given URL.
func DialWebsocket(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		ws, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{ws: ws}, nil
	}
}

// AcceptWebsocket upgrades an incoming HTTP request into a beacon connection
// on the host side.
func AcceptWebsocket(w http.ResponseWriter, r *http.Request) (Conn, error) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

func (c *wsConn) Send(ctx context.Context, env Envelope) error {
	if err := wsjson.Write(ctx, c.ws, env); err != nil {
		return err
	}
	return nil
}

func (c *wsConn) Recv(ctx context.Context) (Envelope, error) {
	var env Envelope
	if err := wsjson.Read(ctx, c.ws, &env); err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return Envelope{}, ErrClosed
		}
		return Envelope{}, err
	}
	return env, nil
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		_ = c.ws.Close(websocket.StatusNormalClosure, "beacon closed")
	})
	return nil
}

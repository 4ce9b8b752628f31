// Package ws provides a WebSocket client for the jibsa gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/yoonhw/jibsa/internal/gateway/ws"
)

// Client is a WebSocket client for the jibsa gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Chat sends one utterance to the gateway.
func (c *Client) Chat(text, actorID string) (string, error) {
	return c.request(wsprotocol.MethodChat, wsprotocol.ChatParams{Text: text, ActorID: actorID})
}

// Reset asks the gateway to clear the conversation context.
func (c *Client) Reset() (string, error) {
	return c.request(wsprotocol.MethodReset, nil)
}

func (c *Client) request(method string, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	frame := wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     id,
		Method: method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		frame.Params = data
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return "", err
	}
	return id, nil
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

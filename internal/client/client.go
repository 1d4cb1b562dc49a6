// Package client speaks the relay's signaling protocol from Go.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/AhmedrAshraf/filepizza/internal/session"
	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

const (
	writeWait     = 5 * time.Second
	updatesBuffer = 16
)

var ErrClosed = errors.New("client: connection closed")

// ProtocolError is an error message sent by the relay before it closed the
// connection.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string { return "relay error " + e.Code + ": " + e.Message }

type inbound struct {
	Type    signaling.MessageType `json:"type"`
	ID      *int64                `json:"id"`
	Data    json.RawMessage       `json:"data"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
}

// Client is one signaling connection. Requests may be issued concurrently.
type Client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan json.RawMessage
	err     error

	updates chan []session.Downloader
	done    chan struct{}
}

// Dial connects to a relay socket URL such as ws://localhost:3000/socket.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		pending: make(map[int64]chan json.RawMessage),
		updates: make(chan []session.Downloader, updatesBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Upload registers a file. The relay does not answer a second upload on the
// same connection, so that call only returns when ctx is done.
func (c *Client) Upload(ctx context.Context, file session.FileInfo) (signaling.UploadReply, error) {
	var reply signaling.UploadReply
	err := c.call(ctx, signaling.MessageTypeUpload, file, &reply)
	return reply, err
}

// RequestDownload resolves a token or short token. It returns nil, nil when
// no session matched.
func (c *Client) RequestDownload(ctx context.Context, token, shortToken string) (*session.FileInfo, error) {
	var reply *session.FileInfo
	req := signaling.DownloadRequest{Token: token, ShortToken: shortToken}
	if err := c.call(ctx, signaling.MessageTypeRequestDownload, req, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) RTCConfig(ctx context.Context) ([]webrtc.ICEServer, error) {
	var reply signaling.RTCConfigReply
	if err := c.call(ctx, signaling.MessageTypeRTCConfig, nil, &reply); err != nil {
		return nil, err
	}
	return reply.ICEServers, nil
}

// Emit sends a message without an id; the relay processes it but never
// replies.
func (c *Client) Emit(msgType signaling.MessageType, data any) error {
	return c.write(msgType, nil, data)
}

// Downloaders delivers updateDownloaders pushes. Each value is the full list,
// so when the consumer falls behind older values are dropped.
func (c *Client) Downloaders() <-chan []session.Downloader { return c.updates }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) call(ctx context.Context, msgType signaling.MessageType, data any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan json.RawMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(msgType, &id, data); err != nil {
		return err
	}

	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s reply: %w", msgType, err)
		}
		return nil
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(msgType signaling.MessageType, id *int64, data any) error {
	msg := signaling.ClientMessage{Type: msgType, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = raw
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) readLoop() {
	var loopErr error
	defer func() {
		c.mu.Lock()
		if loopErr == nil {
			loopErr = ErrClosed
		}
		c.err = loopErr
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			loopErr = fmt.Errorf("%w: %v", ErrClosed, err)
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			loopErr = fmt.Errorf("decode relay message: %w", err)
			return
		}

		switch msg.Type {
		case signaling.MessageTypeReply:
			if msg.ID == nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg.Data
			}
		case signaling.MessageTypeUpdateDownloaders:
			var list []session.Downloader
			if err := json.Unmarshal(msg.Data, &list); err != nil {
				continue
			}
			c.pushUpdate(list)
		case signaling.MessageTypeError:
			loopErr = &ProtocolError{Code: msg.Code, Message: msg.Message}
			return
		}
	}
}

func (c *Client) pushUpdate(list []session.Downloader) {
	for {
		select {
		case c.updates <- list:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AhmedrAshraf/filepizza/internal/metrics"
	"github.com/AhmedrAshraf/filepizza/internal/ratelimit"
	"github.com/AhmedrAshraf/filepizza/internal/session"
)

const wsWriteWait = 1 * time.Second

// conn is the handler for one browser connection. Messages are handled in
// arrival order on the read loop, so session is only touched from there.
type conn struct {
	srv *Server
	id  session.ConnID
	ws  *websocket.Conn
	ip  string
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// session is the upload this connection registered, if any.
	session *session.Session
	limiter *ratelimit.Bucket

	writeMu   sync.Mutex
	pingDone  chan struct{}
	closeOnce sync.Once
	tasks     sync.WaitGroup
}

func (c *conn) run() {
	defer c.disconnect()

	c.ws.SetReadLimit(c.srv.maxMessageBytes)
	c.extendDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})
	go c.keepalive()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("signaling read ended", "err", err)
			}
			return
		}
		c.extendDeadline()

		// Checked after the read so the close frame is not lost to a reset
		// caused by unread data.
		if !c.limiter.Allow() {
			c.srv.metrics.Inc(metrics.WSRateLimited)
			c.fail("rate_limited", "rate limit exceeded", websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			c.fail("bad_message", "expected text message", websocket.CloseUnsupportedData, "expected text message")
			return
		}
		msg, err := ParseClientMessage(data)
		if err != nil {
			c.fail("bad_message", err.Error(), websocket.ClosePolicyViolation, "bad message")
			return
		}

		switch msg.Type {
		case MessageTypeUpload:
			req, _ := msg.Upload()
			if err := c.handleUpload(msg.ID, req); err != nil {
				c.collaboratorFailed("upload", err)
				return
			}
		case MessageTypeRequestDownload:
			req, _ := msg.DownloadRequest()
			c.handleRequestDownload(msg.ID, req)
		case MessageTypeRTCConfig:
			// The provider may block on a remote fetch and touches no
			// connection state, so it does not hold up later messages.
			c.tasks.Add(1)
			go func(id *int64) {
				defer c.tasks.Done()
				c.handleRTCConfig(id)
			}(msg.ID)
		}
	}
}

// handleUpload registers a session owned by this connection. A second upload
// on the same connection is ignored without a reply.
func (c *conn) handleUpload(id *int64, file session.FileInfo) error {
	if c.session != nil {
		c.srv.metrics.Inc(metrics.UploadDuplicateIgnored)
		c.log.Debug("ignoring upload: connection already has a session", "short_token", c.session.ShortToken())
		return nil
	}

	s, err := c.srv.registry.Create(c.ctx, c.id)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.SetFile(file)
	c.session = s

	c.srv.metrics.Inc(metrics.UploadRegistered)
	c.log.Info("upload registered",
		"short_token", s.ShortToken(),
		"file_size", file.Size,
		"file_type", file.Type,
	)
	c.reply(id, UploadReply{Token: s.Token(), ShortToken: s.ShortToken()})
	return nil
}

// resolve finds the session a download request refers to: this connection's
// own upload first, then the long token, then the short token.
func (c *conn) resolve(req DownloadRequest) (*session.Session, bool) {
	if c.session != nil {
		return c.session, true
	}
	if s, ok := c.srv.registry.Find(req.Token); ok {
		return s, true
	}
	return c.srv.registry.FindShort(req.ShortToken)
}

func (c *conn) handleRequestDownload(id *int64, req DownloadRequest) {
	s, ok := c.resolve(req)
	if !ok {
		c.srv.metrics.Inc(metrics.DownloadNotFound)
		c.log.Debug("download request did not match a session")
		c.reply(id, nil)
		return
	}

	s.AddDownloader(session.Downloader{IP: c.ip}, func(list []session.Downloader) {
		c.srv.notifyOwner(s, list)
	})

	c.srv.metrics.Inc(metrics.DownloadResolved)
	c.log.Info("download resolved", "short_token", s.ShortToken())
	c.reply(id, s.File())
}

func (c *conn) handleRTCConfig(id *int64) {
	c.srv.metrics.Inc(metrics.ICERequest)
	servers, err := c.srv.ice.ICEServers(c.ctx)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.collaboratorFailed("rtcConfig", err)
		c.close()
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	c.reply(id, RTCConfigReply{ICEServers: servers})
}

// notifyOwner pushes the downloader list to the session owner. It runs under
// the session lock, so pushes for one session leave in append order.
func (s *Server) notifyOwner(sess *session.Session, list []session.Downloader) {
	owner, ok := s.hub.lookup(sess.Owner())
	if !ok {
		s.metrics.Inc(metrics.DownloaderNotifySkip)
		s.log.Debug("session owner not connected, skipping downloader update", "short_token", sess.ShortToken())
		return
	}
	// A failed write poisons the socket for good, so drop the owner and let
	// its disconnect remove the session.
	if err := owner.send(ServerMessage{Type: MessageTypeUpdateDownloaders, Data: list}); err != nil {
		owner.log.Warn("failed to push downloader update, closing owner", "err", err)
		owner.close()
	}
}

// disconnect is the only teardown path. The connection leaves the table
// before its session leaves the registry so that no downloader resolving the
// session in between can reach a closed socket.
func (c *conn) disconnect() {
	c.close()
	c.srv.hub.remove(c.id)
	if c.session != nil {
		c.srv.registry.Remove(c.session)
		c.log.Info("session removed", "short_token", c.session.ShortToken())
	}
	c.tasks.Wait()
	c.srv.metrics.Inc(metrics.WSConnectionClosed)
	c.log.Debug("signaling connection closed")
}

func (c *conn) collaboratorFailed(op string, err error) {
	c.log.Error("collaborator failure", "op", op, "err", err)
	c.srv.fatal(fmt.Errorf("%s: %w", op, err))
}

func (c *conn) reply(id *int64, data any) {
	if id == nil {
		return
	}
	if err := c.send(ServerMessage{Type: MessageTypeReply, ID: id, Data: data}); err != nil {
		c.log.Debug("failed to send reply", "err", err)
	}
}

func (c *conn) send(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) fail(code, message string, closeCode int, closeReason string) {
	c.srv.metrics.Inc(metrics.WSBadMessage)
	_ = c.send(ServerMessage{Type: MessageTypeError, Code: code, Message: message})
	c.closeWith(closeCode, closeReason)
}

func (c *conn) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.pingDone)
		_ = c.ws.Close()
	})
}

func (c *conn) extendDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.idleTimeout))
}

func (c *conn) keepalive() {
	t := time.NewTicker(c.srv.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.pingDone:
			return
		case <-t.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug("ping failed", "err", err)
				return
			}
		}
	}
}

package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/AhmedrAshraf/filepizza/internal/session"
)

func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, raw string) ServerMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestFailedOwnerPushRemovesSession(t *testing.T) {
	reg := session.NewMemoryRegistry(session.MemoryConfig{})
	srv := NewServer(Config{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnFatal:  func(err error) { t.Errorf("unexpected fatal: %v", err) },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + SocketPath

	// The uploader stops reading after its reply, so nothing answers the
	// close frame below and its read loop stays parked.
	uploader := dialRaw(t, url)
	reply := roundTrip(t, uploader, `{"type":"upload","id":1,"data":{"fileName":"a.txt","fileSize":3,"fileType":"text/plain"}}`)
	require.Equal(t, MessageTypeReply, reply.Type)
	var tokens UploadReply
	raw, err := json.Marshal(reply.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &tokens))

	sess, ok := reg.Find(tokens.Token)
	require.True(t, ok)
	owner, ok := srv.hub.lookup(sess.Owner())
	require.True(t, ok)
	// After a close frame every later write on the socket fails.
	owner.closeWith(websocket.CloseGoingAway, "")

	downloader := dialRaw(t, url)
	got := roundTrip(t, downloader, `{"type":"requestDownload","id":1,"data":{"token":"`+tokens.Token+`"}}`)
	require.Equal(t, MessageTypeReply, got.Type)
	require.NotNil(t, got.Data)

	require.Eventually(t, func() bool {
		_, found := reg.Find(tokens.Token)
		return !found
	}, 2*time.Second, 10*time.Millisecond)
	_, ok = srv.hub.lookup(sess.Owner())
	require.False(t, ok)
}

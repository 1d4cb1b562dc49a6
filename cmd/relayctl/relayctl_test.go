package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedrAshraf/filepizza/internal/client"
	"github.com/AhmedrAshraf/filepizza/internal/session"
	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

func startRelay(t *testing.T) (socketURL string, reg *session.MemoryRegistry) {
	t.Helper()
	reg = session.NewMemoryRegistry(session.MemoryConfig{})
	srv := signaling.NewServer(signaling.Config{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + signaling.SocketPath, reg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadPrintsTokensAndLinks(t *testing.T) {
	relay, _ := startRelay(t)
	path := filepath.Join(t.TempDir(), "menu.pdf")
	require.NoError(t, os.WriteFile(path, []byte("margherita"), 0o600))

	out, err := run(t, "--relay", relay, "upload", path, "--wait=false", "--base-url", "https://file.pizza")
	require.NoError(t, err)

	assert.Contains(t, out, "file:        menu.pdf (10 bytes, application/pdf)")
	assert.Contains(t, out, "link:        https://file.pizza/")
	assert.Contains(t, out, "short link:  https://file.pizza/download/")
	assert.Contains(t, out, "█")
}

func TestUploadWithFlagsOnly(t *testing.T) {
	relay, _ := startRelay(t)

	out, err := run(t, "--relay", relay, "upload", "--name", "x.bin", "--size", "0", "--no-qr", "--wait=false")
	require.NoError(t, err)
	assert.Contains(t, out, "file:        x.bin (0 bytes, application/octet-stream)")
	assert.NotContains(t, out, "█")
}

func TestUploadRequiresMetadata(t *testing.T) {
	_, err := run(t, "upload", "--wait=false")
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	relay, _ := startRelay(t)

	owner, err := client.Dial(context.Background(), relay, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = owner.Close() })
	file := session.FileInfo{Name: "pizza.png", Size: 42, Type: "image/png"}
	tokens, err := owner.Upload(context.Background(), file)
	require.NoError(t, err)

	out, err := run(t, "--relay", relay, "lookup", tokens.Token)
	require.NoError(t, err)
	var got session.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, file, got)

	out, err = run(t, "--relay", relay, "lookup", "--short", tokens.ShortToken)
	require.NoError(t, err)
	assert.Contains(t, out, `"fileName": "pizza.png"`)

	_, err = run(t, "--relay", relay, "lookup", "--short", "missing")
	require.ErrorIs(t, err, errNotFound)
}

func TestICE(t *testing.T) {
	relay, _ := startRelay(t)

	out, err := run(t, "--relay", relay, "ice")
	require.NoError(t, err)

	var reply signaling.RTCConfigReply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	require.NotEmpty(t, reply.ICEServers)
}

func TestWebBaseURL(t *testing.T) {
	got, err := webBaseURL("wss://file.pizza/socket")
	require.NoError(t, err)
	assert.Equal(t, "https://file.pizza", got)

	got, err = webBaseURL("ws://localhost:3000/socket")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", got)

	_, err = webBaseURL("http://localhost:3000/socket")
	require.Error(t, err)
}

package signaling_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AhmedrAshraf/filepizza/internal/client"
	"github.com/AhmedrAshraf/filepizza/internal/session"
	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

const (
	testTimeout = 5 * time.Second
	quietPeriod = 150 * time.Millisecond
)

type relay struct {
	srv   *signaling.Server
	url   string
	fatal chan error
}

// startRelay serves a signaling.Server on a loopback listener. cfg.OnFatal is
// replaced with a recorder that keeps the first few failures and never blocks.
func startRelay(t *testing.T, cfg signaling.Config) *relay {
	t.Helper()
	fatal := make(chan error, 8)
	cfg.OnFatal = func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	srv := signaling.NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &relay{
		srv:   srv,
		url:   "ws" + strings.TrimPrefix(ts.URL, "http") + signaling.SocketPath,
		fatal: fatal,
	}
}

func (r *relay) dial(t *testing.T) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := client.Dial(ctx, r.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func nextUpdate(t *testing.T, c *client.Client) []session.Downloader {
	t.Helper()
	select {
	case list := <-c.Downloaders():
		return list
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for updateDownloaders")
		return nil
	}
}

func expectNoUpdate(t *testing.T, c *client.Client) {
	t.Helper()
	select {
	case list := <-c.Downloaders():
		t.Fatalf("unexpected updateDownloaders: %v", list)
	case <-time.After(quietPeriod):
	}
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Create(ctx context.Context, owner session.ConnID) (*session.Session, error) {
	args := m.Called(ctx, owner)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockRegistry) Find(token string) (*session.Session, bool) {
	args := m.Called(token)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Bool(1)
}

func (m *mockRegistry) FindShort(shortToken string) (*session.Session, bool) {
	args := m.Called(shortToken)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Bool(1)
}

func (m *mockRegistry) Remove(s *session.Session) {
	m.Called(s)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	args := m.Called(ctx)
	servers, _ := args.Get(0).([]webrtc.ICEServer)
	return servers, args.Error(1)
}

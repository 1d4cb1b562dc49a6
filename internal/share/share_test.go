package share

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedrAshraf/filepizza/internal/session"
)

func TestLinksFor(t *testing.T) {
	links, err := LinksFor("https://file.pizza/", "cheese/olive/basil/crust", "abc23xyz")
	require.NoError(t, err)
	assert.Equal(t, "https://file.pizza/cheese/olive/basil/crust", links.Long)
	assert.Equal(t, "https://file.pizza/download/abc23xyz", links.Short)
}

func TestLinksForRejectsBadBase(t *testing.T) {
	_, err := LinksFor("", "a/b", "c")
	require.ErrorIs(t, err, ErrNoBaseURL)

	_, err = LinksFor("file.pizza", "a/b", "c")
	require.Error(t, err)
}

func TestQRCodeIsPNG(t *testing.T) {
	b, err := QRCode("https://file.pizza/download/abc23xyz", 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestTerminalQRCode(t *testing.T) {
	s, err := TerminalQRCode("https://file.pizza/download/abc23xyz")
	require.NoError(t, err)
	assert.Greater(t, strings.Count(s, "\n"), 5)
}

func TestHandler(t *testing.T) {
	reg := session.NewMemoryRegistry(session.MemoryConfig{})
	s, err := reg.Create(context.Background(), "owner")
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(HandlerConfig{Registry: reg, BaseURL: "https://file.pizza"}).RegisterRoutes(mux)

	t.Run("known session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/"+s.ShortToken(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		_, err := png.Decode(rec.Body)
		require.NoError(t, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("removed session", func(t *testing.T) {
		gone, err := reg.Create(context.Background(), "other")
		require.NoError(t, err)
		reg.Remove(gone)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/"+gone.ShortToken(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRequestBaseURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://relay.local:3000/qr/x", nil)
	assert.Equal(t, "http://relay.local:3000", requestBaseURL(r))
}

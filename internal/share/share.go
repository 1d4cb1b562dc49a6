// Package share builds the links an uploader hands out and renders them as
// QR codes.
package share

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/AhmedrAshraf/filepizza/internal/session"
)

const (
	QRPath        = "/qr/{shortToken}"
	DefaultQRSize = 256
)

var ErrNoBaseURL = errors.New("share: no base URL")

// Links are the two addresses a download can be started from.
type Links struct {
	Long  string `json:"long"`
	Short string `json:"short"`
}

// LinksFor joins base with the session tokens. The long token's slashes stay
// path separators.
func LinksFor(base, token, shortToken string) (Links, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return Links{}, ErrNoBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Links{}, fmt.Errorf("share: invalid base URL %q", base)
	}

	segments := strings.Split(token, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return Links{
		Long:  base + "/" + strings.Join(segments, "/"),
		Short: base + "/download/" + url.PathEscape(shortToken),
	}, nil
}

// QRCode renders content as a PNG of size×size pixels.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// TerminalQRCode renders content with Unicode half blocks for a terminal.
func TerminalQRCode(content string) (string, error) {
	q, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

type HandlerConfig struct {
	Registry session.Registry
	// BaseURL is the public address of the web app. When empty it is derived
	// from the request.
	BaseURL string
	Size    int
	Logger  *slog.Logger
}

// Handler serves GET /qr/{shortToken}: a PNG QR code of the short link for a
// live session.
type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Size <= 0 {
		cfg.Size = DefaultQRSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET "+QRPath, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	shortToken := r.PathValue("shortToken")
	s, ok := h.cfg.Registry.FindShort(shortToken)
	if !ok {
		http.NotFound(w, r)
		return
	}

	base := h.cfg.BaseURL
	if base == "" {
		base = requestBaseURL(r)
	}
	links, err := LinksFor(base, s.Token(), s.ShortToken())
	if err != nil {
		h.cfg.Logger.Warn("cannot build share link", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	png, err := QRCode(links.Short, h.cfg.Size)
	if err != nil {
		h.cfg.Logger.Warn("cannot render qr code", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

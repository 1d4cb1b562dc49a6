package signaling

import (
	"sync"

	"github.com/AhmedrAshraf/filepizza/internal/session"
)

// hub is the connection table a Session's owner id is resolved through.
type hub struct {
	mu    sync.RWMutex
	conns map[session.ConnID]*conn
}

func newHub() *hub {
	return &hub{conns: make(map[session.ConnID]*conn)}
}

func (h *hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *hub) remove(id session.ConnID) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *hub) lookup(id session.ConnID) (*conn, bool) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	return c, ok
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *hub) snapshot() []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(f)
}

// Hub maps users to their open sockets and buffers frames for users with
// none.
type Hub struct {
	mu       sync.Mutex
	sockets  map[string][]*conn
	buffered map[string][]Frame
	logger   *zerolog.Logger
}

func newHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		sockets:  make(map[string][]*conn),
		buffered: make(map[string][]Frame),
		logger:   logger,
	}
}

// send delivers f to the first socket of userID that accepts it. When none
// does, f is buffered until the user logs in again.
func (h *Hub) send(userID string, f Frame) {
	if f.Timestamp == 0 {
		f.Timestamp = nowMillis()
	}
	h.mu.Lock()
	targets := append([]*conn(nil), h.sockets[userID]...)
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(f); err == nil {
			return
		}
	}

	h.mu.Lock()
	h.buffered[userID] = append(h.buffered[userID], f)
	h.mu.Unlock()
}

// add assigns c to userID, moving it from any previous user, and flushes
// frames buffered for userID.
func (h *Hub) add(c *conn, userID string) {
	h.mu.Lock()
	h.detach(c)
	h.sockets[userID] = append(h.sockets[userID], c)
	past := h.buffered[userID]
	delete(h.buffered, userID)
	h.mu.Unlock()

	for _, f := range past {
		h.send(userID, f)
	}
	if len(past) > 0 {
		h.logger.Debug().Str("user", userID).Int("frames", len(past)).Msg("Flushed buffered frames")
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c)
}

func (h *Hub) detach(c *conn) {
	for id, conns := range h.sockets {
		kept := conns[:0]
		for _, other := range conns {
			if other != c {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(h.sockets, id)
		} else {
			h.sockets[id] = kept
		}
	}
}

// Buffered returns the number of frames waiting for userID.
func (h *Hub) Buffered(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffered[userID])
}

// Online reports whether userID has an open socket.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sockets[userID]) > 0
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.sockets {
		for _, c := range conns {
			_ = c.ws.Close()
		}
		delete(h.sockets, id)
	}
}

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"
)

// Conn is a websocket connection registered in the hub.
type Conn struct {
	ID string
	ws *websocket.Conn
}

// Hub groups live websocket connections by room and delivers room
// broadcasts. It implements quiz.Broadcaster.
//
// Multiple goroutines may invoke methods on a Hub simultaneously.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	joins map[*Conn]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: map[string]map[*Conn]struct{}{},
		joins: map[*Conn]map[string]struct{}{},
	}
}

// Join subscribes c to the broadcasts of roomID. Joining twice is a no-op.
func (h *Hub) Join(roomID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = map[*Conn]struct{}{}
	}
	h.rooms[roomID][c] = struct{}{}

	if h.joins[c] == nil {
		h.joins[c] = map[string]struct{}{}
	}
	h.joins[c][roomID] = struct{}{}
}

// Leave unsubscribes c from every room it joined.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.joins[c] {
		delete(h.rooms[roomID], c)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.joins, c)
}

// Members returns the number of connections subscribed to roomID.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast writes v to every connection of roomID concurrently.
// Failing connections do not prevent delivery to the others, the first
// write error is returned.
func (h *Hub) Broadcast(ctx context.Context, roomID string, v any) error {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			if err := wsjson.Write(ctx, c.ws, v); err != nil {
				slog.DebugContext(ctx, "broadcast write failed",
					slog.String("room_id", roomID),
					slog.String("conn_id", c.ID),
					slog.Any("error", err))
				return fmt.Errorf("conn %s: %w", c.ID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

package signaling

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry maps room identifiers to their member sets. It is constructed
// in main and handed to the relay; nothing holds it as package state.
// Rooms materialize on the first join that references them and are
// garbage-collected once their member set empties.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *slog.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// CreateRoom returns a fresh opaque room token. The room itself is not
// materialized until a participant joins it.
func (g *Registry) CreateRoom() string {
	id := uuid.New().String()
	g.log.Debug("room token issued", "room", id)
	return id
}

// Join adds a participant to a room, creating the room on first
// reference. It returns the IDs of the members present before the join
// and whether the participant is newly added. A full room rejects the
// join with ErrRoomFull. Joining a room the participant is already in
// just reports the current view.
func (g *Registry) Join(roomID string, c *Client) ([]string, bool, error) {
	for {
		r := g.getOrCreate(roomID)
		members, added, err := r.add(c)
		if err == errRoomGone {
			// Lost a race with collection; the next round creates a
			// fresh room under the same token.
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if added {
			g.log.Info("participant joined", "room", roomID, "participant", c.ID)
		}
		return members, added, nil
	}
}

// Leave removes a participant from a room and reports whether the
// participant was actually a member. Leaving twice, or leaving a room
// that never existed, is a no-op. An emptied room is dropped from the
// table.
func (g *Registry) Leave(roomID string, c *Client) bool {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()
	if r == nil {
		return false
	}

	if !r.remove(c.ID) {
		return false
	}
	g.log.Info("participant left", "room", roomID, "participant", c.ID)
	g.collect(r)
	return true
}

// Room looks up a live room by ID.
func (g *Registry) Room(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

func (g *Registry) getOrCreate(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		g.rooms[roomID] = r
		g.log.Info("room created", "room", roomID)
	}
	return r
}

func (g *Registry) collect(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[r.ID] != r {
		return
	}
	if r.markGone() {
		delete(g.rooms, r.ID)
		g.log.Info("room collected", "room", r.ID)
	}
}

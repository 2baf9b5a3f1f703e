package signaling

import "sync"

// maxMembers caps room size; this design targets pairwise calls.
const maxMembers = 2

// Room holds the current member set of a single rendezvous room.
// All mutation goes through its own mutex, so operations on different
// rooms never contend with each other.
type Room struct {
	ID string

	mu      sync.Mutex
	members map[string]*Client
	gone    bool
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Client),
	}
}

// add inserts a member and returns the IDs of members present before
// the join, plus whether the member is new. Adding an existing member
// is a no-op reporting the same view.
func (r *Room) add(c *Client) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gone {
		return nil, false, errRoomGone
	}
	if _, ok := r.members[c.ID]; ok {
		return r.memberIDsLocked(c.ID), false, nil
	}
	if len(r.members) >= maxMembers {
		return nil, false, ErrRoomFull
	}

	existing := r.memberIDsLocked("")
	r.members[c.ID] = c
	return existing, true, nil
}

// remove deletes a member; it reports whether the member was present.
func (r *Room) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	return true
}

// markGone flags the room as collected. Must only be called by the
// registry while it holds both the table lock and confirms emptiness.
func (r *Room) markGone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) > 0 {
		return false
	}
	r.gone = true
	return true
}

func (r *Room) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

func (r *Room) member(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.members[id]
	return c, ok
}

// others returns every member except the given one.
func (r *Room) others(exclude string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, 0, len(r.members))
	for id, c := range r.members {
		if id != exclude {
			out = append(out, c)
		}
	}
	return out
}

// MemberIDs returns the IDs of all current members.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberIDsLocked("")
}

func (r *Room) memberIDsLocked(exclude string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

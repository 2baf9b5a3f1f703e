package signaling

import (
	"encoding/json"
	"log/slog"
)

// Relay routes signaling messages between the members of a room. It
// owns the membership notifications (peer-joined / peer-left) that
// accompany registry changes, and forwards negotiation envelopes
// without ever looking inside their payloads.
//
// Delivery is best-effort: a recipient whose connection has closed, or
// whose send buffer is full, simply misses the message. The eventual
// peer-left notification communicates departure instead.
type Relay struct {
	registry *Registry
	log      *slog.Logger
}

// NewRelay builds a relay over the given registry.
func NewRelay(registry *Registry, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		log:      logger,
	}
}

// Registry exposes the underlying room registry.
func (rl *Relay) Registry() *Registry {
	return rl.registry
}

// Join admits a participant to a room, acknowledges the join with the
// prior member list, and announces the arrival to everyone already
// present. A repeated join is re-acknowledged but not re-announced.
func (rl *Relay) Join(roomID string, c *Client) error {
	members, added, err := rl.registry.Join(roomID, c)
	if err != nil {
		return err
	}
	c.RoomID = roomID

	ack, _ := json.Marshal(JoinAck{
		RoomID:  roomID,
		SelfID:  c.ID,
		Members: members,
	})
	rl.deliver(c, &Message{
		Type:    TypeJoin,
		To:      c.ID,
		RoomID:  roomID,
		Payload: ack,
	})
	if !added {
		return nil
	}

	arrival, _ := json.Marshal(PeerPayload{ID: c.ID, Identity: c.Identity})
	rl.broadcast(roomID, c.ID, &Message{
		Type:    TypePeerJoined,
		From:    c.ID,
		RoomID:  roomID,
		Payload: arrival,
	})
	return nil
}

// Leave removes a participant from its room and announces the departure
// to the remaining members exactly once. Safe to call repeatedly.
func (rl *Relay) Leave(c *Client) {
	roomID := c.RoomID
	if roomID == "" {
		return
	}
	if !rl.registry.Leave(roomID, c) {
		return
	}

	departure, _ := json.Marshal(PeerPayload{ID: c.ID, Identity: c.Identity})
	rl.broadcast(roomID, c.ID, &Message{
		Type:    TypePeerLeft,
		From:    c.ID,
		RoomID:  roomID,
		Payload: departure,
	})
}

// Send validates that the sender is a current member of the message's
// room, then forwards the envelope: unicast when To is set, otherwise to
// every other member.
func (rl *Relay) Send(msg *Message) error {
	room, ok := rl.registry.Room(msg.RoomID)
	if !ok || !room.has(msg.From) {
		return ErrNotInRoom
	}

	if msg.To != "" {
		target, ok := room.member(msg.To)
		if !ok {
			// The recipient is already gone; peer-left will tell the
			// sender soon enough.
			rl.log.Debug("unicast dropped, recipient absent",
				"room", msg.RoomID, "to", msg.To, "type", msg.Type)
			return nil
		}
		rl.deliver(target, msg)
		return nil
	}

	for _, c := range room.others(msg.From) {
		rl.deliver(c, msg)
	}
	return nil
}

func (rl *Relay) broadcast(roomID, exclude string, msg *Message) {
	room, ok := rl.registry.Room(roomID)
	if !ok {
		return
	}
	for _, c := range room.others(exclude) {
		rl.deliver(c, msg)
	}
}

func (rl *Relay) deliver(c *Client, msg *Message) {
	if !c.enqueue(msg) {
		rl.log.Warn("delivery dropped",
			"room", msg.RoomID, "to", c.ID, "type", msg.Type)
	}
}

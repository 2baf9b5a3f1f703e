package call

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/peermeet/peermeet/internal/negotiation"
	"github.com/peermeet/peermeet/internal/signaling"
)

// dispatchTimeout bounds a single negotiation step (description
// generation plus candidate gathering).
const dispatchTimeout = 30 * time.Second

// LinkFactory builds the peer-connection capability for a newly
// discovered remote participant.
type LinkFactory func(peerID string) (negotiation.PeerLink, error)

// Membership tracks presence in one room. It creates a negotiation
// session when a peer arrives, destroys it when the peer departs, and
// feeds each session its own messages in arrival order while sessions
// for different peers run independently.
type Membership struct {
	client  *Client
	handler *Handler
	factory LinkFactory
	log     *slog.Logger

	// OnSession, if set, runs right after a session is created, before
	// any message reaches it. OnPeerLeft runs after teardown.
	OnSession  func(peerID string, sess *negotiation.Session)
	OnPeerLeft func(peerID string)

	mu     sync.Mutex
	selfID string
	roomID string
	peers  map[string]*peerState
	left   bool

	done chan struct{}
}

type peerState struct {
	session *negotiation.Session
	inbox   chan *signaling.Message
}

// NewMembership builds a membership client over a connected signaling
// client. The handler's Start loop is managed here.
func NewMembership(client *Client, factory LinkFactory, logger *slog.Logger) *Membership {
	if logger == nil {
		logger = slog.Default()
	}
	return &Membership{
		client:  client,
		handler: NewHandler(client, logger),
		factory: factory,
		log:     logger,
		peers:   make(map[string]*peerState),
		done:    make(chan struct{}),
	}
}

// Join enters the room under the given application identity. On success
// it returns the participants already present, for each of whom a
// negotiation session now exists, and keeps reacting to arrivals and
// departures until Leave.
func (m *Membership) Join(ctx context.Context, roomID, identity string) ([]string, error) {
	go m.handler.Start()

	payload, _ := json.Marshal(signaling.JoinPayload{Identity: identity})
	err := m.client.SendMessage(&signaling.Message{
		Type:    signaling.TypeJoin,
		RoomID:  roomID,
		Payload: payload,
	})
	if err != nil {
		return nil, NewError("join room", err)
	}

	select {
	case ack := <-m.handler.Joined:
		m.mu.Lock()
		m.selfID = ack.SelfID
		m.roomID = ack.RoomID
		m.mu.Unlock()

		for _, peerID := range ack.Members {
			m.addPeer(peerID)
		}
		go m.loop()
		return ack.Members, nil

	case errMsg := <-m.handler.Errors:
		return nil, WrapError("join room", ErrRoomUnavailable, errMsg)

	case <-ctx.Done():
		return nil, NewError("join room", ctx.Err())
	}
}

// Call starts the offer cycle toward a present peer.
func (m *Membership) Call(ctx context.Context, peerID string) error {
	sess := m.Session(peerID)
	if sess == nil {
		return NewError("call", ErrPeerUnreachable)
	}
	return sess.Call(ctx)
}

// Session returns the negotiation session for a peer, or nil.
func (m *Membership) Session(peerID string) *negotiation.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok := m.peers[peerID]; ok {
		return ps.session
	}
	return nil
}

// Peers returns the IDs of all peers with a live session.
func (m *Membership) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// SelfID returns the server-assigned participant identifier.
func (m *Membership) SelfID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selfID
}

// Leave tears down every negotiation session and the connection.
// Calling it again has no effect.
func (m *Membership) Leave() {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return
	}
	m.left = true
	peers := m.peers
	m.peers = make(map[string]*peerState)
	m.mu.Unlock()

	close(m.done)

	// The client closes first: a negotiation step parked in SendMessage
	// errors out and releases the session mutex Close needs below.
	m.client.Close()

	for id, ps := range peers {
		close(ps.inbox)
		ps.session.Close()
		m.log.Debug("session torn down", "peer", id)
	}
}

// loop reacts to presence changes and routes descriptions to the
// owning peer's inbox.
func (m *Membership) loop() {
	for {
		select {
		case peer := <-m.handler.PeerJoined:
			m.addPeer(peer.ID)

		case peer := <-m.handler.PeerLeft:
			m.removePeer(peer.ID)

		case msg := <-m.handler.Descriptions:
			m.route(msg)

		case errMsg := <-m.handler.Errors:
			m.log.Warn("server error", "err", errMsg)

		case <-m.done:
			return
		}
	}
}

func (m *Membership) addPeer(peerID string) {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return
	}
	if _, ok := m.peers[peerID]; ok {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	link, err := m.factory(peerID)
	if err != nil {
		m.log.Error("peer link creation failed", "peer", peerID, "err", err)
		return
	}

	sess := negotiation.NewSession(m.selfID, peerID, link, m.sendDescription, m.log)
	ps := &peerState{
		session: sess,
		inbox:   make(chan *signaling.Message, 16),
	}

	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		sess.Close()
		return
	}
	m.peers[peerID] = ps
	m.mu.Unlock()

	go m.dispatch(ps)
	m.log.Info("peer joined", "peer", peerID)

	if m.OnSession != nil {
		m.OnSession(peerID, sess)
	}
}

func (m *Membership) removePeer(peerID string) {
	m.mu.Lock()
	ps, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	close(ps.inbox)
	ps.session.Close()
	m.log.Info("peer left", "peer", peerID)

	if m.OnPeerLeft != nil {
		m.OnPeerLeft(peerID)
	}
}

// route hands a description to the owning peer's inbox. The lookup and
// the send stay under the membership mutex, so an inbox can never be
// closed between them.
func (m *Membership) route(msg *signaling.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps, ok := m.peers[msg.From]
	if !ok {
		m.log.Warn("description from unknown peer discarded",
			"peer", msg.From, "type", msg.Type)
		return
	}

	select {
	case ps.inbox <- msg:
	default:
		m.log.Warn("peer inbox full, message dropped",
			"peer", msg.From, "type", msg.Type)
	}
}

// dispatch feeds one peer's messages to its session in arrival order.
// The session itself serializes against concurrent local triggers.
func (m *Membership) dispatch(ps *peerState) {
	for msg := range ps.inbox {
		var desc negotiation.Description
		if err := json.Unmarshal(msg.Payload, &desc); err != nil {
			m.log.Warn("malformed description payload",
				"peer", msg.From, "err", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		var err error
		switch msg.Type {
		case signaling.TypeOffer:
			err = ps.session.HandleOffer(ctx, desc, false)
		case signaling.TypeRenegotiateOffer:
			err = ps.session.HandleOffer(ctx, desc, true)
		case signaling.TypeAnswer, signaling.TypeRenegotiateAnswer:
			err = ps.session.HandleAnswer(ctx, desc)
		}
		cancel()

		if err != nil {
			if errors.Is(err, negotiation.ErrSessionClosed) {
				return
			}
			// Anomalies and failed cycles are session-local; the
			// session already contained them.
			m.log.Warn("negotiation step failed",
				"peer", msg.From, "type", msg.Type, "err", err)
		}
	}
}

// sendDescription is the SendFunc handed to every session.
func (m *Membership) sendDescription(msgType, peerID string, desc negotiation.Description) error {
	payload, err := json.Marshal(desc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	roomID := m.roomID
	m.mu.Unlock()

	return m.client.SendMessage(&signaling.Message{
		Type:    msgType,
		To:      peerID,
		RoomID:  roomID,
		Payload: payload,
	})
}

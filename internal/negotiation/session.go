package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/peermeet/peermeet/internal/signaling"
)

// Session drives the offer/answer cycle against one remote peer. One
// Session exists per remote participant; it exclusively owns its
// PeerLink and is destroyed when the peer leaves or the call ends.
//
// Every operation serializes on the session mutex, which stays held
// across the suspending PeerLink calls: a message for the same peer
// arriving mid-suspension waits its turn instead of being dropped, and
// sessions for different peers proceed independently. Close flips the
// closed flag under the same mutex, so a late result resolving after
// teardown finds the flag and does nothing.
type Session struct {
	selfID string
	peerID string
	link   PeerLink
	send   SendFunc
	log    *slog.Logger

	mu                   sync.Mutex
	state                State
	local                Description
	remote               Description
	closed               bool
	renegotiating        bool
	pendingRenegotiation bool
}

// NewSession creates a session for the given remote peer.
func NewSession(selfID, peerID string, link PeerLink, send SendFunc, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		selfID: selfID,
		peerID: peerID,
		link:   link,
		send:   send,
		log:    logger.With("peer", peerID),
		state:  StateIdle,
	}
}

// Call initiates the first offer toward the peer. The session must be
// idle; on failure it returns to idle and the caller decides whether a
// human re-initiates.
func (s *Session) Call(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		return fmt.Errorf("%w: call while %s", ErrProtocolAnomaly, s.state)
	}
	return s.offerLocked(ctx, false)
}

// Renegotiate re-enters the offer cycle after the outbound track set
// changed. Called from the link's negotiation-needed notification. If a
// cycle is already in flight the request is remembered and fires once
// the session returns to stable, so the session never holds two
// outstanding offers in the same direction.
func (s *Session) Renegotiate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	switch s.state {
	case StateIdle:
		// Nothing negotiated yet; the initial offer/answer will carry
		// the current track set.
		s.log.Debug("renegotiation ignored before first offer")
		return nil
	case StateStable:
		return s.offerLocked(ctx, true)
	default:
		s.pendingRenegotiation = true
		s.log.Debug("renegotiation deferred", "state", s.state.String())
		return nil
	}
}

// HandleOffer processes an incoming offer or renegotiate-offer: apply
// it remotely, produce an answer, send it back, settle in stable.
func (s *Session) HandleOffer(ctx context.Context, d Description, renegotiation bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	switch s.state {
	case StateIdle, StateStable:
		return s.answerLocked(ctx, d, renegotiation)

	case StateAwaitingAnswer:
		// Glare: both sides offered at once. The peer with the smaller
		// identifier yields, abandons its own offer and answers the
		// incoming one; the other side discards the colliding offer and
		// keeps waiting for its answer. Exactly one side yields.
		if s.selfID < s.peerID {
			s.log.Info("offer glare, yielding to remote offer")
			s.local = Description{}
			s.renegotiating = false
			return s.answerLocked(ctx, d, renegotiation)
		}
		s.log.Info("offer glare, discarding remote offer")
		return fmt.Errorf("%w: offer while awaiting answer", ErrProtocolAnomaly)

	default:
		return fmt.Errorf("%w: offer while %s", ErrProtocolAnomaly, s.state)
	}
}

// HandleAnswer applies the answer to our outstanding offer. An answer
// with no matching offer is discarded as an out-of-order anomaly
// without touching session state.
func (s *Session) HandleAnswer(ctx context.Context, d Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateAwaitingAnswer {
		s.log.Warn("stray answer discarded", "state", s.state.String())
		return fmt.Errorf("%w: answer with no outstanding offer", ErrProtocolAnomaly)
	}

	renegotiating := s.renegotiating
	if err := s.link.AcceptAnswer(d); err != nil {
		if renegotiating {
			// A failed renegotiation must not tear down the already
			// established media path.
			s.state = StateStable
		} else {
			s.state = StateIdle
		}
		s.renegotiating = false
		return fmt.Errorf("%w: apply answer: %v", ErrNegotiationFailed, err)
	}

	s.remote = d
	s.state = StateStable
	s.renegotiating = false
	s.log.Debug("session stable")
	s.flushPendingLocked(ctx)
	return nil
}

// Close tears the session down and releases the link. Any operation
// suspended at this moment finds the closed flag when it resumes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.link.Close()
	s.log.Debug("session closed")
}

// State returns the current negotiation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeerID returns the remote participant identifier.
func (s *Session) PeerID() string {
	return s.peerID
}

// LocalDescription returns the last description produced locally.
func (s *Session) LocalDescription() Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// RemoteDescription returns the last description applied from the peer.
func (s *Session) RemoteDescription() Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// offerLocked runs the offer half-cycle. Lock held.
func (s *Session) offerLocked(ctx context.Context, renegotiation bool) error {
	restore := s.state
	s.state = StateOffering

	offer, err := s.link.CreateOffer(ctx)
	if err != nil {
		s.state = restore
		return fmt.Errorf("%w: create offer: %v", ErrNegotiationFailed, err)
	}

	msgType := signaling.TypeOffer
	if renegotiation {
		msgType = signaling.TypeRenegotiateOffer
	}
	if err := s.send(msgType, s.peerID, offer); err != nil {
		s.state = restore
		return fmt.Errorf("%w: send offer: %v", ErrNegotiationFailed, err)
	}

	s.local = offer
	s.renegotiating = renegotiation
	s.state = StateAwaitingAnswer
	return nil
}

// answerLocked runs the answer half-cycle. Lock held.
func (s *Session) answerLocked(ctx context.Context, offer Description, renegotiation bool) error {
	restore := s.state

	answer, err := s.link.CreateAnswer(ctx, offer)
	if err != nil {
		s.state = restore
		return fmt.Errorf("%w: create answer: %v", ErrNegotiationFailed, err)
	}

	msgType := signaling.TypeAnswer
	if renegotiation {
		msgType = signaling.TypeRenegotiateAnswer
	}
	if err := s.send(msgType, s.peerID, answer); err != nil {
		s.state = restore
		return fmt.Errorf("%w: send answer: %v", ErrNegotiationFailed, err)
	}

	s.remote = offer
	s.local = answer
	s.state = StateStable
	s.flushPendingLocked(ctx)
	return nil
}

// flushPendingLocked fires a deferred renegotiation once the session is
// back in stable. Lock held.
func (s *Session) flushPendingLocked(ctx context.Context) {
	if !s.pendingRenegotiation || s.state != StateStable {
		return
	}
	s.pendingRenegotiation = false
	if err := s.offerLocked(ctx, true); err != nil {
		s.log.Warn("deferred renegotiation failed", "err", err)
	}
}

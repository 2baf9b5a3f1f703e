package negotiation

import (
	"context"
	"errors"
)

// Description is an opaque session description produced by the peer
// connection capability and exchanged verbatim by the signaling layer.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// PeerLink is the external peer-connection capability a Session drives.
// CreateOffer and CreateAnswer also apply the produced description
// locally; AcceptAnswer applies the remote answer. All three may
// suspend (description generation, candidate gathering).
type PeerLink interface {
	CreateOffer(ctx context.Context) (Description, error)
	CreateAnswer(ctx context.Context, offer Description) (Description, error)
	AcceptAnswer(answer Description) error
	Close() error
}

// SendFunc delivers an offer or answer envelope to the remote peer.
// msgType is one of the signaling type constants.
type SendFunc func(msgType, peerID string, desc Description) error

// State of a negotiation session.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAwaitingAnswer
	StateStable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

var (
	// ErrSessionClosed is returned from any operation on a torn-down
	// session; late asynchronous results hit this and become no-ops.
	ErrSessionClosed = errors.New("negotiation session closed")

	// ErrProtocolAnomaly marks a message that arrived in a state that
	// does not expect it. Session-local and never fatal.
	ErrProtocolAnomaly = errors.New("unexpected message for session state")

	// ErrNegotiationFailed wraps a description the capability refused to
	// produce or apply.
	ErrNegotiationFailed = errors.New("negotiation failed")
)

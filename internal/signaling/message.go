package signaling

import "encoding/json"

// Message defines the envelope for all signaling traffic, in both
// directions. The server routes on Type/To and never parses Payload.
type Message struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	TypeJoin              = "join"
	TypePeerJoined        = "peer-joined"
	TypePeerLeft          = "peer-left"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeRenegotiateOffer  = "renegotiate-offer"
	TypeRenegotiateAnswer = "renegotiate-answer"
	TypeError             = "error"
)

// JoinPayload is the client-supplied part of a join request. Identity is
// an application-level token (typically a display email), distinct from
// the connection-scoped participant ID the server assigns.
type JoinPayload struct {
	Identity string `json:"identity"`
}

// JoinAck is sent back to a participant after a successful join.
type JoinAck struct {
	RoomID  string   `json:"room_id"`
	SelfID  string   `json:"self_id"`
	Members []string `json:"members"`
}

// PeerPayload accompanies peer-joined and peer-left notifications.
type PeerPayload struct {
	ID       string `json:"id"`
	Identity string `json:"identity,omitempty"`
}

// ErrorPayload carries error messages from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}

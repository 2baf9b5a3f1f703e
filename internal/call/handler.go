package call

import (
	"encoding/json"
	"log/slog"

	"github.com/peermeet/peermeet/internal/signaling"
)

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client
	log    *slog.Logger

	Joined       chan *signaling.JoinAck
	PeerJoined   chan *signaling.PeerPayload
	PeerLeft     chan *signaling.PeerPayload
	Descriptions chan *signaling.Message
	Errors       chan string
}

// NewHandler creates a new message handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:       client,
		log:          logger,
		Joined:       make(chan *signaling.JoinAck, 1),
		PeerJoined:   make(chan *signaling.PeerPayload, 4),
		PeerLeft:     make(chan *signaling.PeerPayload, 4),
		Descriptions: make(chan *signaling.Message, 32),
		Errors:       make(chan string, 4),
	}
}

// Start begins listening to incoming messages and routing them. It
// returns when the connection's incoming stream ends.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Type {

		case signaling.TypeJoin:
			var ack signaling.JoinAck
			if err := json.Unmarshal(msg.Payload, &ack); err != nil {
				h.log.Warn("malformed join ack", "err", err)
				continue
			}
			h.Joined <- &ack

		case signaling.TypePeerJoined:
			h.PeerJoined <- h.peerPayload(msg)

		case signaling.TypePeerLeft:
			h.PeerLeft <- h.peerPayload(msg)

		case signaling.TypeOffer, signaling.TypeAnswer,
			signaling.TypeRenegotiateOffer, signaling.TypeRenegotiateAnswer:
			h.Descriptions <- msg

		case signaling.TypeError:
			var payload signaling.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				h.Errors <- "unknown error from server"
				continue
			}
			h.Errors <- payload.Error

		default:
			h.log.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (h *Handler) peerPayload(msg *signaling.Message) *signaling.PeerPayload {
	var payload signaling.PeerPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ID == "" {
		payload.ID = msg.From
	}
	return &payload
}

package rtc

import (
	"context"
	"fmt"
	"log/slog"

	pion "github.com/pion/webrtc/v4"

	"github.com/peermeet/peermeet/internal/config"
	"github.com/peermeet/peermeet/internal/negotiation"
)

// Peer adapts a pion PeerConnection to the negotiation.PeerLink the
// state machine is written against. Descriptions leave this package
// candidate-complete (vanilla ICE): gathering finishes before a
// description is returned, so signaling needs exactly one round trip
// per cycle and never carries candidate events.
type Peer struct {
	pc  *pion.PeerConnection
	log *slog.Logger
}

// New creates a peer connection configured with the STUN/TURN servers
// from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Peer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	iceServers := []pion.ICEServer{{URLs: cfg.STUNServers()}}
	if turn := cfg.TURNServers(); turn != nil {
		username, password := cfg.TURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &Peer{pc: pc, log: logger}, nil
}

// CreateOffer produces an offer, applies it locally and waits for
// candidate gathering to finish.
func (p *Peer) CreateOffer(ctx context.Context) (negotiation.Description, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return negotiation.Description{}, fmt.Errorf("create offer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(p.pc)
	if err = p.pc.SetLocalDescription(offer); err != nil {
		return negotiation.Description{}, fmt.Errorf("set local description: %w", err)
	}
	if err = waitGathering(ctx, gathered); err != nil {
		return negotiation.Description{}, err
	}

	return fromPion(p.pc.LocalDescription()), nil
}

// CreateAnswer applies the remote offer, produces an answer, applies it
// locally and waits for candidate gathering to finish. When our own
// offer is still pending locally (glare already resolved upstream), the
// local description is rolled back first.
func (p *Peer) CreateAnswer(ctx context.Context, offer negotiation.Description) (negotiation.Description, error) {
	if p.pc.SignalingState() == pion.SignalingStateHaveLocalOffer {
		rollback := pion.SessionDescription{Type: pion.SDPTypeRollback}
		if err := p.pc.SetLocalDescription(rollback); err != nil {
			return negotiation.Description{}, fmt.Errorf("rollback local offer: %w", err)
		}
	}

	if err := p.pc.SetRemoteDescription(toPion(offer)); err != nil {
		return negotiation.Description{}, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return negotiation.Description{}, fmt.Errorf("create answer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(p.pc)
	if err = p.pc.SetLocalDescription(answer); err != nil {
		return negotiation.Description{}, fmt.Errorf("set local description: %w", err)
	}
	if err = waitGathering(ctx, gathered); err != nil {
		return negotiation.Description{}, err
	}

	return fromPion(p.pc.LocalDescription()), nil
}

// AcceptAnswer applies the peer's answer to our outstanding offer.
func (p *Peer) AcceptAnswer(answer negotiation.Description) error {
	if err := p.pc.SetRemoteDescription(toPion(answer)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddTrack attaches an outbound track to the connection.
func (p *Peer) AddTrack(track pion.TrackLocal) (*pion.RTPSender, error) {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return sender, nil
}

// RemoveTrack detaches an outbound track from the connection.
func (p *Peer) RemoveTrack(sender *pion.RTPSender) error {
	if err := p.pc.RemoveTrack(sender); err != nil {
		return fmt.Errorf("remove track: %w", err)
	}
	return nil
}

// OnNegotiationNeeded registers the renegotiation trigger. Fired by
// pion whenever the transmitted track set changes.
func (p *Peer) OnNegotiationNeeded(f func()) {
	p.pc.OnNegotiationNeeded(f)
}

// OnTrack registers the remote-track-arrived notification.
func (p *Peer) OnTrack(f func(*pion.TrackRemote, *pion.RTPReceiver)) {
	p.pc.OnTrack(f)
}

// OnConnectionStateChange registers the media path state observer.
func (p *Peer) OnConnectionStateChange(f func(pion.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

// Close releases the underlying connection.
func (p *Peer) Close() error {
	return p.pc.Close()
}

func waitGathering(ctx context.Context, gathered <-chan struct{}) error {
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toPion(d negotiation.Description) pion.SessionDescription {
	sd := pion.SessionDescription{SDP: d.SDP}
	switch d.Type {
	case "offer":
		sd.Type = pion.SDPTypeOffer
	case "answer":
		sd.Type = pion.SDPTypeAnswer
	case "pranswer":
		sd.Type = pion.SDPTypePranswer
	}
	return sd
}

func fromPion(sd *pion.SessionDescription) negotiation.Description {
	if sd == nil {
		return negotiation.Description{}
	}
	return negotiation.Description{
		Type: sd.Type.String(),
		SDP:  sd.SDP,
	}
}

package media

import (
	"context"
	"errors"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Kind distinguishes the two track flavors a capture stream produces.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

var (
	// ErrMediaAccessDenied means local capture could not be acquired.
	// Fatal to the current call attempt; the user retries.
	ErrMediaAccessDenied = errors.New("media access denied")

	// ErrNotRecording is returned when stopping a recording that never
	// started.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrSessionClosed is returned from operations on a closed session.
	ErrSessionClosed = errors.New("media session closed")
)

// Source supplies encoded samples for a single track. The channel
// closes when the source is exhausted or closed.
type Source interface {
	Kind() Kind
	Codec() pion.RTPCodecCapability
	Samples() <-chan media.Sample
	Close() error
}

// Capture is the external acquisition capability: getUserMedia-style
// camera+mic and getDisplayMedia-style screen capture.
type Capture interface {
	UserMedia(ctx context.Context) ([]Source, error)
	DisplayMedia(ctx context.Context) ([]Source, error)
}

// Link is the subset of the peer connection the media session needs to
// attach and detach outbound tracks.
type Link interface {
	AddTrack(track pion.TrackLocal) (*pion.RTPSender, error)
	RemoveTrack(sender *pion.RTPSender) error
}

package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	pion "github.com/pion/webrtc/v4"
)

// Session owns the local capture streams and the outbound track set
// offered to the remote peer. Exactly one stream (camera+mic or screen)
// is attached at a time.
//
// Muting flips an enabled flag and produces no signaling; swapping the
// attached stream changes the transmitted track set, which makes the
// link fire its negotiation-needed notification and re-enter the
// offer/answer cycle. Recording tees the outbound samples to a local
// sink and never touches the network path.
type Session struct {
	capture Capture
	link    Link
	log     *slog.Logger

	rec atomic.Pointer[Recorder]

	mu      sync.Mutex
	tracks  []*outboundTrack
	sharing bool
	closed  bool
}

type outboundTrack struct {
	kind   Kind
	source Source
	track  *pion.TrackLocalStaticSample
	sender *pion.RTPSender
	muted  atomic.Bool
}

// NewSession builds a media session over the given capture capability
// and peer link.
func NewSession(capture Capture, link Link, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		capture: capture,
		link:    link,
		log:     logger,
	}
}

// Start acquires the camera+mic stream and attaches its tracks. Called
// before any offer goes out, so an access denial aborts the call
// attempt with no message sent.
func (s *Session) Start(ctx context.Context) error {
	sources, err := s.capture.UserMedia(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		closeSources(sources)
		return ErrSessionClosed
	}
	return s.attachLocked(sources, "camera")
}

// Mute disables the matching track. The track stays attached; the pump
// simply stops feeding it, so no renegotiation happens.
func (s *Session) Mute(kind Kind) {
	s.setMuted(kind, true)
}

// Unmute re-enables the matching track.
func (s *Session) Unmute(kind Kind) {
	s.setMuted(kind, false)
}

// Muted reports whether any track of the given kind is muted.
func (s *Session) Muted(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.kind == kind && t.muted.Load() {
			return true
		}
	}
	return false
}

// StartScreenShare swaps the outbound stream to screen capture. The
// new stream is acquired before the old one is detached, so a denied
// screen grab leaves the call untouched.
func (s *Session) StartScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.sharing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sources, err := s.capture.DisplayMedia(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		closeSources(sources)
		return ErrSessionClosed
	}
	s.detachLocked()
	if err := s.attachLocked(sources, "screen"); err != nil {
		return err
	}
	s.sharing = true
	s.log.Info("screen share started")
	return nil
}

// StopScreenShare swaps back to the camera+mic stream.
func (s *Session) StopScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if !s.sharing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sources, err := s.capture.UserMedia(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		closeSources(sources)
		return ErrSessionClosed
	}
	s.detachLocked()
	if err := s.attachLocked(sources, "camera"); err != nil {
		return err
	}
	s.sharing = false
	s.log.Info("screen share stopped")
	return nil
}

// ScreenSharing reports whether the screen stream is attached.
func (s *Session) ScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

// StartRecording tees the outbound samples into the given sinks until
// StopRecording. Either sink may be nil to skip that kind.
func (s *Session) StartRecording(video, audio io.Writer) error {
	rec, err := newRecorder(video, audio)
	if err != nil {
		return err
	}
	if !s.rec.CompareAndSwap(nil, rec) {
		return fmt.Errorf("recording already in progress")
	}
	s.log.Info("recording started")
	return nil
}

// StopRecording finalizes the current recording.
func (s *Session) StopRecording() error {
	rec := s.rec.Swap(nil)
	if rec == nil {
		return ErrNotRecording
	}
	s.log.Info("recording stopped")
	return rec.close()
}

// Close detaches every track and releases the capture sources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.detachLocked()
	if rec := s.rec.Swap(nil); rec != nil {
		rec.close()
	}
	return nil
}

func (s *Session) setMuted(kind Kind, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.kind == kind {
			t.muted.Store(muted)
		}
	}
}

// attachLocked wires sources to fresh local tracks and starts their
// pumps. Lock held.
func (s *Session) attachLocked(sources []Source, streamID string) error {
	for i, src := range sources {
		track, err := pion.NewTrackLocalStaticSample(
			src.Codec(),
			fmt.Sprintf("%s-%d", src.Kind(), i),
			streamID,
		)
		if err != nil {
			closeSources(sources)
			return fmt.Errorf("create track: %w", err)
		}
		sender, err := s.link.AddTrack(track)
		if err != nil {
			closeSources(sources)
			return fmt.Errorf("attach track: %w", err)
		}

		t := &outboundTrack{
			kind:   src.Kind(),
			source: src,
			track:  track,
			sender: sender,
		}
		s.tracks = append(s.tracks, t)
		go s.pump(t)
	}
	return nil
}

// detachLocked removes every attached track and closes its source,
// which ends the pump. Lock held.
func (s *Session) detachLocked() {
	for _, t := range s.tracks {
		t.source.Close()
		if err := s.link.RemoveTrack(t.sender); err != nil {
			s.log.Warn("detach track", "kind", t.kind, "err", err)
		}
	}
	s.tracks = nil
}

// pump forwards samples from the source to the outbound track, teeing
// into the recorder when one is active. A muted track receives nothing,
// which downstream renders as silence or a frozen frame.
func (s *Session) pump(t *outboundTrack) {
	for sample := range t.source.Samples() {
		if t.muted.Load() {
			continue
		}
		if rec := s.rec.Load(); rec != nil {
			if err := rec.writeSample(t.kind, sample); err != nil {
				s.log.Warn("recording write failed", "kind", t.kind, "err", err)
			}
		}
		if err := t.track.WriteSample(sample); err != nil {
			s.log.Warn("track write failed", "kind", t.kind, "err", err)
			return
		}
	}
}

func closeSources(sources []Source) {
	for _, src := range sources {
		src.Close()
	}
}

package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource feeds hand-made samples into a session under test.
type chanSource struct {
	kind  Kind
	codec pion.RTPCodecCapability
	ch    chan media.Sample
	once  sync.Once
}

func newChanSource(kind Kind) *chanSource {
	codec := pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000}
	if kind == KindAudio {
		codec = pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return &chanSource{kind: kind, codec: codec, ch: make(chan media.Sample, 16)}
}

func (s *chanSource) Kind() Kind                     { return s.kind }
func (s *chanSource) Codec() pion.RTPCodecCapability { return s.codec }
func (s *chanSource) Samples() <-chan media.Sample   { return s.ch }

func (s *chanSource) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// fakeCapture hands out fresh sources per acquisition and records how
// often each stream kind was asked for.
type fakeCapture struct {
	mu         sync.Mutex
	userErr    error
	displayErr error
	userCalls  int
	dispCalls  int
	lastUser   []*chanSource
	lastScreen []*chanSource
}

func (f *fakeCapture) UserMedia(context.Context) ([]Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	f.userCalls++
	video := newChanSource(KindVideo)
	audio := newChanSource(KindAudio)
	f.lastUser = []*chanSource{video, audio}
	return []Source{video, audio}, nil
}

func (f *fakeCapture) DisplayMedia(context.Context) ([]Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.displayErr != nil {
		return nil, f.displayErr
	}
	f.dispCalls++
	screen := newChanSource(KindVideo)
	f.lastScreen = []*chanSource{screen}
	return []Source{screen}, nil
}

// fakeLink counts attach and detach calls. Senders are nil; the session
// only threads them through.
type fakeLink struct {
	mu      sync.Mutex
	added   []pion.TrackLocal
	removed int
	addErr  error
}

func newFakeLink() *fakeLink {
	return &fakeLink{}
}

func (f *fakeLink) AddTrack(track pion.TrackLocal) (*pion.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, track)
	return nil, nil
}

func (f *fakeLink) RemoveTrack(*pion.RTPSender) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return nil
}

func (f *fakeLink) attachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

func (f *fakeLink) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

func TestStartAttachesCameraAndMic(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, 2, link.attachCount())
	assert.False(t, sess.ScreenSharing())
}

func TestStartPropagatesAccessDenial(t *testing.T) {
	capture := &fakeCapture{userErr: ErrMediaAccessDenied}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)

	err := sess.Start(context.Background())
	assert.ErrorIs(t, err, ErrMediaAccessDenied)
	assert.Zero(t, link.attachCount())
}

func TestMuteSuppressesSamplesWithoutDetaching(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))

	sess.Mute(KindAudio)
	assert.True(t, sess.Muted(KindAudio))
	assert.False(t, sess.Muted(KindVideo))

	// Muting never touches the track set, so no renegotiation fires.
	assert.Equal(t, 2, link.attachCount())
	assert.Zero(t, link.removeCount())

	sess.Unmute(KindAudio)
	assert.False(t, sess.Muted(KindAudio))
}

func TestScreenShareSwapsTrackSet(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, sess.StartScreenShare(context.Background()))

	assert.True(t, sess.ScreenSharing())
	assert.Equal(t, 2, link.removeCount())
	assert.Equal(t, 3, link.attachCount())

	// Starting again while sharing is a no-op.
	require.NoError(t, sess.StartScreenShare(context.Background()))
	assert.Equal(t, 1, capture.dispCalls)

	require.NoError(t, sess.StopScreenShare(context.Background()))
	assert.False(t, sess.ScreenSharing())
	assert.Equal(t, 3, link.removeCount())
	assert.Equal(t, 5, link.attachCount())
}

func TestDeniedScreenShareLeavesCallUntouched(t *testing.T) {
	capture := &fakeCapture{displayErr: ErrMediaAccessDenied}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))

	err := sess.StartScreenShare(context.Background())
	assert.ErrorIs(t, err, ErrMediaAccessDenied)
	assert.False(t, sess.ScreenSharing())
	assert.Equal(t, 2, link.attachCount())
	assert.Zero(t, link.removeCount())
}

func TestRecordingTeesVideoSamples(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))

	var video bytes.Buffer
	require.NoError(t, sess.StartRecording(&video, nil))

	frame := []byte{0x10, 0x20, 0x30}
	capture.lastUser[0].ch <- media.Sample{Data: frame, Duration: time.Second / 30}

	// The pump runs on its own goroutine; give it a moment.
	require.Eventually(t, func() bool {
		sess.rec.Load().mu.Lock()
		defer sess.rec.Load().mu.Unlock()
		return video.Len() >= 32+12+len(frame)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sess.StopRecording())

	raw := video.Bytes()
	assert.Equal(t, "DKIF", string(raw[0:4]))
	assert.Equal(t, "VP80", string(raw[8:12]))
	frameLen := binary.LittleEndian.Uint32(raw[32:36])
	assert.Equal(t, uint32(len(frame)), frameLen)
	assert.Equal(t, frame, raw[44:44+len(frame)])
}

func TestStopRecordingWithoutStart(t *testing.T) {
	sess := NewSession(&fakeCapture{}, newFakeLink(), nil)
	assert.ErrorIs(t, sess.StopRecording(), ErrNotRecording)
}

func TestDoubleStartRecordingFails(t *testing.T) {
	sess := NewSession(&fakeCapture{}, newFakeLink(), nil)
	defer sess.Close()

	require.NoError(t, sess.StartRecording(&bytes.Buffer{}, nil))
	assert.Error(t, sess.StartRecording(&bytes.Buffer{}, nil))
}

func TestCloseDetachesAndStopsRecording(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	sess := NewSession(capture, link, nil)

	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, sess.StartRecording(&bytes.Buffer{}, nil))

	require.NoError(t, sess.Close())
	assert.Equal(t, 2, link.removeCount())
	assert.ErrorIs(t, sess.StopRecording(), ErrNotRecording)

	// Closed session refuses new work.
	assert.ErrorIs(t, sess.Start(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, sess.StartScreenShare(context.Background()), ErrSessionClosed)
}

func TestAttachFailureClosesSources(t *testing.T) {
	capture := &fakeCapture{}
	link := newFakeLink()
	link.addErr = errors.New("connection closing")
	sess := NewSession(capture, link, nil)

	err := sess.Start(context.Background())
	require.Error(t, err)

	// Sources must be released so their pumps never start.
	for _, src := range capture.lastUser {
		_, open := <-src.ch
		assert.False(t, open)
	}
}

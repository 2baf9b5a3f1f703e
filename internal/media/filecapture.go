package media

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// oggPageDuration is the Opus page interval used for pacing playback.
const oggPageDuration = 20 * time.Millisecond

// FileCapture is a Capture backed by pre-encoded files on disk: IVF
// (VP8) for video and screen, Ogg (Opus) for audio. It stands in for
// platform camera/screen APIs, which a headless client does not have.
type FileCapture struct {
	VideoPath  string
	AudioPath  string
	ScreenPath string
}

// UserMedia opens the camera and mic stand-ins.
func (f *FileCapture) UserMedia(ctx context.Context) ([]Source, error) {
	if f.VideoPath == "" && f.AudioPath == "" {
		return nil, fmt.Errorf("%w: no media files configured", ErrMediaAccessDenied)
	}

	var sources []Source
	if f.VideoPath != "" {
		src, err := newIVFSource(f.VideoPath)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if f.AudioPath != "" {
		src, err := newOggSource(f.AudioPath)
		if err != nil {
			closeSources(sources)
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// DisplayMedia opens the screen-capture stand-in.
func (f *FileCapture) DisplayMedia(ctx context.Context) ([]Source, error) {
	if f.ScreenPath == "" {
		return nil, fmt.Errorf("%w: no screen file configured", ErrMediaAccessDenied)
	}
	src, err := newIVFSource(f.ScreenPath)
	if err != nil {
		return nil, err
	}
	return []Source{src}, nil
}

// fileSource streams samples from one opened file until exhausted or
// closed.
type fileSource struct {
	kind  Kind
	codec pion.RTPCodecCapability
	ch    chan media.Sample
	done  chan struct{}
	once  sync.Once
	file  *os.File
}

func (s *fileSource) Kind() Kind                     { return s.kind }
func (s *fileSource) Codec() pion.RTPCodecCapability { return s.codec }
func (s *fileSource) Samples() <-chan media.Sample   { return s.ch }

func (s *fileSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fileSource) emit(sample media.Sample) bool {
	select {
	case s.ch <- sample:
		return true
	case <-s.done:
		return false
	}
}

func newIVFSource(path string) (*fileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}

	ivf, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}

	src := &fileSource{
		kind:  KindVideo,
		codec: pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000},
		ch:    make(chan media.Sample),
		done:  make(chan struct{}),
		file:  file,
	}

	// Pace frames at the file's own timebase.
	frameDuration := time.Millisecond * time.Duration(
		(float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)

	go func() {
		defer close(src.ch)
		defer file.Close()

		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()

		for {
			select {
			case <-src.done:
				return
			case <-ticker.C:
			}

			frame, _, err := ivf.ParseNextFrame()
			if err != nil {
				return
			}
			if !src.emit(media.Sample{Data: frame, Duration: frameDuration}) {
				return
			}
		}
	}()
	return src, nil
}

func newOggSource(path string) (*fileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrMediaAccessDenied, err)
	}

	src := &fileSource{
		kind: KindAudio,
		codec: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		ch:   make(chan media.Sample),
		done: make(chan struct{}),
		file: file,
	}

	go func() {
		defer close(src.ch)
		defer file.Close()

		ticker := time.NewTicker(oggPageDuration)
		defer ticker.Stop()

		var lastGranule uint64
		for {
			select {
			case <-src.done:
				return
			case <-ticker.C:
			}

			page, pageHeader, err := ogg.ParseNextPage()
			if err != nil {
				return
			}

			sampleCount := float64(pageHeader.GranulePosition - lastGranule)
			lastGranule = pageHeader.GranulePosition
			duration := time.Duration((sampleCount / 48000) * float64(time.Second))

			if !src.emit(media.Sample{Data: page, Duration: duration}) {
				return
			}
		}
	}()
	return src, nil
}

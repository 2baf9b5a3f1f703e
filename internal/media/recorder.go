package media

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media"
)

// Recorder writes the outbound sample stream to local sinks. Video
// frames go into an IVF container; audio packets are length-prefixed
// Opus, to be containerized offline if needed. Pion's media writers
// depacketize RTP and fit the remote-track path, not an outbound
// stream that already holds assembled samples, so the muxing is done
// here.
type Recorder struct {
	mu       sync.Mutex
	video    io.Writer
	audio    io.Writer
	framePTS uint64
	closed   bool
}

const (
	ivfFourCC = "VP80"
	ivfWidth  = 640
	ivfHeight = 480
)

func newRecorder(video, audio io.Writer) (*Recorder, error) {
	r := &Recorder{video: video, audio: audio}
	if video != nil {
		if err := r.writeIVFHeader(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) writeSample(kind Kind, sample media.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	switch kind {
	case KindVideo:
		if r.video == nil {
			return nil
		}
		return r.writeIVFFrame(sample.Data)
	case KindAudio:
		if r.audio == nil {
			return nil
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(sample.Data)))
		if _, err := r.audio.Write(size[:]); err != nil {
			return err
		}
		_, err := r.audio.Write(sample.Data)
		return err
	}
	return nil
}

func (r *Recorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	var firstErr error
	for _, w := range []io.Writer{r.video, r.audio} {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// writeIVFHeader emits the fixed 32-byte IVF file header. The frame
// count field stays zero, which players treat as unknown.
func (r *Recorder) writeIVFHeader() error {
	header := make([]byte, 32)
	copy(header[0:], "DKIF")
	binary.LittleEndian.PutUint16(header[4:], 0)  // version
	binary.LittleEndian.PutUint16(header[6:], 32) // header size
	copy(header[8:], ivfFourCC)
	binary.LittleEndian.PutUint16(header[12:], ivfWidth)
	binary.LittleEndian.PutUint16(header[14:], ivfHeight)
	binary.LittleEndian.PutUint32(header[16:], 30) // timebase denominator
	binary.LittleEndian.PutUint32(header[20:], 1)  // timebase numerator
	binary.LittleEndian.PutUint32(header[24:], 0)  // frame count
	_, err := r.video.Write(header)
	return err
}

func (r *Recorder) writeIVFFrame(data []byte) error {
	frame := make([]byte, 12)
	binary.LittleEndian.PutUint32(frame[0:], uint32(len(data)))
	binary.LittleEndian.PutUint64(frame[4:], r.framePTS)
	r.framePTS++

	if _, err := r.video.Write(frame); err != nil {
		return err
	}
	_, err := r.video.Write(data)
	return err
}

package framebuf

import (
	"bytes"
	"time"
)

// Marker is the start-of-frame byte of the BCD meter protocol. Digit-encoded
// payload bytes keep their high nibble at 0 or 1, so 0x21 can only ever be a
// frame boundary.
const Marker = 0x21

// FrameLen is the size of a complete frame: marker plus 20 payload bytes.
const FrameLen = 21

// MarkerFrame is one extracted frame. Start is the arrival time of the marker
// byte, which is the measurement's logical timestamp regardless of when the
// remaining bytes trickled in.
type MarkerFrame struct {
	Payload   []byte
	Start     time.Time
	Truncated bool
}

// MarkerFramer extracts marker-delimited frames. A frame ends either at the
// next marker (the device pre-empted itself with a fresh measurement) or
// after FrameLen bytes. Searching for a following marker before settling on
// the fixed length is what keeps bytes of two measurements from being decoded
// as one bogus value.
type MarkerFramer struct {
	buf []byte
	// arrival time of every buffered marker byte, oldest first
	arrivals []time.Time
}

func NewMarkerFramer() *MarkerFramer {
	return &MarkerFramer{}
}

// Append adds a received chunk, stamping any marker bytes it contains with
// the given arrival time.
func (f *MarkerFramer) Append(chunk []byte, now time.Time) {
	for _, b := range chunk {
		if b == Marker {
			f.arrivals = append(f.arrivals, now)
		}
	}
	f.buf = append(f.buf, chunk...)
}

// Next extracts the next frame. Callers should loop until ok is false: after
// one frame resolves, a fresh marker may already be buffered.
func (f *MarkerFramer) Next() (frame MarkerFrame, ok bool) {
	i := bytes.IndexByte(f.buf, Marker)
	if i < 0 {
		// Nothing before a marker is decodable.
		f.buf = f.buf[:0]
		return MarkerFrame{}, false
	}
	f.buf = f.buf[i:]

	end := FrameLen
	truncated := false
	if j := bytes.IndexByte(f.buf[1:], Marker); j >= 0 && j+1 < FrameLen {
		end = j + 1
		truncated = true
	} else if len(f.buf) < FrameLen {
		// Incomplete and not yet pre-empted, wait for more data.
		return MarkerFrame{}, false
	}

	frame = MarkerFrame{
		Payload:   append([]byte(nil), f.buf[1:end]...),
		Start:     f.arrivals[0],
		Truncated: truncated,
	}
	f.buf = append(f.buf[:0], f.buf[end:]...)
	f.arrivals = f.arrivals[1:]
	return frame, true
}

// PendingLen returns how many bytes of the frame currently being received are
// buffered, counting its marker. Zero when no frame is in progress.
func (f *MarkerFramer) PendingLen() int {
	i := bytes.IndexByte(f.buf, Marker)
	if i < 0 {
		return 0
	}
	return len(f.buf) - i
}

// Reset discards all buffered bytes and marker timestamps.
func (f *MarkerFramer) Reset() {
	f.buf = nil
	f.arrivals = nil
}

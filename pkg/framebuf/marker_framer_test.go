package framebuf

import (
	"testing"
	"time"

	"go.viam.com/test"
)

var frameEpoch = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// payload returns n digit-encoded bytes counting up from 1.
func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i%9) + 1
	}
	return p
}

func TestMarkerFramerCompleteFrame(t *testing.T) {
	f := NewMarkerFramer()
	f.Append(append([]byte{Marker}, payload(20)...), frameEpoch)

	frame, ok := f.Next()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Truncated, test.ShouldBeFalse)
	test.That(t, frame.Payload, test.ShouldResemble, payload(20))
	test.That(t, frame.Start, test.ShouldResemble, frameEpoch)

	_, ok = f.Next()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMarkerFramerWaitsForMoreData(t *testing.T) {
	f := NewMarkerFramer()
	f.Append(append([]byte{Marker}, payload(10)...), frameEpoch)

	_, ok := f.Next()
	test.That(t, ok, test.ShouldBeFalse)

	f.Append(payload(20)[10:], frameEpoch.Add(time.Millisecond))
	frame, ok := f.Next()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Truncated, test.ShouldBeFalse)
	// The timestamp is the marker's arrival, not the last byte's.
	test.That(t, frame.Start, test.ShouldResemble, frameEpoch)
}

func TestMarkerFramerTruncatesAtNextMarker(t *testing.T) {
	// Second marker arrives before the first frame reaches 21 bytes: the
	// first frame must end exactly at the second marker's offset and leave
	// the second frame's bytes alone.
	f := NewMarkerFramer()
	chunk := append([]byte{Marker}, payload(13)...)
	chunk = append(chunk, Marker)
	chunk = append(chunk, payload(20)...)
	f.Append(chunk, frameEpoch)

	frame, ok := f.Next()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Truncated, test.ShouldBeTrue)
	test.That(t, frame.Payload, test.ShouldResemble, payload(13))

	// The pre-empting frame is intact and complete.
	frame, ok = f.Next()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Truncated, test.ShouldBeFalse)
	test.That(t, frame.Payload, test.ShouldResemble, payload(20))
}

func TestMarkerFramerDrainsBufferedFrames(t *testing.T) {
	// Three complete frames in one burst must all come out of the explicit
	// drain loop without more input.
	f := NewMarkerFramer()
	var chunk []byte
	for i := 0; i < 3; i++ {
		chunk = append(chunk, Marker)
		chunk = append(chunk, payload(20)...)
	}
	f.Append(chunk, frameEpoch)

	for i := 0; i < 3; i++ {
		frame, ok := f.Next()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, frame.Payload, test.ShouldHaveLength, 20)
	}
	_, ok := f.Next()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMarkerFramerDiscardsGarbageBeforeMarker(t *testing.T) {
	f := NewMarkerFramer()
	f.Append([]byte{0x00, 0xFF, 0x42}, frameEpoch)
	_, ok := f.Next()
	test.That(t, ok, test.ShouldBeFalse)

	f.Append(append([]byte{Marker}, payload(20)...), frameEpoch)
	frame, ok := f.Next()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.Payload, test.ShouldResemble, payload(20))
}

func TestMarkerFramerTracksPerMarkerArrival(t *testing.T) {
	f := NewMarkerFramer()
	f.Append(append([]byte{Marker}, payload(20)...), frameEpoch)
	later := frameEpoch.Add(120 * time.Millisecond)
	f.Append(append([]byte{Marker}, payload(20)...), later)

	frame, _ := f.Next()
	test.That(t, frame.Start, test.ShouldResemble, frameEpoch)
	frame, _ = f.Next()
	test.That(t, frame.Start, test.ShouldResemble, later)
}

func TestMarkerFramerPendingLen(t *testing.T) {
	f := NewMarkerFramer()
	test.That(t, f.PendingLen(), test.ShouldEqual, 0)

	f.Append([]byte{0x01, 0x02}, frameEpoch) // garbage, no marker
	test.That(t, f.PendingLen(), test.ShouldEqual, 0)

	f.Append(append([]byte{Marker}, payload(12)...), frameEpoch)
	test.That(t, f.PendingLen(), test.ShouldEqual, 13)
}

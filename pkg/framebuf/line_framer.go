// Package framebuf turns an unbounded, chunked serial byte stream into
// protocol frames with zero loss and zero reordering. Chunks may split at any
// byte boundary; leftovers are retained until more data arrives.
package framebuf

import (
	"bytes"
	"strings"
)

const (
	cr   = 0x0D
	xon  = 0x11
	xoff = 0x13
)

// LineFramer extracts CR-terminated lines, filtering out the XON/XOFF bytes
// the ISW8001 interleaves with its output when software flow control is on.
type LineFramer struct {
	buf []byte
}

func NewLineFramer() *LineFramer {
	return &LineFramer{}
}

// Append adds a received chunk to the buffer.
func (f *LineFramer) Append(chunk []byte) {
	f.buf = append(f.buf, chunk...)
}

// Next returns the next cleaned line, with flow-control bytes removed and
// surrounding whitespace trimmed. Lines that clean down to nothing are
// skipped without an event. ok is false once no complete line remains.
func (f *LineFramer) Next() (line string, ok bool) {
	for {
		i := bytes.IndexByte(f.buf, cr)
		if i < 0 {
			return "", false
		}
		raw := f.buf[:i]
		f.buf = f.buf[i+1:]

		cleaned := make([]byte, 0, len(raw))
		for _, b := range raw {
			if b == xon || b == xoff {
				continue
			}
			cleaned = append(cleaned, b)
		}
		s := strings.TrimSpace(string(cleaned))
		if s == "" {
			continue
		}
		return s, true
	}
}

// Reset discards all buffered bytes.
func (f *LineFramer) Reset() {
	f.buf = nil
}

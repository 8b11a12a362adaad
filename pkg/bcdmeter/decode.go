// Package bcdmeter drives a power meter speaking a binary digit-encoded
// frame protocol: a 0x21 marker byte followed by up to 20 payload bytes
// holding five 4-byte quantities (voltage, current, power, power factor,
// frequency). The device answers one frame per read request and may be
// pre-empted mid-frame by the next request.
package bcdmeter

import (
	"strconv"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

// MeterName identifies measurements produced by this driver.
const MeterName = "bcdmeter"

// MinPayload is the smallest payload worth an event: voltage, current and
// power. Shorter frames are dropped without an event.
const MinPayload = 12

const groupLen = 4

// decodeGroup turns one 4-byte group into a number. Per byte the low nibble
// is a digit 0-9; a high nibble of exactly 1 appends a decimal point after
// that digit. [0x02 0x04 0x12 0x03] reads "242.3".
func decodeGroup(group []byte) (float64, bool) {
	if len(group) < groupLen {
		return 0, false
	}
	text := make([]byte, 0, groupLen+1)
	for _, b := range group[:groupLen] {
		digit := b & 0x0F
		if digit > 9 {
			// Not a digit byte. Undocumented patterns are skipped, not
			// raised.
			return 0, false
		}
		text = append(text, '0'+digit)
		if b>>4 == 1 {
			text = append(text, '.')
		}
	}
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DecodePayload decodes a frame payload (marker already stripped) into a
// measurement. A quantity is present only when all four of its bytes arrived;
// a truncated frame yields whatever leading quantities are complete.
func DecodePayload(payload []byte) *types.Measurement {
	m := &types.Measurement{Meter: MeterName}
	fields := []**float64{&m.VoltageV, &m.CurrentA, &m.PowerW, &m.PowerFactor, &m.FrequencyHz}
	for i, field := range fields {
		start := i * groupLen
		if start+groupLen > len(payload) {
			break
		}
		if v, ok := decodeGroup(payload[start : start+groupLen]); ok {
			*field = types.Float(v)
		}
	}
	return m
}

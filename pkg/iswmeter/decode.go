// Package iswmeter drives the ISW8001 digital power meter over its
// CR-terminated ASCII protocol. The device answers queries line by line and,
// in auto mode, pushes one measurement line per sample on its own.
package iswmeter

import (
	"strconv"
	"strings"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

// Units per measurement function. The function vocabulary is fixed by the
// device firmware and matched case-sensitively.
var functionUnits = map[string]string{
	"W":   "W",
	"VAR": "var",
	"PF":  "",
	"DCV": "V",
	"ACV": "V",
	"DCA": "A",
	"ACA": "A",
}

// Status lines spell some functions out, e.g. "WATT U1 I2".
var statusFunctions = map[string]string{
	"WATT": "W",
	"VAR":  "VAR",
	"PF":   "PF",
	"DCV":  "DCV",
	"ACV":  "ACV",
	"DCA":  "DCA",
	"ACA":  "ACA",
}

// Range labels. Tags outside the tables are echoed raw: the manual is known
// to disagree with some firmware revisions.
var voltageRanges = map[string]string{
	"U1": "50V",
	"U2": "150V",
	"U3": "500V",
}

var currentRanges = map[string]string{
	"I1": "160mA",
	"I2": "1.6A",
	"I3": "16A",
	"Ix": "ext",
}

// VoltageRangeLabel resolves a U* range tag to its label.
func VoltageRangeLabel(tag string) string {
	if label, ok := voltageRanges[tag]; ok {
		return label
	}
	return tag
}

// CurrentRangeLabel resolves an I* range tag to its label.
func CurrentRangeLabel(tag string) string {
	if label, ok := currentRanges[tag]; ok {
		return label
	}
	return tag
}

// DecodeLine parses one cleaned device line, e.g.
//
//	U1=0.01E+0 I1=0.0E-3 W=-0.000E+0
//	WATT U1 I2
//
// A line may populate any subset of the measurement fields; unrecognized
// tokens are skipped because device quirks and documentation errors are
// expected, not exceptional. Returns nil when nothing on the line decoded.
func DecodeLine(line string) *types.Measurement {
	m := &types.Measurement{Meter: MeterName}
	populated := false

	for _, token := range strings.Fields(line) {
		tag, value, hasValue := strings.Cut(token, "=")
		unit, isFunction := functionUnits[tag]
		switch {
		case hasValue && isFunction:
			m.Function = tag
			m.Unit = unit
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.Value = types.Float(v)
				m.ValueText = ""
			} else {
				// The device prints the literal text "overflow" when a
				// reading exceeds the range. Keep it verbatim.
				m.Value = nil
				m.ValueText = value
			}
			populated = true
		case hasValue && len(tag) >= 2 && tag[0] == 'U':
			m.VoltageRange = VoltageRangeLabel(tag)
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.VoltageV = types.Float(v)
			}
			populated = true
		case hasValue && len(tag) >= 2 && tag[0] == 'I':
			m.CurrentRange = CurrentRangeLabel(tag)
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.CurrentA = types.Float(v)
			}
			populated = true
		case !hasValue && statusFunctions[tag] != "":
			m.Function = statusFunctions[tag]
			m.Unit = functionUnits[m.Function]
			populated = true
		case !hasValue && len(tag) >= 2 && tag[0] == 'U':
			m.VoltageRange = VoltageRangeLabel(tag)
			populated = true
		case !hasValue && len(tag) >= 2 && tag[0] == 'I':
			m.CurrentRange = CurrentRangeLabel(tag)
			populated = true
		}
	}

	if !populated {
		return nil
	}
	return m
}

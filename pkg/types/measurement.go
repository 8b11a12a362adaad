package types

import "time"

// Measurement is a single decoded meter reading. Both meter models emit this
// type; fields a protocol cannot report stay nil/empty. Optional numeric
// fields use pointers so a partial frame can distinguish "not transmitted"
// from zero.
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`

	// Meter name that produced the reading, e.g. "isw8001".
	Meter string `json:"meter,omitempty"`

	// Measurement function reported by the device (W, VAR, PF, DCV, ACV,
	// DCA, ACA). Only set by the ISW8001.
	Function string `json:"function,omitempty"`
	// Value is the numeric reading for Function. When the device reports
	// the literal text "overflow" instead of a number, Value stays nil and
	// ValueText carries the text verbatim.
	Value     *float64 `json:"value,omitempty"`
	ValueText string   `json:"value_text,omitempty"`
	Unit      string   `json:"unit,omitempty"`

	// Last known range labels, e.g. "500V" / "160mA".
	VoltageRange string `json:"voltage_range,omitempty"`
	CurrentRange string `json:"current_range,omitempty"`

	// Electrical quantities
	VoltageV    *float64 `json:"voltage_v,omitempty"`
	CurrentA    *float64 `json:"current_a,omitempty"`
	PowerW      *float64 `json:"power_w,omitempty"`
	PowerFactor *float64 `json:"power_factor,omitempty"`
	FrequencyHz *float64 `json:"frequency_hz,omitempty"`
}

// MeasurementHandler receives decoded measurements while auto mode is on.
type MeasurementHandler func(m *Measurement)

// MeterDriver is the role both meter drivers implement. The two wire
// protocols are unrelated, so only this surface is shared; each driver keeps
// its own framing and decoding.
type MeterDriver interface {
	// EnableAutoMode starts continuous acquisition and push notification.
	EnableAutoMode() error
	// DisableAutoMode stops continuous acquisition. Bytes already on the
	// wire are still drained but no longer emit events.
	DisableAutoMode() error
	// Subscribe registers a handler called once per decoded measurement
	// while auto mode is enabled. The returned function unsubscribes.
	Subscribe(handler MeasurementHandler) (unsubscribe func())
	// Close disables auto mode and releases the serial connection.
	Close() error
}

// Float returns a pointer to v, for filling optional Measurement fields.
func Float(v float64) *float64 { return &v }

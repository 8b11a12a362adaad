package feedclient

import (
	"encoding/json"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

// MeasurementFromJsonBytes decodes a feed message, or returns nil when the
// payload is not a measurement.
func MeasurementFromJsonBytes(data []byte) *types.Measurement {
	var m types.Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.Timestamp.IsZero() {
		return nil
	}
	return &m
}

// ToJsonBytes encodes a measurement the way the feed broadcasts it.
func ToJsonBytes(m *types.Measurement) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

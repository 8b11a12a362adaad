package psutils

import (
	"math"
	"time"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

// No negative values
func WToMw(w float64) uint32 {
	if w < 0 {
		return 0
	}
	return uint32(math.Round(w * 1000))
}

func MwToW(mw uint32) float64 {
	return float64(mw) / 1000
}

func WsToWh(ws float64) float64 {
	return ws / 3600
}

// EnergyIntegrator accumulates watt-seconds over a sample stream by
// rectangle integration: each power sample is held until the next one
// arrives. Feed it samples in timestamp order.
type EnergyIntegrator struct {
	lastTime  time.Time
	lastPower float64
	hasSample bool
	totalWs   float64
}

// Add consumes one measurement. Samples without a power reading only advance
// the clock.
func (e *EnergyIntegrator) Add(m *types.Measurement) {
	power, ok := samplePower(m)
	if e.hasSample {
		dt := m.Timestamp.Sub(e.lastTime).Seconds()
		if dt > 0 {
			e.totalWs += e.lastPower * dt
			e.lastTime = m.Timestamp
		}
	}
	if ok {
		if !e.hasSample {
			e.lastTime = m.Timestamp
		}
		e.lastPower = power
		e.hasSample = true
	}
}

// TotalWh returns the energy accumulated so far in watt-hours.
func (e *EnergyIntegrator) TotalWh() float64 {
	return WsToWh(e.totalWs)
}

// Reset starts a new integration session.
func (e *EnergyIntegrator) Reset() {
	*e = EnergyIntegrator{}
}

// samplePower extracts a power reading in watts from either meter's record.
func samplePower(m *types.Measurement) (float64, bool) {
	if m.PowerW != nil {
		return *m.PowerW, true
	}
	if m.Function == "W" && m.Value != nil {
		return *m.Value, true
	}
	return 0, false
}

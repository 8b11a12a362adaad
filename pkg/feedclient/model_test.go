package feedclient

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

func TestMeasurementJsonRoundTrip(t *testing.T) {
	m := &types.Measurement{
		Timestamp:    time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Meter:        "isw8001",
		Function:     "W",
		Value:        types.Float(0.02),
		Unit:         "W",
		VoltageRange: "500V",
		CurrentRange: "160mA",
	}

	decoded := MeasurementFromJsonBytes(ToJsonBytes(m))
	test.That(t, decoded, test.ShouldNotBeNil)
	test.That(t, decoded, test.ShouldResemble, m)
}

func TestOverflowTextSurvivesTheWire(t *testing.T) {
	m := &types.Measurement{
		Timestamp: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		Meter:     "isw8001",
		Function:  "PF",
		ValueText: "overflow",
	}

	decoded := MeasurementFromJsonBytes(ToJsonBytes(m))
	test.That(t, decoded, test.ShouldNotBeNil)
	test.That(t, decoded.Value, test.ShouldBeNil)
	test.That(t, decoded.ValueText, test.ShouldEqual, "overflow")
}

func TestMeasurementFromJsonBytesRejectsJunk(t *testing.T) {
	test.That(t, MeasurementFromJsonBytes([]byte("not json")), test.ShouldBeNil)
	test.That(t, MeasurementFromJsonBytes([]byte("{}")), test.ShouldBeNil)
}

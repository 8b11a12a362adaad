package iswmeter

import (
	"testing"

	"go.viam.com/test"
)

func TestDecodeMeasurementLine(t *testing.T) {
	m := DecodeLine("U3=238.5E+0 I1=0.3E-3 W=0.02E+0")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.VoltageRange, test.ShouldEqual, "500V")
	test.That(t, *m.VoltageV, test.ShouldEqual, 238.5)
	test.That(t, m.CurrentRange, test.ShouldEqual, "160mA")
	test.That(t, *m.CurrentA, test.ShouldAlmostEqual, 0.0003)
	test.That(t, m.Function, test.ShouldEqual, "W")
	test.That(t, *m.Value, test.ShouldEqual, 0.02)
	test.That(t, m.Unit, test.ShouldEqual, "W")
}

func TestDecodeOverflowKeepsLiteralText(t *testing.T) {
	m := DecodeLine("U1=0.01E+0 I1=0.0E-3 PF=overflow")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.Function, test.ShouldEqual, "PF")
	// A genuine device output, not a parse error.
	test.That(t, m.Value, test.ShouldBeNil)
	test.That(t, m.ValueText, test.ShouldEqual, "overflow")
}

func TestDecodeStatusLine(t *testing.T) {
	m := DecodeLine("WATT U1 I2")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.Function, test.ShouldEqual, "W")
	test.That(t, m.VoltageRange, test.ShouldEqual, "50V")
	test.That(t, m.CurrentRange, test.ShouldEqual, "1.6A")
	test.That(t, m.VoltageV, test.ShouldBeNil)
	test.That(t, m.CurrentA, test.ShouldBeNil)
}

func TestDecodeNegativeValue(t *testing.T) {
	m := DecodeLine("W=-0.000E+0")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, *m.Value, test.ShouldEqual, 0.0)
}

func TestDecodeUnknownRangeTagEchoesRaw(t *testing.T) {
	m := DecodeLine("U7=12.0E+0 Iq=1.0E-3")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.VoltageRange, test.ShouldEqual, "U7")
	test.That(t, m.CurrentRange, test.ShouldEqual, "Iq")
}

func TestDecodeIgnoresUnrecognizedTokens(t *testing.T) {
	m := DecodeLine("BOGUS W=1.0E+0 ???")
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.Function, test.ShouldEqual, "W")

	test.That(t, DecodeLine("BOGUS ???"), test.ShouldBeNil)
}

func TestDecodeFunctionVocabularyIsCaseSensitive(t *testing.T) {
	// Response tokens match case-sensitively; "w=" is not a function tag.
	m := DecodeLine("w=1.0E+0")
	test.That(t, m, test.ShouldBeNil)
}

func TestRangeLabelRoundTrip(t *testing.T) {
	for tag, label := range map[string]string{
		"U1": "50V", "U2": "150V", "U3": "500V",
	} {
		test.That(t, VoltageRangeLabel(tag), test.ShouldEqual, label)
		m := DecodeLine(tag + "=1.0E+0")
		test.That(t, m.VoltageRange, test.ShouldEqual, VoltageRangeLabel(tag))
	}
	for tag, label := range map[string]string{
		"I1": "160mA", "I2": "1.6A", "I3": "16A", "Ix": "ext",
	} {
		test.That(t, CurrentRangeLabel(tag), test.ShouldEqual, label)
		m := DecodeLine(tag + "=1.0E-3")
		test.That(t, m.CurrentRange, test.ShouldEqual, CurrentRangeLabel(tag))
	}
}

func TestDecodeAllFunctionUnits(t *testing.T) {
	for fn, unit := range map[string]string{
		"W": "W", "VAR": "var", "DCV": "V", "ACV": "V", "DCA": "A", "ACA": "A",
	} {
		m := DecodeLine(fn + "=1.0E+0")
		test.That(t, m, test.ShouldNotBeNil)
		test.That(t, m.Function, test.ShouldEqual, fn)
		test.That(t, m.Unit, test.ShouldEqual, unit)
	}
}

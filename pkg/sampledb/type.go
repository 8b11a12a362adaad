package sampledb

// Sample is one stored measurement row. Optional quantities stay NULL when
// the source frame did not carry them.
type Sample struct {
	TimestampMs int64    `db:"timestamp_ms" json:"timestamp_ms"`
	Meter       string   `db:"meter" json:"meter"`
	Function    string   `db:"function" json:"function,omitempty"`
	ValueText   string   `db:"value_text" json:"value_text,omitempty"`
	Unit        string   `db:"unit" json:"unit,omitempty"`
	Value       *float64 `db:"value" json:"value,omitempty"`
	VoltageV    *float64 `db:"voltage_v" json:"voltage_v,omitempty"`
	CurrentA    *float64 `db:"current_a" json:"current_a,omitempty"`
	PowerW      *float64 `db:"power_w" json:"power_w,omitempty"`
	PowerFactor *float64 `db:"power_factor" json:"power_factor,omitempty"`
	FrequencyHz *float64 `db:"frequency_hz" json:"frequency_hz,omitempty"`
}

// PowerSummary aggregates the stored power readings of a time range.
type PowerSummary struct {
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	SampleCount int64   `json:"sample_count"`
	AvgPowerW   float64 `json:"avg_power_w"`
	MinPowerW   float64 `json:"min_power_w"`
	MaxPowerW   float64 `json:"max_power_w"`
}

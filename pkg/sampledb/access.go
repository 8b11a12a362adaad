package sampledb

import (
	"time"

	"github.com/fqueze/isw8001-power-profiling/pkg/types"
)

func InsertSample(s *Sample) error {
	db := GetDB()

	_, err := db.Exec(
		"INSERT INTO samples "+
			"(timestamp_ms, meter, function, value, value_text, unit, "+
			"voltage_v, current_a, power_w, power_factor, frequency_hz) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.TimestampMs,
		s.Meter,
		s.Function,
		s.Value,
		s.ValueText,
		s.Unit,
		s.VoltageV,
		s.CurrentA,
		s.PowerW,
		s.PowerFactor,
		s.FrequencyHz,
	)
	if err != nil {
		return err
	}
	return nil
}

// SampleFromMeasurement maps a decoded measurement onto a storable row.
func SampleFromMeasurement(m *types.Measurement) *Sample {
	return &Sample{
		TimestampMs: m.Timestamp.UnixMilli(),
		Meter:       m.Meter,
		Function:    m.Function,
		Value:       m.Value,
		ValueText:   m.ValueText,
		Unit:        m.Unit,
		VoltageV:    m.VoltageV,
		CurrentA:    m.CurrentA,
		PowerW:      m.PowerW,
		PowerFactor: m.PowerFactor,
		FrequencyHz: m.FrequencyHz,
	}
}

// RecentSamples returns up to limit samples, newest first.
func RecentSamples(limit int) ([]*Sample, error) {
	db := GetDB()

	rows, err := db.Query(
		"SELECT timestamp_ms, meter, function, value, value_text, unit, "+
			"voltage_v, current_a, power_w, power_factor, frequency_hz "+
			"FROM samples ORDER BY timestamp_ms DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		s := &Sample{}
		if err := rows.Scan(
			&s.TimestampMs, &s.Meter, &s.Function, &s.Value, &s.ValueText,
			&s.Unit, &s.VoltageV, &s.CurrentA, &s.PowerW, &s.PowerFactor,
			&s.FrequencyHz,
		); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SummarizePower aggregates power readings between start and end. Rows
// without a power reading are excluded. Power is taken from the bcdmeter's
// power_w column or, for the ISW8001, from value rows in the W function.
func SummarizePower(start, end time.Time) (*PowerSummary, error) {
	db := GetDB()

	summary := &PowerSummary{
		StartMs: start.UnixMilli(),
		EndMs:   end.UnixMilli(),
	}
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(p), 0),
			COALESCE(MIN(p), 0),
			COALESCE(MAX(p), 0)
		FROM (
			SELECT COALESCE(power_w,
				CASE WHEN function = 'W' THEN value END) AS p
			FROM samples
			WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		)
		WHERE p IS NOT NULL
	`
	err := db.QueryRow(query, summary.StartMs, summary.EndMs).Scan(
		&summary.SampleCount,
		&summary.AvgPowerW,
		&summary.MinPowerW,
		&summary.MaxPowerW,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

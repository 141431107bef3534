package waterlevel

import (
	"math"
	"time"
)

// AlarmStatus is the textual alarm flag written into log rows.
type AlarmStatus string

const (
	// AlarmOn marks rows appended while the alarm is active.
	AlarmOn AlarmStatus = "ON"
	// AlarmOff marks rows appended while the alarm is inactive.
	AlarmOff AlarmStatus = "OFF"
)

// Sentinel node IDs used for rows that record operator actions rather than
// sensor readings.
const (
	// NodeManualTriggerChange tags rows written by a trigger-level change.
	NodeManualTriggerChange = "manual_trigger_change"
	// NodeManualOn tags rows written by a manual alarm activation.
	NodeManualOn = "manual_on"
	// NodeManualOff tags rows written by a manual alarm deactivation.
	NodeManualOff = "manual_off"
	// NodeAutoOff tags rows written when a manual override expires.
	NodeAutoOff = "auto_off"
)

// SystemState is the authoritative in-memory state owned by the alarm engine.
// All fields are mutated only while holding the engine lock.
type SystemState struct {
	// CurrentWaterLevel is the last accepted reading, in centimeters.
	CurrentWaterLevel float64
	// TriggerLevel is the alarm threshold, in centimeters. Always > 0.
	TriggerLevel float64
	// AlarmActive indicates whether the alarm output is currently on.
	AlarmActive bool
	// ManualOverride is true only while an operator-forced alarm is pending
	// auto-expiry. While set, threshold evaluation never flips the alarm.
	ManualOverride bool
	// LastReadingAt is when the last reading was accepted. Zero if none yet.
	LastReadingAt time.Time
	// AlarmStartedAt is set exactly on the inactive-to-active transition and
	// cleared on the reverse one. Non-zero iff AlarmActive.
	AlarmStartedAt time.Time
	// ConnectionCount is incremented once per accepted ingestion.
	ConnectionCount int64
	// LogStoreReady reflects the last known health of the durable log.
	LogStoreReady bool
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *SystemState) Clone() *SystemState {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Reading is one sensor-submitted water-level measurement. It is ephemeral:
// only its derived fields end up in a LogRow.
type Reading struct {
	// WaterLevel is the measured level in centimeters.
	WaterLevel float64
	// NodeID identifies the submitting sensor node.
	NodeID string
	// ObservedAt is when the measurement was taken.
	ObservedAt time.Time
}

// Valid reports whether the reading carries a finite water level.
// NaN and infinities are rejected before any state mutation happens.
func (r *Reading) Valid() bool {
	return !math.IsNaN(r.WaterLevel) && !math.IsInf(r.WaterLevel, 0)
}

// LogRow is an immutable audit record appended to the durable log.
type LogRow struct {
	// Timestamp is when the row was created (UTC).
	Timestamp time.Time
	// WaterLevel is the water level at write time, in centimeters.
	WaterLevel float64
	// TriggerLevel is the threshold at write time, in centimeters.
	TriggerLevel float64
	// AlarmStatus is the alarm flag at write time.
	AlarmStatus AlarmStatus
	// NodeID is the submitting sensor node or a sentinel operator tag.
	NodeID string
}

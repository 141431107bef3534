package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/config"
	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/notify"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/repository/sheetlog"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/repository/snapshot"
)

var (
	// ErrInvalidReading is returned for non-finite water levels. The reading
	// is rejected before any state mutation.
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidTrigger is returned for non-positive trigger levels.
	ErrInvalidTrigger = errors.New("invalid trigger level")
	// ErrLogNotConfigured is returned by history queries when the engine was
	// built without a durable log.
	ErrLogNotConfigured = errors.New("durable log not configured")
)

// Outcome describes the result of a mutating engine operation: whether the
// call was accepted, the alarm state after it, and whether the durable log
// append succeeded. A false SheetLogged with Accepted true is a partial
// success: the state mutation is committed, only the audit row is missing.
type Outcome struct {
	// Accepted is true when the input passed validation and mutated state.
	Accepted bool
	// AlarmActive is the alarm state after the operation.
	AlarmActive bool
	// SheetLogged is true when the audit row reached the durable log.
	SheetLogged bool
}

// Options configures a new engine instance.
type Options struct {
	// Snapshots is the fast local persistence used for warm start.
	Snapshots snapshot.Repository
	// Log is the durable append-only log.
	Log sheetlog.Log
	// Notifier is the one-way operator message channel.
	Notifier notify.Notifier
	// OverrideExpiry is how long a forced alarm stays on before auto-expiry.
	OverrideExpiry time.Duration
	// DefaultTriggerLevel is the threshold used when no prior state exists.
	DefaultTriggerLevel float64
}

// Engine owns the system state and applies the alarm policy. Construct one
// instance at process start and hand it to the transport layers.
type Engine struct {
	// snapshots handles fast local persistence of the state.
	snapshots snapshot.Repository
	// log is the durable append-only audit log.
	log sheetlog.Log
	// notifier publishes alarm transitions to operators.
	notifier notify.Notifier
	// overrideExpiry is the lifetime of a manual override.
	overrideExpiry time.Duration

	// mu serializes all mutations of state. Never held across I/O.
	mu sync.Mutex
	// state is the authoritative in-memory system state.
	state *domain.SystemState
}

// New creates the engine, warm-starting from the snapshot store when a
// snapshot exists. Snapshot problems are logged and ignored: Restore against
// the durable log is the authoritative recovery path.
func New(ctx context.Context, opts *Options) *Engine {
	expiry := opts.OverrideExpiry
	if expiry <= 0 {
		expiry = config.DefaultOverrideExpiry
	}

	trigger := opts.DefaultTriggerLevel
	if trigger <= config.HTTPTriggerMinimum {
		trigger = config.DefaultTriggerLevel
	}

	e := &Engine{
		snapshots:      opts.Snapshots,
		log:            opts.Log,
		notifier:       opts.Notifier,
		overrideExpiry: expiry,
		state: &domain.SystemState{
			TriggerLevel: trigger,
		},
	}

	if e.notifier == nil {
		e.notifier = notify.Noop{}
	}

	if e.snapshots == nil {
		return e
	}

	loaded, err := e.snapshots.Load(ctx)
	switch {
	case err == nil:
		if loaded != nil {
			e.state = loaded
		}
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info(ctx, "No snapshot found, starting with defaults")
	default:
		logger.WarnKV(ctx, "Failed to load snapshot, starting with defaults", "error", err)
	}

	return e
}

// Ingest applies one sensor reading: updates the level bookkeeping,
// evaluates the threshold policy, persists the snapshot and appends an audit
// row. Log failures degrade the outcome to partial success but never roll
// back the state mutation.
func (e *Engine) Ingest(ctx context.Context, reading *domain.Reading) (*Outcome, error) {
	if !reading.Valid() {
		return nil, fmt.Errorf("%w: water level must be a finite number", ErrInvalidReading)
	}

	now := time.Now().UTC()

	observedAt := reading.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	e.mu.Lock()

	e.state.CurrentWaterLevel = reading.WaterLevel
	e.state.LastReadingAt = observedAt
	e.state.ConnectionCount++

	var notification string

	// Threshold evaluation is suppressed entirely while an operator override
	// is pending; the reading bookkeeping above still happens.
	if !e.state.ManualOverride {
		switch {
		case !e.state.AlarmActive && reading.WaterLevel >= e.state.TriggerLevel:
			e.state.AlarmActive = true
			e.state.AlarmStartedAt = now
			notification = fmt.Sprintf("Water level alarm ON: %.1f cm reached trigger %.1f cm",
				reading.WaterLevel, e.state.TriggerLevel)
		case e.state.AlarmActive && reading.WaterLevel < e.state.TriggerLevel:
			e.state.AlarmActive = false
			e.state.AlarmStartedAt = time.Time{}
			notification = fmt.Sprintf("Water level alarm OFF: %.1f cm back under trigger %.1f cm",
				reading.WaterLevel, e.state.TriggerLevel)
		}
	}

	row := e.rowLocked(now, reading.NodeID)

	e.mu.Unlock()

	outcome := e.persistAndLog(ctx, row)

	if notification != "" {
		e.notifier.Notify(ctx, notification)
	}

	return outcome, nil
}

// SetTrigger changes the alarm threshold. The engine enforces only the lower
// bound; the chat command layer applies its stricter upper bound before
// calling in.
func (e *Engine) SetTrigger(ctx context.Context, level float64) (*Outcome, error) {
	if level <= config.HTTPTriggerMinimum || math.IsNaN(level) || math.IsInf(level, 0) {
		return nil, fmt.Errorf("%w: level must be greater than %v", ErrInvalidTrigger, config.HTTPTriggerMinimum)
	}

	now := time.Now().UTC()

	e.mu.Lock()
	e.state.TriggerLevel = level
	row := e.rowLocked(now, domain.NodeManualTriggerChange)
	e.mu.Unlock()

	logger.InfoKV(ctx, "Trigger level changed", "trigger_level", level)

	return e.persistAndLog(ctx, row), nil
}

// ForceAlarm switches the alarm on or off by operator command. Forcing on
// arms a fresh single-shot expiry timer; there is no cancellation of earlier
// timers, the fire-time guard in expireOverride makes stale ones harmless.
func (e *Engine) ForceAlarm(ctx context.Context, on bool) *Outcome {
	now := time.Now().UTC()

	e.mu.Lock()

	nodeID := domain.NodeManualOff

	if on {
		nodeID = domain.NodeManualOn
		e.state.AlarmActive = true
		e.state.ManualOverride = true

		if e.state.AlarmStartedAt.IsZero() {
			e.state.AlarmStartedAt = now
		}
	} else {
		e.state.AlarmActive = false
		e.state.ManualOverride = false
		e.state.AlarmStartedAt = time.Time{}
	}

	row := e.rowLocked(now, nodeID)

	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm forced", "on", on, "override_expiry", e.overrideExpiry)

	if on {
		time.AfterFunc(e.overrideExpiry, func() {
			// The request context is long gone when the timer fires.
			e.expireOverride(context.Background())
		})
	}

	return e.persistAndLog(ctx, row)
}

// expireOverride is the auto-off fired by the override timer. It only acts
// when both flags still hold at fire time, which makes timers armed by
// superseded ForceAlarm calls no-ops.
func (e *Engine) expireOverride(ctx context.Context) {
	now := time.Now().UTC()

	e.mu.Lock()

	if !e.state.AlarmActive || !e.state.ManualOverride {
		e.mu.Unlock()

		return
	}

	e.state.AlarmActive = false
	e.state.ManualOverride = false
	e.state.AlarmStartedAt = time.Time{}
	row := e.rowLocked(now, domain.NodeAutoOff)

	e.mu.Unlock()

	logger.Info(ctx, "Manual override expired, alarm off")
	e.persistAndLog(ctx, row)
	e.notifier.Notify(ctx, "Water level alarm OFF: manual override expired")
}

// OverrideExpiry returns the configured manual-override lifetime.
func (e *Engine) OverrideExpiry() time.Duration {
	return e.overrideExpiry
}

// Status returns a copy of the current system state.
func (e *Engine) Status(ctx context.Context) *domain.SystemState {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger.DebugKV(ctx, "Status requested", "alarm_active", e.state.AlarmActive)

	return e.state.Clone()
}

// Restore reconciles the in-memory state with the last row of the current
// log partition. The log wins over the snapshot when both exist. Absence of
// rows is informational, never an error.
func (e *Engine) Restore(ctx context.Context) *domain.SystemState {
	if e.log == nil {
		return e.Status(ctx)
	}

	now := time.Now().UTC()

	partition, err := e.log.EnsurePartition(ctx, now)
	if err != nil {
		logger.WarnKV(ctx, "Restore skipped, log unavailable", "error", err)
		e.setLogReady(false)

		return e.Status(ctx)
	}

	rows, err := e.log.ReadTail(ctx, partition, 1)
	if err != nil {
		logger.WarnKV(ctx, "Restore skipped, cannot read log tail", "partition", partition, "error", err)
		e.setLogReady(false)

		return e.Status(ctx)
	}

	e.setLogReady(true)

	if len(rows) == 0 {
		logger.InfoKV(ctx, "Restore skipped, no prior rows", "partition", partition)

		return e.Status(ctx)
	}

	last := rows[len(rows)-1]

	e.mu.Lock()

	e.state.CurrentWaterLevel = last.WaterLevel
	e.state.TriggerLevel = last.TriggerLevel
	e.state.AlarmActive = last.AlarmStatus == domain.AlarmOn
	e.state.LastReadingAt = last.Timestamp

	if e.state.AlarmActive {
		if e.state.AlarmStartedAt.IsZero() {
			e.state.AlarmStartedAt = last.Timestamp
		}
	} else {
		e.state.AlarmStartedAt = time.Time{}
	}

	result := e.state.Clone()

	e.mu.Unlock()

	logger.InfoKV(ctx, "State restored from log",
		"partition", partition,
		"water_level", result.CurrentWaterLevel,
		"trigger_level", result.TriggerLevel,
		"alarm_active", result.AlarmActive)

	e.saveSnapshot(ctx, result)

	return result
}

// History returns up to n recent rows of the current log partition, most
// recent last.
func (e *Engine) History(ctx context.Context, n int) ([]*domain.LogRow, error) {
	if e.log == nil {
		return nil, ErrLogNotConfigured
	}

	partition, err := e.log.EnsurePartition(ctx, time.Now().UTC())
	if err != nil {
		e.setLogReady(false)

		return nil, err
	}

	rows, err := e.log.ReadTail(ctx, partition, n)
	if err != nil {
		e.setLogReady(false)

		return nil, err
	}

	e.setLogReady(true)

	return rows, nil
}

// rowLocked builds an audit row from the current state. Caller must hold mu.
func (e *Engine) rowLocked(now time.Time, nodeID string) *domain.LogRow {
	status := domain.AlarmOff
	if e.state.AlarmActive {
		status = domain.AlarmOn
	}

	return &domain.LogRow{
		Timestamp:    now,
		WaterLevel:   e.state.CurrentWaterLevel,
		TriggerLevel: e.state.TriggerLevel,
		AlarmStatus:  status,
		NodeID:       nodeID,
	}
}

// persistAndLog saves the snapshot and appends the audit row, both outside
// the state lock. Snapshot failures are logged and ignored; log failures
// mark the outcome as partial success.
func (e *Engine) persistAndLog(ctx context.Context, row *domain.LogRow) *Outcome {
	e.saveSnapshot(ctx, nil)

	sheetLogged := e.appendRow(ctx, row)

	e.mu.Lock()
	e.state.LogStoreReady = sheetLogged
	alarmActive := e.state.AlarmActive
	e.mu.Unlock()

	return &Outcome{
		Accepted:    true,
		AlarmActive: alarmActive,
		SheetLogged: sheetLogged,
	}
}

// saveSnapshot persists the given state, or a fresh copy when nil.
func (e *Engine) saveSnapshot(ctx context.Context, state *domain.SystemState) {
	if e.snapshots == nil {
		return
	}

	if state == nil {
		e.mu.Lock()
		state = e.state.Clone()
		e.mu.Unlock()
	}

	if err := e.snapshots.Save(ctx, state); err != nil {
		logger.ErrorKV(ctx, "Failed to persist snapshot", "error", err)
	}
}

// appendRow writes the row into the current month partition and reports success.
func (e *Engine) appendRow(ctx context.Context, row *domain.LogRow) bool {
	if e.log == nil {
		return false
	}

	partition, err := e.log.EnsurePartition(ctx, row.Timestamp)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to resolve log partition", "error", err)

		return false
	}

	if err := e.log.Append(ctx, partition, row); err != nil {
		logger.ErrorKV(ctx, "Failed to append log row", "partition", partition, "error", err)

		return false
	}

	return true
}

// setLogReady updates the health flag under the state lock.
func (e *Engine) setLogReady(ready bool) {
	e.mu.Lock()
	e.state.LogStoreReady = ready
	e.mu.Unlock()
}

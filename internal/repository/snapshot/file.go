package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/config"
	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
)

// Repository defines persistence operations for the state snapshot.
type Repository interface {
	Load(ctx context.Context) (*domain.SystemState, error)
	Save(ctx context.Context, state *domain.SystemState) error
}

// FileRepository persists the engine state to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON snapshot file.
	path string
	// mu protects concurrent access to the snapshot file.
	mu sync.Mutex
}

// ErrNotFound is returned when the snapshot file does not exist yet.
var ErrNotFound = errors.New("snapshot not found")

// record is the on-disk layout of the snapshot. Volatile fields such as
// LogStoreReady are deliberately excluded.
type record struct {
	CurrentWaterLevel float64 `json:"currentWaterLevel"`
	TriggerLevel      float64 `json:"triggerLevel"`
	AlarmActive       bool    `json:"alarmActive"`
	ManualOverride    bool    `json:"manualOverride"`
	LastReading       string  `json:"lastReading,omitempty"`
	AlarmStartTime    string  `json:"alarmStartTime,omitempty"`
	ConnectionCount   int64   `json:"connectionCount"`
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.SystemState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var rec record
	if err = json.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return fromRecord(&rec)
}

// Save writes the snapshot to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, state *domain.SystemState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(toRecord(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	return nil
}

// fromRecord converts the on-disk record into the domain state model.
func fromRecord(rec *record) (*domain.SystemState, error) {
	state := &domain.SystemState{
		CurrentWaterLevel: rec.CurrentWaterLevel,
		TriggerLevel:      rec.TriggerLevel,
		AlarmActive:       rec.AlarmActive,
		ManualOverride:    rec.ManualOverride,
		ConnectionCount:   rec.ConnectionCount,
	}

	if rec.LastReading != "" {
		ts, err := time.Parse(time.RFC3339Nano, rec.LastReading)
		if err != nil {
			return nil, fmt.Errorf("parse lastReading: %w", err)
		}

		state.LastReadingAt = ts
	}

	if rec.AlarmStartTime != "" {
		ts, err := time.Parse(time.RFC3339Nano, rec.AlarmStartTime)
		if err != nil {
			return nil, fmt.Errorf("parse alarmStartTime: %w", err)
		}

		state.AlarmStartedAt = ts
	}

	return state, nil
}

// toRecord converts the domain state model into the on-disk record.
func toRecord(state *domain.SystemState) *record {
	rec := &record{
		CurrentWaterLevel: state.CurrentWaterLevel,
		TriggerLevel:      state.TriggerLevel,
		AlarmActive:       state.AlarmActive,
		ManualOverride:    state.ManualOverride,
		ConnectionCount:   state.ConnectionCount,
	}

	if !state.LastReadingAt.IsZero() {
		rec.LastReading = state.LastReadingAt.UTC().Format(time.RFC3339Nano)
	}

	if !state.AlarmStartedAt.IsZero() {
		rec.AlarmStartTime = state.AlarmStartedAt.UTC().Format(time.RFC3339Nano)
	}

	return rec
}

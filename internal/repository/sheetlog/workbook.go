package sheetlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
)

// Log defines the append-only durable log contract the engine depends on.
type Log interface {
	EnsurePartition(ctx context.Context, now time.Time) (string, error)
	Append(ctx context.Context, partition string, row *domain.LogRow) error
	ReadTail(ctx context.Context, partition string, n int) ([]*domain.LogRow, error)
}

// ErrLogUnavailable is returned when an append still fails after the single
// reinit-and-retry pass.
var ErrLogUnavailable = errors.New("durable log unavailable")

// header is the fixed schema written into every new partition.
var header = []string{"Timestamp", "Water Level (cm)", "Trigger Level (cm)", "Alarm Status", "Node ID"}

// partitionLayout formats append time into a worksheet name.
const partitionLayout = "2006-01"

// defaultSheetName is the sheet excelize creates in a fresh workbook. It is
// replaced by the first real partition.
const defaultSheetName = "Sheet1"

// Workbook stores log rows in an xlsx file, one worksheet per month.
type Workbook struct {
	// path is the filesystem location of the workbook.
	path string
	// mu serializes all workbook access, including lazy partition creation.
	mu sync.Mutex
	// file is the open workbook handle, nil until first use or after a reinit.
	file *excelize.File
	// save flushes the handle to disk. Tests replace it to simulate
	// transient save failures.
	save func(file *excelize.File, path string) error
}

// NewWorkbook creates a log store backed by the xlsx file at the provided path.
// The file is opened lazily on first use.
func NewWorkbook(path string) *Workbook {
	return &Workbook{
		path: filepath.Clean(path),
		save: func(file *excelize.File, path string) error {
			return file.SaveAs(path)
		},
	}
}

// PartitionKey returns the partition name for the given time (UTC year-month).
func PartitionKey(now time.Time) string {
	return now.UTC().Format(partitionLayout)
}

// EnsurePartition makes sure the worksheet for the given time exists,
// creating it with the header row when absent. Creation is idempotent:
// concurrent callers are serialized by the workbook mutex.
func (w *Workbook) EnsurePartition(_ context.Context, now time.Time) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	partition := PartitionKey(now)
	if err := w.ensurePartitionLocked(partition); err != nil {
		return "", err
	}

	return partition, nil
}

// Append writes a row at the end of the partition. A first failure is
// retried exactly once after re-opening the workbook handle; a second
// failure surfaces as ErrLogUnavailable.
func (w *Workbook) Append(ctx context.Context, partition string, row *domain.LogRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.appendLocked(partition, row)
	if err == nil {
		return nil
	}

	logger.WarnKV(ctx, "Log append failed, reinitializing workbook", "partition", partition, "error", err)

	// One reinit-and-retry: drop the handle, reopen, re-resolve the partition.
	w.file = nil

	if err = w.appendLocked(partition, row); err != nil {
		return fmt.Errorf("%w: %s", ErrLogUnavailable, err)
	}

	return nil
}

// ReadTail returns up to the last n rows of the partition, most recent last.
// A missing partition yields an empty slice, not an error.
func (w *Workbook) ReadTail(_ context.Context, partition string, n int) ([]*domain.LogRow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.openLocked(); err != nil {
		return nil, err
	}

	index, err := w.file.GetSheetIndex(partition)
	if err != nil {
		return nil, fmt.Errorf("resolve partition %s: %w", partition, err)
	}

	if index < 0 {
		return nil, nil
	}

	rows, err := w.file.GetRows(partition)
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %w", partition, err)
	}

	// Skip the header row.
	if len(rows) <= 1 {
		return nil, nil
	}

	rows = rows[1:]
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	result := make([]*domain.LogRow, 0, len(rows))

	for _, cells := range rows {
		parsed, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("parse row in partition %s: %w", partition, err)
		}

		result = append(result, parsed)
	}

	return result, nil
}

// Close releases the workbook handle.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil

	return err
}

// openLocked makes sure the workbook handle is ready. Caller must hold mu.
func (w *Workbook) openLocked() error {
	if w.file != nil {
		return nil
	}

	if _, err := os.Stat(w.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat workbook: %w", err)
		}

		w.file = excelize.NewFile()

		return nil
	}

	file, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}

	w.file = file

	return nil
}

// ensurePartitionLocked creates the worksheet with its header when absent.
// Caller must hold mu.
func (w *Workbook) ensurePartitionLocked(partition string) error {
	if err := w.openLocked(); err != nil {
		return err
	}

	index, err := w.file.GetSheetIndex(partition)
	if err != nil {
		return fmt.Errorf("resolve partition %s: %w", partition, err)
	}

	if index >= 0 {
		return nil
	}

	index, err = w.file.NewSheet(partition)
	if err != nil {
		return fmt.Errorf("create partition %s: %w", partition, err)
	}

	w.file.SetActiveSheet(index)

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}

		if err = w.file.SetCellValue(partition, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	// A fresh workbook carries an empty default sheet; replace it with the
	// first real partition.
	if defaultIndex, _ := w.file.GetSheetIndex(defaultSheetName); defaultIndex >= 0 && defaultSheetName != partition {
		if err = w.file.DeleteSheet(defaultSheetName); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
	}

	return w.saveLocked()
}

// appendLocked performs one append attempt. Caller must hold mu.
func (w *Workbook) appendLocked(partition string, row *domain.LogRow) error {
	if err := w.ensurePartitionLocked(partition); err != nil {
		return err
	}

	existing, err := w.file.GetRows(partition)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}

	target := len(existing) + 1
	values := []any{
		row.Timestamp.UTC().Format(time.RFC3339),
		row.WaterLevel,
		row.TriggerLevel,
		string(row.AlarmStatus),
		row.NodeID,
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, target)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}

		if err = w.file.SetCellValue(partition, cell, value); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	return w.saveLocked()
}

// saveLocked flushes the workbook to disk. Caller must hold mu.
func (w *Workbook) saveLocked() error {
	if err := w.save(w.file, w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}

// parseRow converts worksheet cells back into a LogRow.
func parseRow(cells []string) (*domain.LogRow, error) {
	row := new(domain.LogRow)

	if len(cells) > 0 && cells[0] != "" {
		ts, err := time.Parse(time.RFC3339, cells[0])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}

		row.Timestamp = ts
	}

	if len(cells) > 1 && cells[1] != "" {
		level, err := strconv.ParseFloat(cells[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse water level: %w", err)
		}

		row.WaterLevel = level
	}

	if len(cells) > 2 && cells[2] != "" {
		level, err := strconv.ParseFloat(cells[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parse trigger level: %w", err)
		}

		row.TriggerLevel = level
	}

	if len(cells) > 3 {
		row.AlarmStatus = domain.AlarmStatus(cells[3])
	}

	if len(cells) > 4 {
		row.NodeID = cells[4]
	}

	return row, nil
}

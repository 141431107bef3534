package sheetlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
)

// testRow builds a log row with a deterministic timestamp.
func testRow(level float64, status domain.AlarmStatus, nodeID string) *domain.LogRow {
	return &domain.LogRow{
		Timestamp:    time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		WaterLevel:   level,
		TriggerLevel: 50,
		AlarmStatus:  status,
		NodeID:       nodeID,
	}
}

// TestPartitionKey verifies UTC year-month naming.
func TestPartitionKey(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 23, 59, 0, 0, time.FixedZone("UTC+7", 7*3600))
	require.Equal(t, "2026-08", PartitionKey(now))
}

// TestWorkbook_EnsurePartition_Idempotent verifies lazy creation happens once.
func TestWorkbook_EnsurePartition_Idempotent(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first, err := wb.EnsurePartition(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, "2026-08", first)

	second, err := wb.EnsurePartition(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Empty partition still reads back cleanly (header only).
	rows, err := wb.ReadTail(context.Background(), first, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

// TestWorkbook_AppendAndReadTail checks rows round-trip and tail ordering.
func TestWorkbook_AppendAndReadTail(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))
	ctx := context.Background()

	partition, err := wb.EnsurePartition(ctx, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	for i, level := range []float64{30, 55, 60} {
		row := testRow(level, domain.AlarmOff, "node-1")
		row.Timestamp = row.Timestamp.Add(time.Duration(i) * time.Minute)
		require.NoError(t, wb.Append(ctx, partition, row))
	}

	rows, err := wb.ReadTail(ctx, partition, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Most recent last.
	require.InEpsilon(t, 55.0, rows[0].WaterLevel, 1e-9)
	require.InEpsilon(t, 60.0, rows[1].WaterLevel, 1e-9)
	require.Equal(t, "node-1", rows[1].NodeID)
	require.Equal(t, domain.AlarmOff, rows[1].AlarmStatus)
	require.InEpsilon(t, 50.0, rows[1].TriggerLevel, 1e-9)
	require.True(t, rows[1].Timestamp.After(rows[0].Timestamp))
}

// TestWorkbook_ReadTail_MissingPartition returns no rows and no error.
func TestWorkbook_ReadTail_MissingPartition(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))

	rows, err := wb.ReadTail(context.Background(), "2020-01", 1)
	require.NoError(t, err)
	require.Empty(t, rows)
}

// TestWorkbook_Append_ReopensAfterClose ensures a dropped handle is lazily
// reopened on the next append.
func TestWorkbook_Append_ReopensAfterClose(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))
	ctx := context.Background()

	partition, err := wb.EnsurePartition(ctx, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, wb.Append(ctx, partition, testRow(30, domain.AlarmOff, "node-1")))

	// Close the underlying file behind the adapter.
	require.NoError(t, wb.Close())

	require.NoError(t, wb.Append(ctx, partition, testRow(55, domain.AlarmOn, "node-1")))

	rows, err := wb.ReadTail(ctx, partition, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, domain.AlarmOn, rows[1].AlarmStatus)
}

// TestWorkbook_Append_RetriesOnceAfterSaveFailure: a transient failure on the
// first attempt is hidden from the caller by the reinit-and-retry pass, which
// re-reads the workbook from disk.
func TestWorkbook_Append_RetriesOnceAfterSaveFailure(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))
	ctx := context.Background()

	partition, err := wb.EnsurePartition(ctx, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, wb.Append(ctx, partition, testRow(30, domain.AlarmOff, "node-1")))

	var saves int

	wb.save = func(file *excelize.File, path string) error {
		saves++
		if saves == 1 {
			return errors.New("transient save failure")
		}

		return file.SaveAs(path)
	}

	require.NoError(t, wb.Append(ctx, partition, testRow(55, domain.AlarmOn, "node-1")))
	require.Equal(t, 2, saves)

	rows, err := wb.ReadTail(ctx, partition, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, domain.AlarmOn, rows[1].AlarmStatus)
	require.InEpsilon(t, 55.0, rows[1].WaterLevel, 1e-9)
}

// TestWorkbook_Append_UnavailableAfterRetry: when the retry fails as well,
// the caller gets ErrLogUnavailable.
func TestWorkbook_Append_UnavailableAfterRetry(t *testing.T) {
	t.Parallel()

	// A directory at the workbook path makes every open and save fail.
	wb := NewWorkbook(t.TempDir())

	err := wb.Append(context.Background(), "2026-08", testRow(30, domain.AlarmOff, "node-1"))
	require.ErrorIs(t, err, ErrLogUnavailable)
}

// TestWorkbook_MonthRollover verifies separate partitions per month in one file.
func TestWorkbook_MonthRollover(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook(filepath.Join(t.TempDir(), "log.xlsx"))
	ctx := context.Background()

	august, err := wb.EnsurePartition(ctx, time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	september, err := wb.EnsurePartition(ctx, time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEqual(t, august, september)

	require.NoError(t, wb.Append(ctx, august, testRow(10, domain.AlarmOff, "node-1")))
	require.NoError(t, wb.Append(ctx, september, testRow(20, domain.AlarmOff, "node-1")))

	rows, err := wb.ReadTail(ctx, august, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InEpsilon(t, 10.0, rows[0].WaterLevel, 1e-9)
}

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/repository/sheetlog"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/engine"
)

// fakeLog is a minimal in-memory sheetlog.Log for command tests.
type fakeLog struct {
	mu   sync.Mutex
	rows map[string][]*domain.LogRow
}

func newFakeLog() *fakeLog {
	return &fakeLog{rows: make(map[string][]*domain.LogRow)}
}

func (f *fakeLog) EnsurePartition(_ context.Context, now time.Time) (string, error) {
	return sheetlog.PartitionKey(now), nil
}

func (f *fakeLog) Append(_ context.Context, partition string, row *domain.LogRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rows[partition] = append(f.rows[partition], row)

	return nil
}

func (f *fakeLog) ReadTail(_ context.Context, partition string, n int) ([]*domain.LogRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.rows[partition]
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	return rows, nil
}

func newTestCommander(t *testing.T) *Commander {
	t.Helper()

	e := engine.New(context.Background(), &engine.Options{
		Log:                 newFakeLog(),
		OverrideExpiry:      time.Minute,
		DefaultTriggerLevel: 50,
	})

	return NewCommander(e)
}

// TestReply_Status renders the current state.
func TestReply_Status(t *testing.T) {
	t.Parallel()

	c := newTestCommander(t)

	reply := c.Reply(context.Background(), "/status")
	require.Contains(t, reply, "Trigger level: 50.0 cm")
	require.Contains(t, reply, "Alarm: OFF")
	require.Contains(t, reply, "Last reading: never")
}

// TestReply_SetTrigger_Bounds enforces the operator bound 0 < level <= 200
// and answers malformed input with the usage hint.
func TestReply_SetTrigger_Bounds(t *testing.T) {
	t.Parallel()

	c := newTestCommander(t)

	for _, text := range []string{
		"/settrigger",
		"/settrigger abc",
		"/settrigger 0",
		"/settrigger -5",
		"/settrigger 250",
		"/settrigger 10 20",
	} {
		require.Equal(t, triggerUsage, c.Reply(context.Background(), text), "input %q", text)
	}

	// Bound is inclusive at 200.
	reply := c.Reply(context.Background(), "/settrigger 200")
	require.Contains(t, reply, "Trigger level set to 200.0 cm")

	reply = c.Reply(context.Background(), "/status")
	require.Contains(t, reply, "Trigger level: 200.0 cm")
}

// TestReply_AlarmOnOff toggles the manual override through commands.
func TestReply_AlarmOnOff(t *testing.T) {
	t.Parallel()

	c := newTestCommander(t)

	reply := c.Reply(context.Background(), "/alarm on")
	require.Contains(t, reply, "Alarm forced ON")
	require.Contains(t, c.Reply(context.Background(), "/status"), "Alarm: ON")
	require.Contains(t, c.Reply(context.Background(), "/status"), "Manual override: active")

	reply = c.Reply(context.Background(), "/alarm off")
	require.Contains(t, reply, "Alarm forced OFF")
	require.Contains(t, c.Reply(context.Background(), "/status"), "Alarm: OFF")

	require.Equal(t, alarmUsage, c.Reply(context.Background(), "/alarm"))
	require.Equal(t, alarmUsage, c.Reply(context.Background(), "/alarm maybe"))
}

// TestReply_History shows recent rows or a friendly empty message.
func TestReply_History(t *testing.T) {
	t.Parallel()

	c := newTestCommander(t)

	require.Equal(t, "No log rows recorded this month yet.", c.Reply(context.Background(), "/history"))

	c.Reply(context.Background(), "/settrigger 80")

	reply := c.Reply(context.Background(), "/history")
	require.Contains(t, reply, "Last 1 rows")
	require.Contains(t, reply, domain.NodeManualTriggerChange)
}

// TestReply_UnknownAndHelp answers anything else with the command list.
func TestReply_UnknownAndHelp(t *testing.T) {
	t.Parallel()

	c := newTestCommander(t)

	require.Contains(t, c.Reply(context.Background(), "/frobnicate"), helpText)
	require.Equal(t, helpText, c.Reply(context.Background(), "/help"))
	require.Equal(t, helpText, c.Reply(context.Background(), "   "))

	// Group-chat command suffix is tolerated.
	require.Contains(t, c.Reply(context.Background(), "/status@sidogiri_bot"), "Alarm: OFF")
}

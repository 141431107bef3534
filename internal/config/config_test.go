package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad socket.
	cfg = &Config{
		ServerAddress: "bad:address",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Defaults filled.
	cfg = &Config{
		ServerAddress: "127.0.0.1:0",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultSnapshotFilename, cfg.SnapshotFile)
	require.Equal(t, DefaultWorkbookFilename, cfg.WorkbookFile)
	require.Equal(t, DefaultOverrideExpiry, cfg.OverrideExpiry)
	require.InEpsilon(t, DefaultTriggerLevel, cfg.DefaultTriggerLevel, 1e-9)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ServerAddress:       "127.0.0.1:8080",
		SnapshotFile:        filepath.Join(dir, "state.json"),
		WorkbookFile:        filepath.Join(dir, "log.xlsx"),
		OverrideExpiry:      2 * time.Minute,
		DefaultTriggerLevel: 75,
	}

	require.NoError(t, Save(path, cfg))

	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ServerAddress, loaded.ServerAddress)
	require.Equal(t, cfg.OverrideExpiry, loaded.OverrideExpiry)
	require.Equal(t, "test-token", loaded.Telegram.BotToken)
	require.Equal(t, int64(12345), loaded.Telegram.ChatID)

	// Credentials never land in the YAML file.
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(contents), "test-token")
}

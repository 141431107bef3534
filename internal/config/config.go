package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the water-level alarm service.
type Config struct {
	// ServerAddress is the TCP address the HTTP API listens on.
	ServerAddress string `yaml:"server_addr"`
	// SnapshotFile is the path of the JSON file storing the fast-start state snapshot.
	SnapshotFile string `yaml:"snapshot_file"`
	// WorkbookFile is the path of the xlsx workbook holding the durable log.
	WorkbookFile string `yaml:"workbook_file"`
	// OverrideExpiry is how long a manually forced alarm stays on before auto-expiry.
	OverrideExpiry time.Duration `yaml:"override_expiry"`
	// DefaultTriggerLevel is the alarm threshold in centimeters used when no
	// prior state exists.
	DefaultTriggerLevel float64 `yaml:"default_trigger_level"`
	// Telegram carries bot credentials. Populated from the environment at
	// load time, never written to YAML.
	Telegram Telegram `yaml:"-"`
}

// Telegram holds bot credentials for the notification channel and the
// operator command interface. An empty token disables both.
type Telegram struct {
	// BotToken is the Telegram bot API token.
	BotToken string
	// ChatID is the chat that receives alarm notifications.
	ChatID int64
}

const (
	// DefaultConfigFilename is the default filename for service settings.
	DefaultConfigFilename = "sidogiri-settings.yaml"

	// DefaultSnapshotFilename is the default filename for the state snapshot JSON.
	DefaultSnapshotFilename = "sidogiri-state.json"

	// DefaultWorkbookFilename is the default filename for the durable log workbook.
	DefaultWorkbookFilename = "sidogiri-log.xlsx"

	// DefaultOverrideExpiry is how long a forced alarm stays on before it
	// expires on its own.
	DefaultOverrideExpiry = 4 * time.Minute

	// DefaultTriggerLevel is the threshold in centimeters used on first start.
	DefaultTriggerLevel = 50.0

	// HTTPTriggerMinimum is the exclusive lower bound enforced on trigger
	// levels set through the HTTP API.
	HTTPTriggerMinimum = 0.0

	// ChatTriggerMaximum is the inclusive upper bound enforced on trigger
	// levels set through the chat command interface. The HTTP path does not
	// enforce it; the two bounds are kept as separate knobs on purpose.
	ChatTriggerMaximum = 200.0

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// envBotToken and envChatID name the environment variables carrying
	// Telegram credentials.
	envBotToken = "TELEGRAM_BOT_TOKEN"
	envChatID   = "TELEGRAM_CHAT_ID"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when the listen address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
)

// Load reads configuration from the provided path, merges Telegram
// credentials from the environment and validates essential fields.
// A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// Credentials come from the environment so the YAML file stays shareable.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg.Telegram.BotToken = os.Getenv(envBotToken)

	if raw := os.Getenv(envChatID); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envChatID, err)
		}

		cfg.Telegram.ChatID = chatID
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if cfg.SnapshotFile == "" {
		cfg.SnapshotFile = DefaultSnapshotFilename
	}

	if cfg.WorkbookFile == "" {
		cfg.WorkbookFile = DefaultWorkbookFilename
	}

	if cfg.OverrideExpiry <= 0 {
		cfg.OverrideExpiry = DefaultOverrideExpiry
	}

	if cfg.DefaultTriggerLevel <= HTTPTriggerMinimum {
		cfg.DefaultTriggerLevel = DefaultTriggerLevel
	}

	return nil
}

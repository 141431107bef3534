package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/config"
	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/engine"
)

// usage strings sent back on malformed commands.
const (
	triggerUsage = "Usage: /settrigger <level>, where 0 < level <= 200 (centimeters)"
	alarmUsage   = "Usage: /alarm on|off"
	helpText     = "Commands: /status, /settrigger <cm>, /alarm on|off, /history"
)

// historyRows is how many recent log rows the /history command shows.
const historyRows = 5

// Commander translates chat commands into engine calls.
type Commander struct {
	engine *engine.Engine
}

// NewCommander wires the engine into the chat command interface.
func NewCommander(e *engine.Engine) *Commander {
	return &Commander{engine: e}
}

// Handle is the bot update handler: it answers every text message in place.
func (c *Commander) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	reply := c.Reply(ctx, update.Message.Text)

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   reply,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to answer chat command", "chat_id", update.Message.Chat.ID, "error", err)
	}
}

// Reply executes one command line and returns the answer text.
func (c *Commander) Reply(ctx context.Context, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return helpText
	}

	// Telegram appends "@botname" to commands in group chats.
	command, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch command {
	case "/status":
		return formatStatus(c.engine.Status(ctx))
	case "/settrigger":
		return c.setTrigger(ctx, fields[1:])
	case "/alarm":
		return c.forceAlarm(ctx, fields[1:])
	case "/history":
		return c.history(ctx)
	case "/help", "/start":
		return helpText
	default:
		return "Unknown command. " + helpText
	}
}

// setTrigger parses and applies a trigger-level change with the operator
// bound applied on top of the engine's own validation.
func (c *Commander) setTrigger(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return triggerUsage
	}

	level, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return triggerUsage
	}

	if level <= config.HTTPTriggerMinimum || level > config.ChatTriggerMaximum {
		return triggerUsage
	}

	outcome, err := c.engine.SetTrigger(ctx, level)
	if err != nil {
		return triggerUsage
	}

	answer := fmt.Sprintf("Trigger level set to %.1f cm", level)
	if !outcome.SheetLogged {
		answer += " (warning: audit log unavailable)"
	}

	return answer
}

// forceAlarm handles /alarm on|off.
func (c *Commander) forceAlarm(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return alarmUsage
	}

	switch strings.ToLower(args[0]) {
	case "on":
		c.engine.ForceAlarm(ctx, true)

		return fmt.Sprintf("Alarm forced ON. It turns off automatically in %s unless renewed.",
			c.engine.OverrideExpiry())
	case "off":
		c.engine.ForceAlarm(ctx, false)

		return "Alarm forced OFF."
	default:
		return alarmUsage
	}
}

// history renders the last few audit rows.
func (c *Commander) history(ctx context.Context) string {
	rows, err := c.engine.History(ctx, historyRows)
	if err != nil {
		return "History unavailable: the log store is not reachable."
	}

	if len(rows) == 0 {
		return "No log rows recorded this month yet."
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Last %d rows:\n", len(rows)))

	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s  %.1f cm  trigger %.1f  alarm %s  (%s)\n",
			row.Timestamp.UTC().Format("2006-01-02 15:04"),
			row.WaterLevel,
			row.TriggerLevel,
			row.AlarmStatus,
			row.NodeID))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// formatStatus renders the state snapshot for operators.
func formatStatus(state *domain.SystemState) string {
	alarm := "OFF"
	if state.AlarmActive {
		alarm = "ON"
	}

	lastReading := "never"
	if !state.LastReadingAt.IsZero() {
		lastReading = state.LastReadingAt.UTC().Format(time.RFC3339)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Water level: %.1f cm\n", state.CurrentWaterLevel))
	sb.WriteString(fmt.Sprintf("Trigger level: %.1f cm\n", state.TriggerLevel))
	sb.WriteString(fmt.Sprintf("Alarm: %s\n", alarm))

	if state.ManualOverride {
		sb.WriteString("Manual override: active\n")
	}

	if !state.AlarmStartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Alarm since: %s\n", state.AlarmStartedAt.UTC().Format(time.RFC3339)))
	}

	sb.WriteString(fmt.Sprintf("Last reading: %s\n", lastReading))
	sb.WriteString(fmt.Sprintf("Readings received: %d\n", state.ConnectionCount))

	if !state.LogStoreReady {
		sb.WriteString("Warning: log store unavailable\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/awssidogiri-web/AWS-Sidogiri/internal/domain/waterlevel"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/engine"
)

// historyRows is how many recent log rows the history endpoint returns.
const historyRows = 5

// Handler translates HTTP requests into engine calls.
type Handler struct {
	engine *engine.Engine
}

// NewHandler wires the engine into the HTTP handlers.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// readingRequest is the sensor ingestion payload.
type readingRequest struct {
	WaterLevel *float64 `json:"water_level" binding:"required"`
	NodeID     string   `json:"node_id"`
	ObservedAt string   `json:"observed_at"`
}

// triggerRequest is the threshold-change payload. Only the lower bound is
// enforced on this path.
type triggerRequest struct {
	Level *float64 `json:"level" binding:"required"`
}

// alarmRequest is the manual force payload.
type alarmRequest struct {
	On *bool `json:"on" binding:"required"`
}

// statusResponse mirrors the engine state for API consumers.
type statusResponse struct {
	CurrentWaterLevel float64 `json:"current_water_level"`
	TriggerLevel      float64 `json:"trigger_level"`
	AlarmActive       bool    `json:"alarm_active"`
	ManualOverride    bool    `json:"manual_override"`
	LastReadingAt     string  `json:"last_reading_at,omitempty"`
	AlarmStartedAt    string  `json:"alarm_started_at,omitempty"`
	ConnectionCount   int64   `json:"connection_count"`
	LogStoreReady     bool    `json:"log_store_ready"`
}

// toStatusResponse converts the domain state into its JSON shape.
func toStatusResponse(state *domain.SystemState) statusResponse {
	resp := statusResponse{
		CurrentWaterLevel: state.CurrentWaterLevel,
		TriggerLevel:      state.TriggerLevel,
		AlarmActive:       state.AlarmActive,
		ManualOverride:    state.ManualOverride,
		ConnectionCount:   state.ConnectionCount,
		LogStoreReady:     state.LogStoreReady,
	}

	if !state.LastReadingAt.IsZero() {
		resp.LastReadingAt = state.LastReadingAt.UTC().Format(time.RFC3339)
	}

	if !state.AlarmStartedAt.IsZero() {
		resp.AlarmStartedAt = state.AlarmStartedAt.UTC().Format(time.RFC3339)
	}

	return resp
}

// PostReading ingests one sensor reading. Valid readings are always accepted;
// a failed audit append only clears the sheets_logged flag.
func (h *Handler) PostReading(c *gin.Context) {
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: water_level is required"})

		return
	}

	reading := &domain.Reading{
		WaterLevel: *req.WaterLevel,
		NodeID:     req.NodeID,
	}

	if reading.NodeID == "" {
		reading.NodeID = "unknown"
	}

	if req.ObservedAt != "" {
		observedAt, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid observed_at: expected RFC3339 timestamp"})

			return
		}

		reading.ObservedAt = observedAt
	}

	outcome, err := h.engine.Ingest(c.Request.Context(), reading)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidReading) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		logger.ErrorKV(c.Request.Context(), "Ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted":      outcome.Accepted,
		"alarm_active":  outcome.AlarmActive,
		"sheets_logged": outcome.SheetLogged,
	})
}

// PostTrigger changes the alarm threshold.
func (h *Handler) PostTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: level is required"})

		return
	}

	outcome, err := h.engine.SetTrigger(c.Request.Context(), *req.Level)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidTrigger) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		logger.ErrorKV(c.Request.Context(), "Trigger change failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trigger change failed"})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"trigger_level": *req.Level,
		"sheets_logged": outcome.SheetLogged,
	})
}

// PostAlarm forces the alarm on or off.
func (h *Handler) PostAlarm(c *gin.Context) {
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: on is required"})

		return
	}

	outcome := h.engine.ForceAlarm(c.Request.Context(), *req.On)

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"alarm_active":  outcome.AlarmActive,
		"sheets_logged": outcome.SheetLogged,
	})
}

// GetStatus returns a snapshot of the system state.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResponse(h.engine.Status(c.Request.Context())))
}

// historyRow is the JSON shape of one audit row.
type historyRow struct {
	Timestamp    string  `json:"timestamp"`
	WaterLevel   float64 `json:"water_level"`
	TriggerLevel float64 `json:"trigger_level"`
	AlarmStatus  string  `json:"alarm_status"`
	NodeID       string  `json:"node_id"`
}

// GetHistory returns the last few audit rows of the current month.
func (h *Handler) GetHistory(c *gin.Context) {
	rows, err := h.engine.History(c.Request.Context(), historyRows)
	if err != nil {
		logger.ErrorKV(c.Request.Context(), "History query failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "log store unavailable"})

		return
	}

	result := make([]historyRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, historyRow{
			Timestamp:    row.Timestamp.UTC().Format(time.RFC3339),
			WaterLevel:   row.WaterLevel,
			TriggerLevel: row.TriggerLevel,
			AlarmStatus:  string(row.AlarmStatus),
			NodeID:       row.NodeID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"rows": result})
}

// Healthz reports liveness plus the durable log health flag.
func (h *Handler) Healthz(c *gin.Context) {
	state := h.engine.Status(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"log_store_ready": state.LogStoreReady,
	})
}

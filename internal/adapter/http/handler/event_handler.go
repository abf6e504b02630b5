package handler

import (
	"net/http"
	"time"

	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	streamBuffer    = 128
	streamHeartbeat = 15 * time.Second
)

// EventHandler serves the event journal.
type EventHandler struct {
	journal ports.JournalService
	stream  ports.EventStream
}

// NewEventHandler creates a new EventHandler. stream may be nil.
func NewEventHandler(journal ports.JournalService, stream ports.EventStream) *EventHandler {
	return &EventHandler{journal: journal, stream: stream}
}

// List handles GET /api/v1/events.
func (h *EventHandler) List(c *gin.Context) {
	var q dto.EventQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, apperror.Validation(err.Error()))
		return
	}

	events, err := h.journal.List(c.Request.Context(), q.Params())
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, dto.NewEventListResponse(events, q.After))
}

// Verify handles GET /api/v1/events/verify.
func (h *EventHandler) Verify(c *gin.Context) {
	report, err := h.journal.Verify(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, report)
}

// Stream handles GET /api/v1/events/stream: committed records matching the
// query filter as server-sent events, until the client disconnects. Earlier
// records are available from List.
func (h *EventHandler) Stream(c *gin.Context) {
	var q dto.EventQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, apperror.Validation(err.Error()))
		return
	}

	events, cancel := h.stream.Subscribe(q.Params().Filter, streamBuffer)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(event.Kind), event)
		}
		c.Writer.Flush()
	}
}

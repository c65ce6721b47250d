package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	streamBuffer = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// EventStream serves refinement events over websocket
type EventStream struct {
	hub      *EventHub
	logger   *zap.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
}

// NewEventStream creates a websocket endpoint backed by hub. allowedOrigins
// restricts browser origins; an empty list accepts any origin.
func NewEventStream(hub *EventHub, logger *zap.Logger, allowedOrigins []string) *EventStream {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &EventStream{
		hub:    hub,
		logger: logger,
		tracer: otel.Tracer("refinement-event-stream"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// StreamRefinements handles WebSocket /api/ws/workflows/:id/phases/:phaseId
// @Summary Stream refinement events
// @Description WebSocket endpoint streaming run_started, iteration_recorded and run_stopped events for a workflow phase.
// @Description Browsers may pass the JWT in the token query parameter.
// @Tags refinements
// @Param id path string true "Workflow ID"
// @Param phaseId path string true "Phase ID"
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/workflows/{id}/phases/{phaseId} [get]
func (s *EventStream) StreamRefinements(c *gin.Context) {
	workflowID := c.Param("id")
	phaseID := c.Param("phaseId")

	_, span := s.tracer.Start(c.Request.Context(), "event_stream.stream_refinements")
	span.SetAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("phase.id", phaseID),
	)
	defer span.End()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe(workflowID, phaseID, streamBuffer)
	defer unsubscribe()

	logger := s.logger.With(zap.String("workflow_id", workflowID), zap.String("phase_id", phaseID))
	logger.Info("Event stream opened")

	// The read loop only services control frames and notices the client leaving
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Event stream read ended", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Info("Event stream closed by client")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				logger.Warn("Failed to write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

func TestEventHub_RoutesByPhase(t *testing.T) {
	hub := NewEventHub()
	mine, unsubscribeMine := hub.Subscribe("wf-1", "ph-1", 4)
	defer unsubscribeMine()
	other, unsubscribeOther := hub.Subscribe("wf-1", "ph-2", 4)
	defer unsubscribeOther()

	hub.OnRefinementEvent(models.RefinementEvent{Type: models.EventTypeRunStarted, WorkflowID: "wf-1", PhaseID: "ph-1"})

	select {
	case event := <-mine:
		assert.Equal(t, models.EventTypeRunStarted, event.Type)
	default:
		t.Fatal("expected an event for ph-1")
	}
	assert.Empty(t, other)
}

func TestEventHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewEventHub()
	events, unsubscribe := hub.Subscribe("wf-1", "ph-1", 1)
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		hub.OnRefinementEvent(models.RefinementEvent{WorkflowID: "wf-1", PhaseID: "ph-1", Iteration: i + 1})
	}

	assert.Equal(t, int64(2), hub.Dropped())
	event := <-events
	assert.Equal(t, 1, event.Iteration)
}

func TestEventHub_Unsubscribe(t *testing.T) {
	hub := NewEventHub()
	events, unsubscribe := hub.Subscribe("wf-1", "ph-1", 1)
	assert.Equal(t, 1, hub.Subscribers("wf-1", "ph-1"))

	unsubscribe()
	unsubscribe()

	assert.Zero(t, hub.Subscribers("wf-1", "ph-1"))
	_, open := <-events
	assert.False(t, open)

	assert.NotPanics(t, func() {
		hub.OnRefinementEvent(models.RefinementEvent{WorkflowID: "wf-1", PhaseID: "ph-1"})
	})
}

func TestEventStream_DeliversEvents(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/workflows/wf-1/phases/ph-1?token=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.Subscribers("wf-1", "ph-1") == 1
	}, time.Second, 5*time.Millisecond)

	executionID := uuid.New()
	s.hub.OnRefinementEvent(models.RefinementEvent{
		Type:        models.EventTypeIterationRecorded,
		ExecutionID: executionID,
		WorkflowID:  "wf-1",
		PhaseID:     "ph-1",
		Iteration:   1,
		Text:        "refined",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.RefinementEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventTypeIterationRecorded, event.Type)
	assert.Equal(t, executionID, event.ExecutionID)
	assert.Equal(t, "refined", event.Text)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		return s.hub.Subscribers("wf-1", "ph-1") == 0
	}, time.Second, 5*time.Millisecond)
}

func TestEventStream_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/workflows/wf-1/phases/ph-1"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

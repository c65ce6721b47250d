package gateway

import (
	"sync"
	"sync/atomic"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// EventHub fans refinement events out to subscribers of a workflow phase.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu      sync.RWMutex
	subs    map[string]map[chan models.RefinementEvent]struct{}
	dropped atomic.Int64
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[chan models.RefinementEvent]struct{})}
}

func topic(workflowID, phaseID string) string {
	return workflowID + "/" + phaseID
}

// Subscribe registers for events of one workflow phase. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (h *EventHub) Subscribe(workflowID, phaseID string, buffer int) (<-chan models.RefinementEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.RefinementEvent, buffer)
	key := topic(workflowID, phaseID)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan models.RefinementEvent]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[key], ch)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// OnRefinementEvent publishes event to its phase subscribers
func (h *EventHub) OnRefinementEvent(event models.RefinementEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[topic(event.WorkflowID, event.PhaseID)] {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of subscribers for a workflow phase
func (h *EventHub) Subscribers(workflowID, phaseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic(workflowID, phaseID)])
}

// Dropped returns how many events were discarded for slow subscribers
func (h *EventHub) Dropped() int64 {
	return h.dropped.Load()
}

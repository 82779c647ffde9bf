// Package eventbus fans pipeline mutations out to live viewers. Topics are
// keyed by agent ("agent:<id>") or by manager ("manager:<id>") for
// aggregate views.
package eventbus

import (
	"sync"
	"time"
)

type EventType string

const (
	EventAgentUpdated   EventType = "agent.updated"
	EventStepCompleted  EventType = "step.completed"
	EventMessageCreated EventType = "message.created"
	EventActivityAdded  EventType = "activity.added"
)

const subscriberBuffer = 64

type Event struct {
	Type      EventType   `json:"type"`
	AgentID   string      `json:"agentId"`
	ManagerID string      `json:"managerId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

func AgentTopic(agentID string) string     { return "agent:" + agentID }
func ManagerTopic(managerID string) string { return "manager:" + managerID }

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
	// dropped counts events discarded because a subscriber was full.
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a buffered channel on topic. The returned cancel
// function unregisters and closes it; calling it twice is safe.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.topics[topic]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.topics, topic)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to the agent topic and, when ManagerID is set, to the
// manager topic. It never blocks: slow subscribers lose events.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.deliver(AgentTopic(e.AgentID), e)
	if e.ManagerID != "" {
		h.deliver(ManagerTopic(e.ManagerID), e)
	}
}

func (h *Hub) deliver(topic string, e Event) {
	for ch := range h.topics[topic] {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

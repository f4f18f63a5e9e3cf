// Package events implements the trading-domain event bus: a typed
// publish/subscribe mechanism used to fan window-clock, orchestrator,
// feed, and safety notifications out to any in-process listener (spec.md
// §4.E/§4.G).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event carried on the bus.
type EventType string

const (
	// Window clock (spec.md §4.E)
	WindowDiscovering EventType = "WINDOW_DISCOVERING"
	WindowOpen        EventType = "WINDOW_OPEN"
	WindowNearExpiry  EventType = "WINDOW_NEAR_EXPIRY"
	WindowSettling    EventType = "WINDOW_SETTLING"
	WindowSettled     EventType = "WINDOW_SETTLED"

	// Market feed (spec.md §4.B/§4.C/§4.D)
	FeedConnected    EventType = "FEED_CONNECTED"
	FeedDisconnected EventType = "FEED_DISCONNECTED"
	FeedStale        EventType = "FEED_STALE"
	OracleUpdated    EventType = "ORACLE_UPDATED"

	// Orchestrator (spec.md §4.G)
	SignalGenerated  EventType = "SIGNAL_GENERATED"
	GateRejected     EventType = "GATE_REJECTED"
	PositionOpened   EventType = "POSITION_OPENED"
	PositionClosed   EventType = "POSITION_CLOSED"
	OrderPlaced      EventType = "ORDER_PLACED"
	OrderRejected    EventType = "ORDER_REJECTED"
	InflightTimeout  EventType = "INFLIGHT_TIMEOUT"
	PositionRecovered EventType = "POSITION_RECOVERED"

	// Outcomes (spec.md §4.I)
	OutcomeLogged EventType = "OUTCOME_LOGGED"

	// Safety (spec.md §4.J)
	AutoStopTripped     EventType = "AUTO_STOP_TRIPPED"
	AutoStopReset       EventType = "AUTO_STOP_RESET"
	KillSwitchTriggered EventType = "KILL_SWITCH_TRIGGERED"
	SnapshotWritten     EventType = "SNAPSHOT_WRITTEN"

	// Cross-cutting
	ErrorOccurred       EventType = "ERROR_OCCURRED"
	ConfigReloaded      EventType = "CONFIG_RELOADED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
)

// Event is one occurrence published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Handler receives events a subscriber registered for.
type Handler func(*Event)

// Bus is an in-process publish/subscribe event dispatcher. Every publish is
// logged the way the teacher's events.Manager logged emissions; unlike that
// type, Bus also fans the event out to any subscribed in-process handlers,
// since
// the teacher's Manager never had subscribers to notify.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	log         zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers handler to be invoked for every published event of
// type eventType. Handlers run on their own goroutine per publish so a slow
// subscriber cannot block Publish or other subscribers.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish emits an event, logs it, and notifies subscribers of its type.
func (b *Bus) Publish(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("event published")

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(event)
	}
}

// PublishError is a convenience wrapper for reporting an error alongside its
// originating module and any structured context (e.g. a TradingError's
// Context map).
func (b *Bus) PublishError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{"error": err.Error()}
	for k, v := range context {
		data[k] = v
	}
	b.Publish(ErrorOccurred, module, data)
}

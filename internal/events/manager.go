package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager stamps and publishes events on a bus
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes an event scoped to an account
func (m *Manager) Emit(eventType EventType, module, accountID string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Module:    module,
		AccountID: accountID,
	}

	m.log.Debug().
		Str("type", string(eventType)).
		Str("module", module).
		Str("account_id", accountID).
		Msg("Event emitted")

	m.bus.Publish(event)
}

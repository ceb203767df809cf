/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventScheduleUpdated       EventType = "schedule.updated"
	EventImportStarted         EventType = "import.started"
	EventImportCompleted       EventType = "import.completed"
	EventImportFailed          EventType = "import.failed"
	EventRegistrationCreated   EventType = "registration.created"
	EventRegistrationCancelled EventType = "registration.cancelled"
	EventHealth                EventType = "health"

	// Audit events (for operations that need explicit audit logging)
	EventAuditAdminLogin     EventType = "audit.admin.login"
	EventAuditAdminCreate    EventType = "audit.admin.create"
	EventAuditCompanyChange  EventType = "audit.company.change"
	EventAuditShuttleChange  EventType = "audit.shuttle.change"
	EventAuditScheduleChange EventType = "audit.schedule.change"
	EventAuditImport         EventType = "audit.timetable.import"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber. The channel is left open: Publish
// sends outside the lock, so closing here could panic a concurrent send.
// An unreferenced channel is collected once the caller drops it.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
}

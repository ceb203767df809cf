/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestForwardOneSkipsRemotePayloads(t *testing.T) {
	var sent []bridgeMessage
	publish := func(msg bridgeMessage) error {
		sent = append(sent, msg)
		return nil
	}

	forwardOne(EventScheduleUpdated, Payload{"shuttle_id": "s1"}, "node-a", publish, zerolog.Nop())
	if len(sent) != 1 {
		t.Fatalf("local payload: expected 1 forwarded message, got %d", len(sent))
	}
	if sent[0].NodeID != "node-a" {
		t.Errorf("node id = %q, want node-a", sent[0].NodeID)
	}

	// Payloads replayed from the broker carry an origin marker and must
	// not be echoed back.
	forwardOne(EventScheduleUpdated, Payload{"shuttle_id": "s1", originKey: "node-b"}, "node-a", publish, zerolog.Nop())
	if len(sent) != 1 {
		t.Fatalf("remote payload: expected no additional forward, got %d", len(sent))
	}
}

func TestReplayRemote(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRegistrationCreated)
	defer bus.Unsubscribe(EventRegistrationCreated, sub)

	msg := bridgeMessage{
		EventType: EventRegistrationCreated,
		Payload:   Payload{"registration_id": "r1"},
		Timestamp: time.Now().UTC(),
		NodeID:    "node-b",
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	replayRemote(bus, "node-a", raw, zerolog.Nop())

	select {
	case payload := <-sub:
		if payload["registration_id"] != "r1" {
			t.Errorf("payload = %v, want registration_id r1", payload)
		}
		if payload[originKey] != "node-b" {
			t.Errorf("origin = %v, want node-b", payload[originKey])
		}
	default:
		t.Fatal("expected replayed event on local bus")
	}
}

func TestReplayRemoteDropsOwnMessages(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventScheduleUpdated)
	defer bus.Unsubscribe(EventScheduleUpdated, sub)

	raw, _ := json.Marshal(bridgeMessage{EventType: EventScheduleUpdated, NodeID: "node-a"})
	replayRemote(bus, "node-a", raw, zerolog.Nop())

	select {
	case <-sub:
		t.Fatal("own message must not be replayed")
	default:
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Bridge mirrors selected event types between the in-process bus and an
// external broker so multiple instances see each other's schedule changes
// and registrations. The local bus stays authoritative; the bridge only
// forwards and replays.
type Bridge interface {
	Start(ctx context.Context)
	Close() error
}

// bridgedTypes are the events other instances care about: cache
// invalidation and websocket fanout. Audit events stay local, each
// instance writes its own rows.
var bridgedTypes = []EventType{
	EventScheduleUpdated,
	EventRegistrationCreated,
	EventRegistrationCancelled,
	EventImportCompleted,
}

// originKey marks payloads that arrived from another instance so the
// forwarder does not echo them back to the broker.
const originKey = "_origin_node"

type bridgeMessage struct {
	EventType EventType `json:"event_type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

func newNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}

// forwardLocal subscribes to the bridged types on the local bus and hands
// every locally originated payload to publish. Runs until ctx is done.
func forwardLocal(ctx context.Context, bus *Bus, nodeID string, publish func(bridgeMessage) error, logger zerolog.Logger) {
	subs := make(map[EventType]Subscriber, len(bridgedTypes))
	for _, et := range bridgedTypes {
		subs[et] = bus.Subscribe(et)
	}
	defer func() {
		for et, sub := range subs {
			bus.Unsubscribe(et, sub)
		}
	}()

	// reflect.Select would also work here, but four static cases read
	// better and the bridged set changes rarely.
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-subs[EventScheduleUpdated]:
			forwardOne(EventScheduleUpdated, payload, nodeID, publish, logger)
		case payload := <-subs[EventRegistrationCreated]:
			forwardOne(EventRegistrationCreated, payload, nodeID, publish, logger)
		case payload := <-subs[EventRegistrationCancelled]:
			forwardOne(EventRegistrationCancelled, payload, nodeID, publish, logger)
		case payload := <-subs[EventImportCompleted]:
			forwardOne(EventImportCompleted, payload, nodeID, publish, logger)
		}
	}
}

func forwardOne(et EventType, payload Payload, nodeID string, publish func(bridgeMessage) error, logger zerolog.Logger) {
	if payload == nil {
		return
	}
	if _, remote := payload[originKey]; remote {
		return
	}
	msg := bridgeMessage{
		EventType: et,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
	}
	if err := publish(msg); err != nil {
		logger.Warn().Err(err).Str("event_type", string(et)).Msg("event bridge publish failed")
	}
}

// replayRemote re-publishes a broker message on the local bus, tagging the
// payload so it is not forwarded again.
func replayRemote(bus *Bus, nodeID string, raw []byte, logger zerolog.Logger) {
	var msg bridgeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn().Err(err).Msg("event bridge received malformed message")
		return
	}
	if msg.NodeID == nodeID {
		return
	}
	if msg.Payload == nil {
		msg.Payload = Payload{}
	}
	msg.Payload[originKey] = msg.NodeID
	bus.Publish(msg.EventType, msg.Payload)
}

// NATSBridge mirrors the bus over core NATS subjects
// ("shuttlehub.events.<type>").
type NATSBridge struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	bus    *Bus
	nodeID string
	logger zerolog.Logger
}

// NewNATSBridge connects to the NATS server. Reconnects are unlimited so a
// broker restart does not take the bridge down with it.
func NewNATSBridge(url string, bus *Bus, logger zerolog.Logger) (*NATSBridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSBridge{
		conn:   conn,
		bus:    bus,
		nodeID: newNodeID(),
		logger: logger.With().Str("component", "event_bridge").Str("backend", "nats").Logger(),
	}, nil
}

func (b *NATSBridge) Start(ctx context.Context) {
	sub, err := b.conn.Subscribe("shuttlehub.events.>", func(m *nats.Msg) {
		replayRemote(b.bus, b.nodeID, m.Data, b.logger)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("nats subscribe failed, bridge inbound disabled")
	} else {
		b.sub = sub
	}

	b.logger.Info().Str("node_id", b.nodeID).Msg("event bridge started")
	forwardLocal(ctx, b.bus, b.nodeID, func(msg bridgeMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return b.conn.Publish("shuttlehub.events."+string(msg.EventType), data)
	}, b.logger)
}

func (b *NATSBridge) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}

// RedisBridge mirrors the bus over a Redis pub/sub channel. Useful when a
// deployment already runs Redis for the timetable cache and does not want
// a second broker.
type RedisBridge struct {
	client *redis.Client
	bus    *Bus
	nodeID string
	logger zerolog.Logger
}

const redisEventChannel = "shuttlehub:events"

func NewRedisBridge(addr, password string, db int, bus *Bus, logger zerolog.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisBridge{
		client: client,
		bus:    bus,
		nodeID: newNodeID(),
		logger: logger.With().Str("component", "event_bridge").Str("backend", "redis").Logger(),
	}, nil
}

func (b *RedisBridge) Start(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, redisEventChannel)
	defer pubsub.Close()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				replayRemote(b.bus, b.nodeID, []byte(m.Payload), b.logger)
			}
		}
	}()

	b.logger.Info().Str("node_id", b.nodeID).Msg("event bridge started")
	forwardLocal(ctx, b.bus, b.nodeID, func(msg bridgeMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return b.client.Publish(ctx, redisEventChannel, data).Err()
	}, b.logger)
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}

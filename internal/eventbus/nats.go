/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/events"
)

// natsSubjectPrefix namespaces cueplay events on a shared NATS server.
const natsSubjectPrefix = "cueplay.events."

// NATSBus fans events out over core NATS subjects. The client library owns
// reconnection; when the server is unreachable at startup the bus runs in
// local-only mode.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	nodeID string

	mu       sync.RWMutex
	subs     map[events.EventType][]events.Subscriber
	natsSubs map[events.EventType]*nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		logger:   logger.With().Str("component", "eventbus-nats").Logger(),
		nodeID:   nodeID,
		subs:     make(map[events.EventType][]events.Subscriber),
		natsSubs: make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("cueplay-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			nb.logger.Info().Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", cfg.URL).Msg("nats unreachable, events stay local")
		return nb, nil
	}
	nb.conn = conn

	nb.logger.Info().Str("url", cfg.URL).Msg("nats event bus initialized")
	return nb, nil
}

// Subscribe registers a subscriber for an event type. The channel receives
// both local events and events relayed from other nodes.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	sub := make(events.Subscriber, 100)
	nb.subs[eventType] = append(nb.subs[eventType], sub)

	if nb.conn != nil {
		nb.ensureSubscriptionLocked(eventType)
	}
	return sub
}

// ensureSubscriptionLocked opens the NATS subject subscription once per
// event type.
func (nb *NATSBus) ensureSubscriptionLocked(eventType events.EventType) {
	if _, exists := nb.natsSubs[eventType]; exists {
		return
	}
	subject := natsSubjectPrefix + string(eventType)
	natsSub, err := nb.conn.Subscribe(subject, func(m *nats.Msg) {
		msg, err := unmarshalNATSMessage(m.Data)
		if err != nil {
			nb.logger.Error().Err(err).Str("subject", subject).Msg("failed to unmarshal nats message")
			return
		}
		// Own-node events were already delivered at publish time.
		if msg.NodeID == nb.nodeID {
			return
		}
		nb.deliverLocal(eventType, msg.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", subject).Msg("nats subscribe failed")
		return
	}
	nb.natsSubs[eventType] = natsSub
}

// deliverLocal hands the payload to every local subscriber without blocking.
// Delivery holds the read lock; Unsubscribe closes channels under the write
// lock, so a send never hits a closed channel.
func (nb *NATSBus) deliverLocal(eventType events.EventType, payload events.Payload) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	for _, sub := range nb.subs[eventType] {
		select {
		case sub <- payload:
		default:
			nb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
		}
	}
}

// Publish delivers the event to local subscribers and relays it to other
// nodes over NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.deliverLocal(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal nats message")
		return
	}

	subject := natsSubjectPrefix + string(eventType)
	if err := nb.conn.Publish(subject, data); err != nil {
		nb.logger.Error().Err(err).Str("subject", subject).Msg("failed to publish to nats")
	}
}

// Unsubscribe removes a subscriber and closes its channel. The NATS subject
// subscription is torn down with the last subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	subs := nb.subs[eventType]
	for i, s := range subs {
		if s == sub {
			nb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(nb.subs[eventType]) == 0 {
		if natsSub, exists := nb.natsSubs[eventType]; exists {
			_ = natsSub.Unsubscribe()
			delete(nb.natsSubs, eventType)
			nb.logger.Debug().Str("event_type", string(eventType)).Msg("closed nats subscription")
		}
	}
}

// Close tears down all subscriptions and drains the connection.
func (nb *NATSBus) Close() error {
	nb.mu.Lock()
	for eventType, natsSub := range nb.natsSubs {
		_ = natsSub.Unsubscribe()
		delete(nb.natsSubs, eventType)
	}
	nb.mu.Unlock()

	if nb.conn != nil {
		if err := nb.conn.Drain(); err != nil {
			nb.conn.Close()
			return err
		}
	}
	return nil
}

// natsMessage is the cross-node event envelope. MessageID lets consumers
// that persist events deduplicate redeliveries.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

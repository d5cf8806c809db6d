/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/events"
)

// RedisBus fans events out over Redis pub/sub so every console following a
// show sees the same playback stream. Local subscribers are always delivered
// directly; the Redis leg only carries events between nodes.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	nodeID string

	mu       sync.RWMutex
	subs     map[events.EventType][]events.Subscriber
	channels map[events.EventType]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Circuit breaker state
	useFallback   bool
	failCount     int
	maxFails      int
	lastCheck     time.Time
	checkInterval time.Duration
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Connection pooling
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// NewRedisBus creates a Redis-backed event bus. When Redis is unreachable
// the bus starts in local-only mode and retries on later publishes.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	rb := &RedisBus{
		client:        client,
		logger:        logger.With().Str("component", "eventbus-redis").Logger(),
		nodeID:        nodeID,
		maxFails:      cfg.MaxFailures,
		checkInterval: cfg.CheckInterval,
		subs:          make(map[events.EventType][]events.Subscriber),
		channels:      make(map[events.EventType]*redis.PubSub),
		ctx:           ctx,
		cancel:        cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, events stay local")
		rb.useFallback = true
		rb.lastCheck = time.Now()
		return rb, nil
	}

	rb.logger.Info().Str("addr", cfg.Addr).Msg("redis event bus initialized")
	return rb, nil
}

// Subscribe registers a subscriber for an event type. The channel receives
// both local events and events relayed from other nodes.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	sub := make(events.Subscriber, 100)
	rb.subs[eventType] = append(rb.subs[eventType], sub)

	if !rb.useFallback {
		rb.ensureChannelLocked(eventType)
	}
	return sub
}

// ensureChannelLocked opens the Redis subscription for an event type once.
func (rb *RedisBus) ensureChannelLocked(eventType events.EventType) {
	if _, exists := rb.channels[eventType]; exists {
		return
	}
	pubsub := rb.client.Subscribe(rb.ctx, string(eventType))
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.receiveMessages(eventType, pubsub)
}

// receiveMessages relays events published by other nodes to local
// subscribers. Own-node events are skipped; they were delivered directly at
// publish time.
func (rb *RedisBus) receiveMessages(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	rb.logger.Debug().Str("event_type", string(eventType)).Msg("redis receiver started")

	for {
		select {
		case <-rb.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				rb.logger.Warn().Str("event_type", string(eventType)).Msg("redis channel closed")
				rb.handleFailure()
				return
			}

			wireMsg, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal redis message")
				continue
			}
			if wireMsg.NodeID == rb.nodeID {
				continue
			}

			rb.deliverLocal(eventType, wireMsg.Payload)
		}
	}
}

// deliverLocal hands the payload to every local subscriber without blocking.
// Delivery holds the read lock; Unsubscribe closes channels under the write
// lock, so a send never hits a closed channel.
func (rb *RedisBus) deliverLocal(eventType events.EventType, payload events.Payload) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	for _, sub := range rb.subs[eventType] {
		select {
		case sub <- payload:
		default:
			rb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
		}
	}
}

// Publish delivers the event to local subscribers and relays it to other
// nodes over Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.deliverLocal(eventType, payload)

	rb.mu.RLock()
	fallback := rb.useFallback
	rb.mu.RUnlock()
	if fallback {
		if err := rb.tryReconnect(); err != nil {
			return
		}
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()

	if err := rb.client.Publish(ctx, string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a subscriber and closes its channel. The Redis
// subscription for the event type is torn down with the last subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	subs := rb.subs[eventType]
	for i, s := range subs {
		if s == sub {
			rb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(rb.subs[eventType]) == 0 {
		if pubsub, exists := rb.channels[eventType]; exists {
			_ = pubsub.Close()
			delete(rb.channels, eventType)
			rb.logger.Debug().Str("event_type", string(eventType)).Msg("closed redis subscription")
		}
	}
}

// Close shuts down all subscriptions and the Redis connection.
func (rb *RedisBus) Close() error {
	rb.cancel()
	rb.wg.Wait()

	rb.mu.Lock()
	for eventType, pubsub := range rb.channels {
		_ = pubsub.Close()
		rb.logger.Debug().Str("event_type", string(eventType)).Msg("closed redis pub/sub")
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	if rb.client != nil {
		if err := rb.client.Close(); err != nil && err != redis.ErrClosed {
			return err
		}
	}
	return nil
}

// handleFailure trips the circuit breaker after repeated Redis errors.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().
			Int("fail_count", rb.failCount).
			Msg("redis failure threshold reached, events stay local")
		rb.useFallback = true
		rb.lastCheck = time.Now()
	}
}

// tryReconnect probes Redis at most once per check interval while the
// breaker is open. A successful ping closes the breaker and re-opens the
// relay subscriptions.
func (rb *RedisBus) tryReconnect() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.useFallback {
		return nil
	}
	if time.Since(rb.lastCheck) < rb.checkInterval {
		return fmt.Errorf("too soon to retry")
	}
	rb.lastCheck = time.Now()

	ctx, cancel := context.WithTimeout(rb.ctx, 5*time.Second)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis still unavailable: %w", err)
	}

	rb.useFallback = false
	rb.failCount = 0
	for eventType := range rb.subs {
		if len(rb.subs[eventType]) > 0 {
			rb.ensureChannelLocked(eventType)
		}
	}

	rb.logger.Info().Msg("reconnected to redis")
	return nil
}

// wireMessage is the cross-node event envelope.
type wireMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := wireMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	}
	return json.Marshal(msg)
}

func unmarshalMessage(data []byte) (*wireMessage, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal redis message: %w", err)
	}
	return &msg, nil
}

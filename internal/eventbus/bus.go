/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus provides the pluggable event fan-out: in-process for a
// single booth machine, Redis or NATS when several consoles and displays
// follow the same show.
package eventbus

import (
	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/events"
)

// Bus is the pub/sub contract every backend satisfies. Delivery is
// best-effort: slow subscribers drop events rather than stall the show.
type Bus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
	Publish(eventType events.EventType, payload events.Payload)
	Close() error
}

// memoryBus adapts the in-process bus to the backend contract.
type memoryBus struct {
	inner *events.Bus
}

// NewMemoryBus creates the single-process backend.
func NewMemoryBus() Bus {
	return &memoryBus{inner: events.NewBus()}
}

func (m *memoryBus) Subscribe(eventType events.EventType) events.Subscriber {
	return m.inner.Subscribe(eventType)
}

func (m *memoryBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	m.inner.Unsubscribe(eventType, sub)
}

func (m *memoryBus) Publish(eventType events.EventType, payload events.Payload) {
	m.inner.Publish(eventType, payload)
}

func (m *memoryBus) Close() error { return nil }

// New builds the backend named by the configuration. Redis and NATS degrade
// to local-only delivery when their server is unreachable, so a missing
// broker never blocks a show from starting.
func New(cfg *config.Config, logger zerolog.Logger) (Bus, error) {
	switch cfg.EventBus {
	case config.EventBusRedis:
		rcfg := DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB
		return NewRedisBus(rcfg, cfg.InstanceID, logger)
	case config.EventBusNATS:
		ncfg := DefaultNATSConfig()
		ncfg.URL = cfg.NATSURL
		return NewNATSBus(ncfg, cfg.InstanceID, logger)
	default:
		return NewMemoryBus(), nil
	}
}

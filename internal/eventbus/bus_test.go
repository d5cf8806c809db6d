package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/config"
	"github.com/showctl/cueplay/internal/events"
)

func receiveOne(t *testing.T, sub events.Subscriber, what string) events.Payload {
	t.Helper()
	select {
	case payload := <-sub:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestMemoryBusRoundTrip(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	sub := bus.Subscribe(events.EventSongFinished)
	bus.Publish(events.EventSongFinished, events.Payload{"file": "opener.mp3"})

	payload := receiveOne(t, sub, "song finished event")
	if payload["file"] != "opener.mp3" {
		t.Errorf("payload = %v", payload)
	}

	bus.Unsubscribe(events.EventSongFinished, sub)
	if _, open := <-sub; open {
		t.Error("expected subscriber channel to be closed after unsubscribe")
	}
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	cfg := &config.Config{EventBus: config.EventBusMemory}
	bus, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer bus.Close()

	if _, ok := bus.(*memoryBus); !ok {
		t.Fatalf("New() returned %T, want *memoryBus", bus)
	}
}

func TestRedisBusLocalOnlyWhenUnreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	// Nothing listens on this port; the constructor must degrade, not fail.
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond

	bus, err := NewRedisBus(cfg, "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus() error = %v", err)
	}
	defer bus.Close()

	if !bus.useFallback {
		t.Fatal("expected local-only mode with no redis server")
	}

	sub := bus.Subscribe(events.EventHaltCompleted)
	bus.Publish(events.EventHaltCompleted, events.Payload{"reason": "operator"})

	payload := receiveOne(t, sub, "halt completed event")
	if payload["reason"] != "operator" {
		t.Errorf("payload = %v", payload)
	}

	bus.Unsubscribe(events.EventHaltCompleted, sub)
	if _, open := <-sub; open {
		t.Error("expected subscriber channel to be closed after unsubscribe")
	}
}

func TestRedisBusReconnectProbeIsRateLimited(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.CheckInterval = time.Hour

	bus, err := NewRedisBus(cfg, "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus() error = %v", err)
	}
	defer bus.Close()

	// The constructor just probed; the next probe must be refused instead
	// of dialing the dead server again.
	if err := bus.tryReconnect(); err == nil {
		t.Error("expected rate-limited reconnect to return an error")
	}
}

func TestNATSBusLocalOnlyWhenUnreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 100 * time.Millisecond

	bus, err := NewNATSBus(cfg, "node-a", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewNATSBus() error = %v", err)
	}
	defer bus.Close()

	if bus.conn != nil {
		t.Fatal("expected no connection with no nats server")
	}

	sub := bus.Subscribe(events.EventPlaylistAdvanced)
	bus.Publish(events.EventPlaylistAdvanced, events.Payload{"index": 2})

	payload := receiveOne(t, sub, "playlist advanced event")
	if payload["index"] != 2 {
		t.Errorf("payload = %v", payload)
	}
}

func TestWireMessageCarriesNodeIdentity(t *testing.T) {
	data, err := marshalMessage(events.EventPlaybackStarted, events.Payload{"file": "act2.mp3"}, "booth-1")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.NodeID != "booth-1" {
		t.Errorf("node id = %q, want %q", msg.NodeID, "booth-1")
	}
	if msg.EventType != events.EventPlaybackStarted {
		t.Errorf("event type = %q", msg.EventType)
	}
	if msg.Payload["file"] != "act2.mp3" {
		t.Errorf("payload = %v", msg.Payload)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected a populated timestamp")
	}
}

func TestNATSMessageHasUniqueID(t *testing.T) {
	first, err := marshalNATSMessage(events.EventSongFailed, events.Payload{}, "booth-1")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := marshalNATSMessage(events.EventSongFailed, events.Payload{}, "booth-1")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	a, err := unmarshalNATSMessage(first)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := unmarshalNATSMessage(second)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.MessageID == "" || a.MessageID == b.MessageID {
		t.Errorf("message ids not unique: %q vs %q", a.MessageID, b.MessageID)
	}
}

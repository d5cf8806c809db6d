/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventPlaybackStarted  EventType = "playback.started"
	EventPlaybackStopped  EventType = "playback.stopped"
	EventPlaybackPosition EventType = "playback.position"
	EventSongFinished     EventType = "song.finished"
	EventSongFailed       EventType = "song.failed"
	EventHaltStarted      EventType = "halt.started"
	EventHaltCompleted    EventType = "halt.completed"

	// Playlist lifecycle events
	EventPlaylistLoaded    EventType = "playlist.loaded"
	EventPlaylistSaved     EventType = "playlist.saved"
	EventPlaylistAdvanced  EventType = "playlist.advanced"
	EventPlaylistCompleted EventType = "playlist.completed"

	// Remote command channel events
	EventRemoteCommand EventType = "remote.command"
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

// Publish sends payload to subscribers. Delivery holds the read lock and
// Unsubscribe closes channels under the write lock, so a send never hits a
// closed channel. The non-blocking send keeps the hold time bounded.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
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
	close(sub)
}

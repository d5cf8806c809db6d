package events

import (
	"sync"
	"testing"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	first := b.Subscribe(EventSongFinished)
	second := b.Subscribe(EventSongFinished)
	other := b.Subscribe(EventHaltStarted)

	b.Publish(EventSongFinished, Payload{"index": 3})

	for _, sub := range []Subscriber{first, second} {
		select {
		case p := <-sub:
			if p["index"] != 3 {
				t.Fatalf("payload = %v", p)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}

	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber received %v", p)
	default:
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventPlaybackPosition)

	// Flood past the channel capacity; Publish must not block.
	for i := 0; i < 50; i++ {
		b.Publish(EventPlaybackPosition, Payload{"position": float64(i)})
	}

	received := 0
	for {
		select {
		case <-sub:
			received++
			continue
		default:
		}
		break
	}
	if received != cap(sub) {
		t.Fatalf("received %d events, want channel capacity %d", received, cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventPlaylistLoaded)
	b.Unsubscribe(EventPlaylistLoaded, sub)

	if _, open := <-sub; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	b.Publish(EventPlaylistLoaded, Payload{})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(EventRemoteCommand)
			b.Unsubscribe(EventRemoteCommand, sub)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Publish(EventRemoteCommand, Payload{"command": "AdvanceSong"})
			}
		}()
	}
	wg.Wait()
}

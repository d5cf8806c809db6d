package audio

import (
	"sync"
	"testing"
	"time"
)

func TestScheduleLiveTracksGenerations(t *testing.T) {
	var sched schedule

	sched.arm(slotFadeStart, time.Hour, func(uint64) {})
	if !sched.live(slotFadeStart, 1) {
		t.Error("first armed generation should be live")
	}

	sched.arm(slotFadeStart, time.Hour, func(uint64) {})
	if sched.live(slotFadeStart, 1) {
		t.Error("re-arming must invalidate the previous generation")
	}
	if !sched.live(slotFadeStart, 2) {
		t.Error("second armed generation should be live")
	}

	sched.cancel(slotFadeStart)
	if sched.live(slotFadeStart, 2) {
		t.Error("cancel must invalidate the live generation")
	}
	sched.cancelAll()
}

func TestScheduleSlotsAreIndependent(t *testing.T) {
	var sched schedule

	sched.arm(slotFadeStart, time.Hour, func(uint64) {})
	sched.arm(slotSongEnd, time.Hour, func(uint64) {})
	sched.cancel(slotFadeStart)

	if sched.live(slotFadeStart, 1) {
		t.Error("cancelled slot should not be live")
	}
	if !sched.live(slotSongEnd, 1) {
		t.Error("cancelling one slot must not touch another")
	}
	sched.cancelAll()
}

func TestScheduleCancelledTimerObservesStaleGeneration(t *testing.T) {
	var mu sync.Mutex
	var sched schedule
	fired := make(chan struct{}, 1)

	mu.Lock()
	sched.arm(slotSongEnd, 5*time.Millisecond, func(gen uint64) {
		mu.Lock()
		if sched.live(slotSongEnd, gen) {
			fired <- struct{}{}
		}
		mu.Unlock()
	})
	sched.cancel(slotSongEnd)
	mu.Unlock()

	select {
	case <-fired:
		t.Fatal("cancelled timer ran its body with a live generation")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduleFires(t *testing.T) {
	var mu sync.Mutex
	var sched schedule
	fired := make(chan uint64, 1)

	mu.Lock()
	sched.arm(slotPositionPoll, time.Millisecond, func(gen uint64) {
		mu.Lock()
		if sched.live(slotPositionPoll, gen) {
			fired <- gen
		}
		mu.Unlock()
	})
	mu.Unlock()

	select {
	case gen := <-fired:
		if gen != 1 {
			t.Errorf("fired generation = %d, want 1", gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("armed timer never fired")
	}
	sched.cancelAll()
}

func TestSlotString(t *testing.T) {
	tests := []struct {
		sl   slot
		want string
	}{
		{slotFadeStart, "fade-start"},
		{slotSongEnd, "song-end"},
		{slotPositionPoll, "position-poll"},
		{slotFadeStep, "fade-step"},
		{slotHaltStep, "halt-step"},
	}
	for _, tt := range tests {
		if got := tt.sl.String(); got != tt.want {
			t.Errorf("slot(%d).String() = %q, want %q", tt.sl, got, tt.want)
		}
	}
}

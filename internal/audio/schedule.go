/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "time"

// slot names one logical timer purpose. Each slot holds at most one live
// handle; arming a slot invalidates whatever was there before.
type slot int

const (
	slotFadeStart slot = iota
	slotSongEnd
	slotPositionPoll
	slotFadeStep
	slotHaltStep
	slotCount
)

func (s slot) String() string {
	switch s {
	case slotFadeStart:
		return "fade-start"
	case slotSongEnd:
		return "song-end"
	case slotPositionPoll:
		return "position-poll"
	case slotFadeStep:
		return "fade-step"
	case slotHaltStep:
		return "halt-step"
	default:
		return "unknown"
	}
}

// schedule tracks the engine's outstanding timers by slot. Every method must
// be called with the engine mutex held; staleness of a fired timer is
// decided by comparing the generation captured at arm time against the
// slot's current generation, under that same mutex.
//
// Cancellation is therefore synchronous with respect to engine operations:
// once a canceling operation returns, a previously armed callback can still
// fire, but it will observe a stale generation and do nothing.
type schedule struct {
	timers [slotCount]*time.Timer
	gens   [slotCount]uint64
}

// arm schedules fire to run after d, replacing any live handle in the slot.
// fire receives the generation it must present to run.
func (s *schedule) arm(sl slot, d time.Duration, fire func(gen uint64)) {
	s.gens[sl]++
	gen := s.gens[sl]
	if t := s.timers[sl]; t != nil {
		t.Stop()
	}
	s.timers[sl] = time.AfterFunc(d, func() { fire(gen) })
}

// cancel invalidates the slot. Cancelling an empty or already-fired slot is
// a no-op.
func (s *schedule) cancel(sl slot) {
	s.gens[sl]++
	if t := s.timers[sl]; t != nil {
		t.Stop()
		s.timers[sl] = nil
	}
}

// cancelAll invalidates every slot.
func (s *schedule) cancelAll() {
	for sl := slot(0); sl < slotCount; sl++ {
		s.cancel(sl)
	}
}

// live reports whether a fired timer's generation is still current.
func (s *schedule) live(sl slot, gen uint64) bool {
	return s.gens[sl] == gen
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "time"

// sessionPosition computes the position within the media file for the
// current session state. Pure function: all inputs are explicit, no device
// access.
//
// Playing and Halting sessions advance with the wall clock from the offset
// accumulated at the last (re)start; a paused session is frozen at its
// captured offset; anything else reads as position zero.
func sessionPosition(s *session, now time.Time) float64 {
	if s == nil {
		return 0
	}
	switch {
	case s.status == StatusPlaying || s.status == StatusHalting:
		return s.accumulatedOffset + now.Sub(s.startedAt).Seconds()
	case s.status == StatusPaused && s.hasPausedOffset:
		return s.pausedOffset
	default:
		return 0
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "time"

// FadeKind distinguishes the two volume ramps the engine runs.
type FadeKind int

const (
	// NaturalFadeOut is the snappy ramp scheduled to finish just as a song
	// reaches its end time.
	NaturalFadeOut FadeKind = iota
	// HaltFadeOut is the longer, smoother ramp used when an operator halts
	// playback mid-song.
	HaltFadeOut
)

func (k FadeKind) String() string {
	switch k {
	case NaturalFadeOut:
		return "natural"
	case HaltFadeOut:
		return "halt"
	default:
		return "unknown"
	}
}

// FadeTuning sets the shape of one ramp kind.
type FadeTuning struct {
	Steps    int
	Duration time.Duration
}

// fadeSequence is one live volume ramp to zero. At most one exists at a
// time; a new fade or any stop/halt replaces it wholesale. Both fade kinds
// share this one linear descent: stepSize is fixed when the sequence starts,
// so the final step always lands on exactly zero.
type fadeSequence struct {
	kind          FadeKind
	stepCount     int
	stepSize      float64
	interval      time.Duration
	currentVolume float64
	stepsDone     int
	cancelled     bool
}

func newFadeSequence(kind FadeKind, startVolume float64, tuning FadeTuning) *fadeSequence {
	return &fadeSequence{
		kind:          kind,
		stepCount:     tuning.Steps,
		stepSize:      startVolume / float64(tuning.Steps),
		interval:      tuning.Duration / time.Duration(tuning.Steps),
		currentVolume: startVolume,
	}
}

// advance moves the ramp one step down and reports the volume to write and
// whether the ramp is finished. Volume never goes below zero, and a
// finished ramp has always written exactly zero last.
func (f *fadeSequence) advance() (volume float64, done bool) {
	f.stepsDone++
	next := f.currentVolume - f.stepSize
	// The last step lands on zero exactly; repeated subtraction would
	// otherwise leave a float residue audible as a non-silent final write.
	if next < 0 || f.stepsDone >= f.stepCount {
		next = 0
	}
	f.currentVolume = next
	return next, next <= 0 || f.stepsDone >= f.stepCount
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audio contains the playback engine: transport state machine, fade
// sequencing, position clock, and timer scheduling over a single shared
// audio output device.
package audio

import "errors"

// ErrNoMedia is returned by Play when no file has been loaded.
var ErrNoMedia = errors.New("no media loaded")

// Backend abstracts the audio output device. Implementations own decoding
// and the device handle; the engine owns all transport and volume decisions.
// Only one component (the engine) may drive a backend at a time.
type Backend interface {
	// Load prepares a media file for playback without starting it. Loading
	// replaces any previously loaded media and silences the device.
	Load(path string) error

	// Play starts playback of the loaded media at startOffset seconds from
	// the beginning of the file.
	Play(startOffset float64) error

	// Pause suspends playback; Resume continues it in place. Both are no-ops
	// when nothing is playing.
	Pause()
	Resume()

	// Stop ends playback but keeps the loaded media, so a later Play call
	// restarts it without reloading.
	Stop()

	// SetVolume sets the playback level, clamped into [0.0, 1.0].
	SetVolume(level float64)

	// IsBusy reports whether the device has started the loaded media and not
	// yet reached its end or been stopped.
	IsBusy() bool

	// Close releases the loaded media and device resources.
	Close() error
}

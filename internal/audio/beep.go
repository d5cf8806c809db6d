/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
)

// The speaker is a process-wide device; it is initialized once with the
// sample rate of the first loaded file and later files are resampled to it.
var (
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// BeepBackend drives the sound card through gopxl/beep. One instance per
// process.
type BeepBackend struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	// done is closed by the speaker callback when the queued streamer
	// completes. The callback runs on the speaker goroutine and must not
	// take mu; Pause and SetVolume hold mu while taking the speaker lock.
	done chan struct{}
}

var _ Backend = (*BeepBackend)(nil)

// NewBeepBackend creates the device backend.
func NewBeepBackend(logger zerolog.Logger) *BeepBackend {
	return &BeepBackend{
		logger: logger.With().Str("component", "audio-device").Logger(),
		level:  1.0,
	}
}

// Load decodes the file header and prepares a streamer. Any currently
// loaded media is stopped and released first.
func (b *BeepBackend) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.releaseLocked()

	f, err := os.Open(path)
	if err != nil {
		return err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return fmt.Errorf("unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	if !speakerInitialized {
		speakerSampleRate = format.SampleRate
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			f.Close()
			return fmt.Errorf("init speaker: %w", err)
		}
		speakerInitialized = true
	}

	b.file = f
	b.streamer = streamer
	b.format = format
	b.logger.Debug().Str("file", filepath.Base(path)).
		Int("sample_rate", int(format.SampleRate)).
		Msg("media loaded")
	return nil
}

// Play starts the loaded media at startOffset seconds.
func (b *BeepBackend) Play(startOffset float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return ErrNoMedia
	}

	b.stopLocked()

	pos := b.format.SampleRate.N(time.Duration(startOffset * float64(time.Second)))
	if pos < 0 {
		pos = 0
	}
	if max := b.streamer.Len(); pos > max {
		pos = max
	}
	if err := b.streamer.Seek(pos); err != nil {
		return fmt.Errorf("seek to %.3fs: %w", startOffset, err)
	}

	var playStreamer beep.Streamer = b.streamer
	if b.format.SampleRate != speakerSampleRate {
		playStreamer = beep.Resample(4, b.format.SampleRate, speakerSampleRate, b.streamer)
	}
	b.ctrl = &beep.Ctrl{Streamer: playStreamer}
	b.volume = &effects.Volume{
		Streamer: b.ctrl,
		Base:     2,
		Volume:   levelToVolume(b.level),
		Silent:   b.level <= 0,
	}

	done := make(chan struct{})
	b.done = done

	speaker.Play(beep.Seq(b.volume, beep.Callback(func() {
		close(done)
	})))
	return nil
}

// Pause suspends playback in place.
func (b *BeepBackend) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return
	}
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
}

// Resume continues paused playback.
func (b *BeepBackend) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return
	}
	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
}

// Stop ends playback; the loaded media stays available for another Play.
func (b *BeepBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

// SetVolume applies a 0..1 level to the device.
func (b *BeepBackend) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
	if b.volume == nil {
		return
	}
	speaker.Lock()
	b.volume.Volume = levelToVolume(level)
	b.volume.Silent = level <= 0
	speaker.Unlock()
}

// IsBusy reports whether the loaded media has started and not yet finished.
func (b *BeepBackend) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Close stops playback and releases the loaded media.
func (b *BeepBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.releaseLocked()
	return nil
}

func (b *BeepBackend) stopLocked() {
	if b.ctrl == nil && b.done == nil {
		return
	}
	// Clearing the queue drops the pending finish callback with it.
	b.done = nil
	b.ctrl = nil
	b.volume = nil
	if speakerInitialized {
		speaker.Clear()
	}
}

func (b *BeepBackend) releaseLocked() {
	if b.streamer != nil {
		b.streamer.Close()
		b.streamer = nil
	}
	if b.file != nil {
		b.file.Close()
		b.file = nil
	}
}

// levelToVolume converts a 0..1 level to beep's base-2 logarithmic volume:
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2; at or below 0 the stream is silenced.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

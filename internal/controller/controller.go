/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package controller ties the playlist, the audio engine, play history and
// the event bus into the show-control surface. A show is driven end to end
// by AdvanceSong commands; nothing advances on its own when a song finishes.
package controller

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/showctl/cueplay/internal/audio"
	"github.com/showctl/cueplay/internal/eventbus"
	"github.com/showctl/cueplay/internal/events"
	"github.com/showctl/cueplay/internal/history"
	"github.com/showctl/cueplay/internal/playlist"
	"github.com/showctl/cueplay/internal/remote"
	"github.com/showctl/cueplay/internal/telemetry"
)

// CommandAdvanceSong is the only command the show-control socket accepts.
const CommandAdvanceSong = "AdvanceSong"

// positionEventInterval throttles playback.position events; position zero is
// always published because it marks the end of a preview.
const positionEventInterval = 250 * time.Millisecond

type stagedEvent struct {
	eventType events.EventType
	payload   events.Payload
}

// Controller owns the playlist and the engine. All public methods are safe
// for concurrent use; the show-control listener and the status API call in
// from different goroutines.
type Controller struct {
	mu        sync.Mutex
	engine    *audio.Engine
	playlist  *playlist.Playlist
	bus       eventbus.Bus
	history   *history.Service
	mediaRoot string
	logger    zerolog.Logger

	statusLine string
	listenAddr string
	record     *history.PlayRecord

	// Events staged under mu and published after it is released, so a slow
	// distributed bus never stalls a show-control command.
	pending []stagedEvent

	posMu        sync.Mutex
	lastPosEvent time.Time
}

// New builds a controller and the engine it drives. The history service may
// be nil when recording is disabled; the bus may be nil in bare tests.
func New(backend audio.Backend, bus eventbus.Bus, hist *history.Service, mediaRoot string, tuning audio.Tuning, logger zerolog.Logger) *Controller {
	c := &Controller{
		playlist:   playlist.New(),
		bus:        bus,
		history:    hist,
		mediaRoot:  mediaRoot,
		logger:     logger.With().Str("component", "controller").Logger(),
		statusLine: "Ready",
	}
	c.engine = audio.New(backend, c, logger, audio.WithTuning(tuning))
	return c
}

// BindRemote registers the show-control command set on the listener.
func (c *Controller) BindRemote(l *remote.Listener) {
	l.Register(CommandAdvanceSong, func() {
		telemetry.RemoteCommands.WithLabelValues(CommandAdvanceSong).Inc()
		c.publish(events.EventRemoteCommand, events.Payload{"command": CommandAdvanceSong})
		c.AdvanceSong()
	})
}

// SetListenAddr records the bound show-control address for status readers.
func (c *Controller) SetListenAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenAddr = addr
}

// AdvanceSong moves to the next cue and plays it. A cue that fails to start
// is recorded as failed and skipped. Past the last cue the cursor rewinds,
// playback stops and playlist.completed is published.
func (c *Controller) AdvanceSong() {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.Len() == 0 {
		c.logger.Info().Msg("advance requested with empty playlist")
		c.setStatusLocked("Playlist is empty")
		return
	}

	for {
		song, ok := c.playlist.AdvanceToNext()
		if !ok {
			c.finishOpenRecordLocked(history.OutcomeStopped)
			c.engine.StopPlayback()
			c.syncGaugesLocked()
			c.setStatusLocked("Playlist completed")
			c.stageLocked(events.EventPlaylistCompleted, events.Payload{"songs": c.playlist.Len()})
			return
		}
		index := c.playlist.CurrentIndex()
		c.stageLocked(events.EventPlaylistAdvanced, events.Payload{"index": index, "file": song.FilePath})
		if err := c.startSongLocked(song, index); err == nil {
			return
		}
	}
}

// PlayFrom jumps the cursor to index and plays that cue. Unlike AdvanceSong
// a start failure is reported to the caller instead of skipping onward.
func (c *Controller) PlayFrom(index int) error {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	song, ok := c.playlist.Get(index)
	if !ok {
		return fmt.Errorf("playlist index %d out of range", index)
	}
	c.playlist.SetCurrentIndex(index)
	return c.startSongLocked(song, index)
}

// StopPlaylist cuts playback without a fade and rewinds the cursor.
func (c *Controller) StopPlaylist() {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.countStoppedSessionLocked()
	c.finishOpenRecordLocked(history.OutcomeStopped)
	c.engine.StopPlayback()
	c.playlist.ResetCursor()
	c.syncGaugesLocked()
	telemetry.PlaybackPosition.Set(0)
	c.setStatusLocked("Playlist stopped")
	c.stageLocked(events.EventPlaybackStopped, events.Payload{"reason": "stopped"})
}

// HaltMusic starts the emergency fade. A no-op unless something is playing.
func (c *Controller) HaltMusic() {
	defer c.flushEvents()
	c.mu.Lock()
	if c.engine.Status() != audio.StatusPlaying {
		c.mu.Unlock()
		c.logger.Debug().Msg("halt ignored, nothing playing")
		return
	}
	c.setStatusLocked("Halting")
	telemetry.FadesStarted.WithLabelValues(audio.HaltFadeOut.String()).Inc()
	c.stageLocked(events.EventHaltStarted, events.Payload{"volume": c.engine.Snapshot().Volume})
	c.mu.Unlock()

	// A halt from device volume zero completes on its first step and
	// re-enters OnHaltCompleted on this goroutine, so the lock is released
	// before the engine call.
	c.engine.HaltMusic()
	telemetry.EngineState.Set(float64(c.engine.Status()))
}

// PreviewLoad opens a media file for auditioning.
func (c *Controller) PreviewLoad(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.LoadFile(c.resolvePath(path)); err != nil {
		c.setStatusLocked("Preview load failed")
		return err
	}
	c.setStatusLocked(fmt.Sprintf("Loaded %s", filepath.Base(path)))
	return nil
}

// PreviewPlay auditions the loaded file from start to end seconds. With
// resume set, playback continues from a previously paused position instead.
func (c *Controller) PreviewPlay(start, end float64, resume bool) error {
	defer c.flushEvents()
	if end <= start {
		return fmt.Errorf("preview range invalid: end %.3f must be greater than start %.3f", end, start)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.PlayPreview(start, end, resume); err != nil {
		return err
	}
	telemetry.SessionsStarted.WithLabelValues(audio.ModePreview.String()).Inc()
	c.syncGaugesLocked()
	c.setStatusLocked("Previewing")
	c.stageLocked(events.EventPlaybackStarted, events.Payload{
		"mode":  audio.ModePreview.String(),
		"start": start,
		"end":   end,
	})
	return nil
}

// PreviewPause toggles the preview between playing and paused.
func (c *Controller) PreviewPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engine.PausePreview()
	c.syncGaugesLocked()
	switch c.engine.Status() {
	case audio.StatusPaused:
		c.setStatusLocked("Preview paused")
	case audio.StatusPlaying:
		c.setStatusLocked("Previewing")
	}
}

// PreviewStop ends the preview. No-op while a playlist song is live.
func (c *Controller) PreviewStop() {
	defer c.flushEvents()

	// StopPreview reports position zero synchronously on this goroutine,
	// which publishes to the bus, so the lock is not held around it.
	before := c.engine.Status()
	c.engine.StopPreview()
	if before == audio.StatusStopped || c.engine.Status() != audio.StatusStopped {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncGaugesLocked()
	telemetry.PlaybackPosition.Set(0)
	c.setStatusLocked("Preview stopped")
	c.stageLocked(events.EventPlaybackStopped, events.Payload{"reason": "preview"})
}

// LoadPlaylist replaces the playlist from a JSON file and rewinds the cursor.
func (c *Controller) LoadPlaylist(path string) error {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.playlist.LoadFile(path); err != nil {
		return err
	}
	c.syncGaugesLocked()
	c.setStatusLocked(fmt.Sprintf("Loaded playlist (%d songs)", c.playlist.Len()))
	c.stageLocked(events.EventPlaylistLoaded, events.Payload{"path": path, "songs": c.playlist.Len()})
	c.logger.Info().Str("path", path).Int("songs", c.playlist.Len()).Msg("playlist loaded")
	return nil
}

// SavePlaylist writes the playlist to a JSON file.
func (c *Controller) SavePlaylist(path string) error {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.playlist.SaveFile(path); err != nil {
		return err
	}
	c.stageLocked(events.EventPlaylistSaved, events.Payload{"path": path, "songs": c.playlist.Len()})
	c.logger.Info().Str("path", path).Int("songs", c.playlist.Len()).Msg("playlist saved")
	return nil
}

// AddSong appends a cue to the playlist.
func (c *Controller) AddSong(song playlist.Song) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.Add(song)
	c.syncGaugesLocked()
}

// Songs returns a copy of the playlist contents.
func (c *Controller) Songs() []playlist.Song {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.Songs()
}

// SetSongVolume updates one cue's volume. Reports whether index was in range.
func (c *Controller) SetSongVolume(index int, volume float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.SetVolume(index, volume)
}

// NormalizeVolumes sets every cue to the same volume.
func (c *Controller) NormalizeVolumes(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.NormalizeVolumes(volume)
}

// SongSummary describes the cue under the cursor in a status report.
type SongSummary struct {
	Index    int     `json:"index"`
	File     string  `json:"file"`
	Page     int     `json:"page"`
	Comment  string  `json:"comment,omitempty"`
	Duration float64 `json:"duration"`
}

// Status is the controller's public snapshot, served by the status API.
type Status struct {
	State        string       `json:"state"`
	Mode         string       `json:"mode,omitempty"`
	Position     float64      `json:"position"`
	Volume       float64      `json:"volume"`
	PlaylistLen  int          `json:"playlist_len"`
	CurrentIndex int          `json:"current_index"`
	CurrentSong  *SongSummary `json:"current_song,omitempty"`
	ListenAddr   string       `json:"listen_addr,omitempty"`
	LastEvent    string       `json:"last_event,omitempty"`
}

// Status reports the current transport and playlist state.
func (c *Controller) Status() Status {
	snap := c.engine.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:        snap.Status.String(),
		Position:     snap.Position,
		Volume:       snap.Volume,
		PlaylistLen:  c.playlist.Len(),
		CurrentIndex: c.playlist.CurrentIndex(),
		ListenAddr:   c.listenAddr,
		LastEvent:    c.statusLine,
	}
	if snap.Active {
		st.Mode = snap.Mode.String()
	}
	if song, ok := c.playlist.Current(); ok {
		st.CurrentSong = &SongSummary{
			Index:    c.playlist.CurrentIndex(),
			File:     song.FilePath,
			Page:     song.Page,
			Comment:  song.Comment,
			Duration: song.Duration(),
		}
	}
	return st
}

// Close stops playback and releases the engine. An interrupted session is
// recorded as stopped.
func (c *Controller) Close() error {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.countStoppedSessionLocked()
	c.finishOpenRecordLocked(history.OutcomeStopped)
	err := c.engine.Close()
	c.syncGaugesLocked()
	return err
}

// --- audio.Hooks ---

// OnPosition relays preview positions to the bus, throttled. It deliberately
// takes no controller lock: the engine can deliver it synchronously from a
// controller call that already holds it.
func (c *Controller) OnPosition(seconds float64) {
	telemetry.PlaybackPosition.Set(seconds)

	c.posMu.Lock()
	now := time.Now()
	if seconds != 0 && now.Sub(c.lastPosEvent) < positionEventInterval {
		c.posMu.Unlock()
		return
	}
	c.lastPosEvent = now
	c.posMu.Unlock()

	c.publish(events.EventPlaybackPosition, events.Payload{"position": seconds})
}

// OnSongFinished records the natural end of a song. Progression stays with
// the show-control socket; the next song is not started here.
func (c *Controller) OnSongFinished() {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	// A finish that raced a replacement play refers to the previous cue;
	// the live session wins.
	if c.engine.Status() != audio.StatusStopped {
		return
	}

	index := c.playlist.CurrentIndex()
	song, _ := c.playlist.Current()
	c.finishOpenRecordLocked(history.OutcomeFinished)
	telemetry.SessionsEnded.WithLabelValues(string(history.OutcomeFinished)).Inc()
	telemetry.FadesStarted.WithLabelValues(audio.NaturalFadeOut.String()).Inc()
	c.syncGaugesLocked()
	telemetry.PlaybackPosition.Set(0)
	c.setStatusLocked("Waiting for AdvanceSong")
	c.stageLocked(events.EventSongFinished, events.Payload{"index": index, "file": song.FilePath})
	c.logger.Info().Int("index", index).Str("file", song.Filename()).Msg("song finished, waiting for AdvanceSong")
}

// OnHaltCompleted records the end of an emergency fade.
func (c *Controller) OnHaltCompleted() {
	defer c.flushEvents()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine.Status() != audio.StatusStopped {
		return
	}

	c.finishOpenRecordLocked(history.OutcomeHalted)
	telemetry.SessionsEnded.WithLabelValues(string(history.OutcomeHalted)).Inc()
	c.syncGaugesLocked()
	telemetry.PlaybackPosition.Set(0)
	c.setStatusLocked("Halt completed")
	c.stageLocked(events.EventHaltCompleted, events.Payload{})
	c.logger.Info().Msg("halt completed")
}

// --- internals ---

// startSongLocked cuts any live session and starts the given cue. On failure
// the cue is recorded as failed and the error returned.
func (c *Controller) startSongLocked(song playlist.Song, index int) error {
	c.countStoppedSessionLocked()
	c.finishOpenRecordLocked(history.OutcomeStopped)

	if err := song.Validate(); err != nil {
		c.songStartFailedLocked(song, index, err)
		return err
	}
	if err := c.engine.LoadFile(c.resolvePath(song.FilePath)); err != nil {
		c.songStartFailedLocked(song, index, err)
		return err
	}
	cue := audio.Cue{Start: song.StartTime, End: song.EndTime, Volume: song.Volume}
	if err := c.engine.PlaySong(cue); err != nil {
		c.songStartFailedLocked(song, index, err)
		return err
	}

	c.beginRecordLocked(song, index)
	telemetry.SessionsStarted.WithLabelValues(audio.ModeFullSong.String()).Inc()
	c.syncGaugesLocked()
	c.setStatusLocked(fmt.Sprintf("Playing %s", song.Filename()))
	c.stageLocked(events.EventPlaybackStarted, events.Payload{
		"mode":  audio.ModeFullSong.String(),
		"index": index,
		"file":  song.FilePath,
		"page":  song.Page,
	})
	c.logger.Info().Int("index", index).Str("file", song.Filename()).
		Float64("start", song.StartTime).Float64("end", song.EndTime).
		Float64("volume", song.Volume).Msg("song started")
	return nil
}

func (c *Controller) songStartFailedLocked(song playlist.Song, index int, err error) {
	c.logger.Error().Err(err).Int("index", index).Str("file", song.FilePath).Msg("song failed to start")
	telemetry.SessionsEnded.WithLabelValues(string(history.OutcomeFailed)).Inc()
	c.recordFailureLocked(song, index)
	c.syncGaugesLocked()
	c.setStatusLocked(fmt.Sprintf("Failed to start %s", song.Filename()))
	c.stageLocked(events.EventSongFailed, events.Payload{
		"index": index,
		"file":  song.FilePath,
		"error": err.Error(),
	})
}

// countStoppedSessionLocked bumps the ended counter when a live full-song
// session is about to be cut. Finished, halted and failed endings are
// counted at their own sites.
func (c *Controller) countStoppedSessionLocked() {
	snap := c.engine.Snapshot()
	if snap.Active && snap.Mode == audio.ModeFullSong && snap.Status != audio.StatusStopped {
		telemetry.SessionsEnded.WithLabelValues(string(history.OutcomeStopped)).Inc()
	}
}

func (c *Controller) beginRecordLocked(song playlist.Song, index int) {
	if c.history == nil {
		return
	}
	rec, err := c.history.Begin(context.Background(), song, index)
	if err != nil {
		c.logger.Error().Err(err).Msg("record play start")
		return
	}
	c.record = rec
}

func (c *Controller) finishOpenRecordLocked(outcome history.Outcome) {
	if c.record == nil {
		return
	}
	rec := c.record
	c.record = nil
	if c.history == nil {
		return
	}
	if err := c.history.Finish(context.Background(), rec, outcome); err != nil {
		c.logger.Error().Err(err).Str("outcome", string(outcome)).Msg("record play end")
	}
}

func (c *Controller) recordFailureLocked(song playlist.Song, index int) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordFailure(context.Background(), song, index); err != nil {
		c.logger.Error().Err(err).Msg("record play failure")
	}
}

func (c *Controller) setStatusLocked(line string) {
	c.statusLine = line
}

func (c *Controller) syncGaugesLocked() {
	telemetry.EngineState.Set(float64(c.engine.Status()))
	telemetry.PlaylistCursor.Set(float64(c.playlist.CurrentIndex()))
	telemetry.PlaylistSongs.Set(float64(c.playlist.Len()))
}

func (c *Controller) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.mediaRoot == "" {
		return path
	}
	return filepath.Join(c.mediaRoot, path)
}

// stageLocked queues an event for publication after the lock is released.
func (c *Controller) stageLocked(eventType events.EventType, payload events.Payload) {
	c.pending = append(c.pending, stagedEvent{eventType: eventType, payload: payload})
}

func (c *Controller) flushEvents() {
	c.mu.Lock()
	staged := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ev := range staged {
		c.publish(ev.eventType, ev.payload)
	}
}

func (c *Controller) publish(eventType events.EventType, payload events.Payload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventType, payload)
}

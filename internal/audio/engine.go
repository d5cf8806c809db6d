/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the transport state of the current session.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
	StatusHalting
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusHalting:
		return "halting"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON snapshots.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode distinguishes the two playback session kinds.
type Mode int

const (
	// ModePreview is a manual audition of an arbitrary segment.
	ModePreview Mode = iota
	// ModeFullSong is timed playlist playback with fade and end scheduling.
	ModeFullSong
)

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeFullSong:
		return "full-song"
	default:
		return "unknown"
	}
}

// MarshalText renders the mode by name in JSON snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Cue is the slice of a media file a full-song session plays: from Start to
// End seconds at the song's base Volume. End > Start is validated by the
// caller before the cue reaches the engine.
type Cue struct {
	Start  float64
	End    float64
	Volume float64
}

// Hooks is the engine's outbound callback contract. Implementations may
// call back into the engine: hooks are always invoked outside the engine's
// internal lock, on the goroutine whose operation or timer triggered them.
type Hooks interface {
	// OnPosition reports the media position during preview polling, and
	// zero when a preview stops.
	OnPosition(seconds float64)
	// OnSongFinished fires when a full-song session reaches its end
	// naturally, not via halt.
	OnSongFinished()
	// OnHaltCompleted fires exactly once when a halt fade has brought the
	// volume to zero and stopped the transport.
	OnHaltCompleted()
}

// NopHooks discards every notification.
type NopHooks struct{}

func (NopHooks) OnPosition(float64) {}
func (NopHooks) OnSongFinished()    {}
func (NopHooks) OnHaltCompleted()   {}

// session is one playback run, preview or full-song. It is replaced
// wholesale on each play call, never mutated into a new run.
type session struct {
	mode          Mode
	baseVolume    float64
	startPosition float64
	endPosition   float64

	startedAt         time.Time
	accumulatedOffset float64
	status            Status

	// Paused offset presence is explicit; a preview legitimately paused at
	// position zero still resumes correctly.
	pausedOffset    float64
	hasPausedOffset bool
}

// Tuning sets the fade shapes and the preview poll cadence.
type Tuning struct {
	NaturalFade  FadeTuning
	HaltFade     FadeTuning
	PollInterval time.Duration
}

// DefaultTuning returns the production timing: a snappy 0.5s/20-step end-of
// -song fade, a graceful 1s/40-step halt fade, and 10ms position polling.
func DefaultTuning() Tuning {
	return Tuning{
		NaturalFade:  FadeTuning{Steps: 20, Duration: 500 * time.Millisecond},
		HaltFade:     FadeTuning{Steps: 40, Duration: time.Second},
		PollInterval: 10 * time.Millisecond,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithTuning overrides fade and poll timing. Non-positive values fall back
// to the defaults.
func WithTuning(t Tuning) Option {
	return func(e *Engine) { e.tuning = t }
}

// WithClock overrides the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the audio device and all playback timing. One mutex serializes
// every state mutation and device write; timer callbacks re-check their
// generation under that mutex before acting, so a cancelled timer that fires
// anyway can never write onto a newer session.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	hooks   Hooks
	logger  zerolog.Logger
	now     func() time.Time
	tuning  Tuning

	sched   schedule
	session *session
	fade    *fadeSequence

	// Last level written to the device. The engine is the device's only
	// volume writer, so this is authoritative; halt fades start from it.
	deviceVolume float64
}

// New creates an engine over the given backend. A nil hooks value is
// replaced with NopHooks.
func New(backend Backend, hooks Hooks, logger zerolog.Logger, opts ...Option) *Engine {
	if hooks == nil {
		hooks = NopHooks{}
	}
	e := &Engine{
		backend:      backend,
		hooks:        hooks,
		logger:       logger.With().Str("component", "audio-engine").Logger(),
		now:          time.Now,
		tuning:       DefaultTuning(),
		deviceVolume: 1.0,
	}
	for _, opt := range opts {
		opt(e)
	}

	def := DefaultTuning()
	if e.tuning.NaturalFade.Steps <= 0 || e.tuning.NaturalFade.Duration <= 0 {
		e.tuning.NaturalFade = def.NaturalFade
	}
	if e.tuning.HaltFade.Steps <= 0 || e.tuning.HaltFade.Duration <= 0 {
		e.tuning.HaltFade = def.HaltFade
	}
	if e.tuning.PollInterval <= 0 {
		e.tuning.PollInterval = def.PollInterval
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// LoadFile prepares a media file on the device. Errors surface to the
// caller; the engine's transport state is unchanged.
func (e *Engine) LoadFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.backend.Load(path); err != nil {
		return fmt.Errorf("load media: %w", err)
	}
	return nil
}

// PlayPreview auditions the loaded media from start to end seconds at full
// volume. With resume set and a paused preview offset recorded, playback
// begins at that offset instead and the offset is cleared.
func (e *Engine) PlayPreview(start, end float64, resume bool) error {
	e.mu.Lock()

	begin := start
	if resume {
		if s := e.session; s != nil && s.mode == ModePreview && s.hasPausedOffset {
			begin = s.pausedOffset
		}
	}

	e.sched.cancelAll()
	e.cancelFadeLocked()
	e.setDeviceVolumeLocked(1.0)
	if err := e.backend.Play(begin); err != nil {
		e.session = nil
		e.mu.Unlock()
		return fmt.Errorf("start preview: %w", err)
	}

	e.session = &session{
		mode:              ModePreview,
		baseVolume:        1.0,
		startPosition:     start,
		endPosition:       end,
		startedAt:         e.now(),
		accumulatedOffset: begin,
		status:            StatusPlaying,
	}
	e.armPositionPollLocked()
	e.logger.Info().Float64("from", begin).Float64("until", end).Msg("preview started")
	e.mu.Unlock()
	return nil
}

// PausePreview toggles a preview between playing and paused. Pausing
// freezes the position at its captured offset; the second call resumes in
// place and the position continues climbing from there. No-op unless a
// preview session is live.
func (e *Engine) PausePreview() {
	e.mu.Lock()
	s := e.session
	switch {
	case s != nil && s.mode == ModePreview && s.status == StatusPlaying:
		s.pausedOffset = sessionPosition(s, e.now())
		s.hasPausedOffset = true
		s.status = StatusPaused
		e.sched.cancel(slotPositionPoll)
		e.backend.Pause()
		e.logger.Debug().Float64("at", s.pausedOffset).Msg("preview paused")

	case s != nil && s.mode == ModePreview && s.status == StatusPaused:
		s.accumulatedOffset = s.pausedOffset
		s.startedAt = e.now()
		s.hasPausedOffset = false
		s.status = StatusPlaying
		e.backend.Resume()
		e.armPositionPollLocked()
		e.logger.Debug().Float64("at", s.accumulatedOffset).Msg("preview resumed")
	}
	e.mu.Unlock()
}

// StopPreview ends a preview session: device stopped, volume restored to
// full, paused offset discarded, and a zero position emitted so displays
// reset. No-op when no preview session exists.
func (e *Engine) StopPreview() {
	e.mu.Lock()
	after := e.stopPreviewLocked()
	e.mu.Unlock()
	if after != nil {
		after()
	}
}

// PlaySong starts a timed full-song session from the cue: device volume set
// to the song's base volume, playback from cue.Start, a natural fade-out
// scheduled to finish as the cue ends, and the end-of-song transition
// scheduled at exactly the cue duration. Any prior session's schedules are
// cancelled first.
func (e *Engine) PlaySong(cue Cue) error {
	e.mu.Lock()

	e.sched.cancelAll()
	e.cancelFadeLocked()
	e.setDeviceVolumeLocked(cue.Volume)
	if err := e.backend.Play(cue.Start); err != nil {
		e.session = nil
		e.setDeviceVolumeLocked(1.0)
		e.mu.Unlock()
		return fmt.Errorf("start song: %w", err)
	}

	e.session = &session{
		mode:              ModeFullSong,
		baseVolume:        cue.Volume,
		startPosition:     cue.Start,
		endPosition:       cue.End,
		startedAt:         e.now(),
		accumulatedOffset: cue.Start,
		status:            StatusPlaying,
	}

	duration := secondsToDuration(cue.End - cue.Start)
	fadeDelay := duration - e.tuning.NaturalFade.Duration
	if fadeDelay < 0 {
		fadeDelay = 0
	}
	e.afterSlot(slotFadeStart, fadeDelay, e.fadeStartFired)
	e.afterSlot(slotSongEnd, duration, e.songEndFired)

	e.logger.Info().
		Float64("start", cue.Start).
		Float64("end", cue.End).
		Float64("volume", cue.Volume).
		Msg("song started")
	e.mu.Unlock()
	return nil
}

// HaltMusic begins an operator halt: the graceful fade from whatever volume
// is playing right now, then transport stop, volume reset, and a single
// halt-completed notification. No-op unless the session is Playing, so a
// second call during the fade does nothing.
func (e *Engine) HaltMusic() {
	e.mu.Lock()
	s := e.session
	if s == nil || s.status != StatusPlaying {
		e.mu.Unlock()
		return
	}

	e.sched.cancelAll()
	e.cancelFadeLocked()
	s.status = StatusHalting
	from := e.deviceVolume
	e.logger.Info().Float64("from_volume", from).Msg("halt started")
	after := e.startFadeLocked(HaltFadeOut, from, e.haltFinished)
	e.mu.Unlock()
	if after != nil {
		after()
	}
}

// StopPlayback cancels every schedule and fade, stops the device, resets
// volume to full, and leaves the engine Stopped. Safe to call in any state.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	had := e.session != nil
	e.sched.cancelAll()
	e.cancelFadeLocked()
	e.backend.Stop()
	e.setDeviceVolumeLocked(1.0)
	e.session = nil
	if had {
		e.logger.Info().Msg("playback stopped")
	}
	e.mu.Unlock()
}

// Position returns the current media position in seconds: elapsed for a
// playing session, the frozen offset for a paused one, zero otherwise.
func (e *Engine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sessionPosition(e.session, e.now())
}

// Status returns the transport state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return StatusStopped
	}
	return e.session.status
}

// Snapshot is a point-in-time view for status surfaces.
type Snapshot struct {
	Status   Status  `json:"status"`
	Mode     Mode    `json:"mode"`
	Active   bool    `json:"active"`
	Position float64 `json:"position"`
	Volume   float64 `json:"volume"`
}

// Snapshot captures the engine state for observability readers.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{Status: StatusStopped, Volume: e.deviceVolume}
	if s := e.session; s != nil {
		snap.Status = s.status
		snap.Mode = s.mode
		snap.Active = true
		snap.Position = sessionPosition(s, e.now())
	}
	return snap
}

// Close stops playback and cancels all timers. The backend is owned by the
// caller and closed separately.
func (e *Engine) Close() error {
	e.StopPlayback()
	return nil
}

// --- timer plumbing ---

// afterSlot arms a slot to run body after d. The body runs under the engine
// mutex only if its generation is still live, and may return a notification
// to deliver after the mutex is released.
func (e *Engine) afterSlot(sl slot, d time.Duration, body func() func()) {
	e.sched.arm(sl, d, func(gen uint64) {
		e.runSlot(sl, gen, body)
	})
}

func (e *Engine) runSlot(sl slot, gen uint64, body func() func()) {
	e.mu.Lock()
	if !e.sched.live(sl, gen) {
		e.mu.Unlock()
		return
	}
	after := body()
	e.mu.Unlock()
	if after == nil {
		return
	}
	// Hook implementations are external code running on a timer goroutine;
	// a panic here must not take the process down.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Stringer("slot", sl).Msg("hook panicked")
		}
	}()
	after()
}

// --- position polling (preview sessions) ---

func (e *Engine) armPositionPollLocked() {
	e.afterSlot(slotPositionPoll, e.tuning.PollInterval, e.pollTick)
}

// pollTick re-reads the position each interval, reports it, and auto-stops
// the preview once it reaches the end of its window or the device reports
// the media ended on its own.
func (e *Engine) pollTick() func() {
	s := e.session
	if s == nil || s.mode != ModePreview || s.status != StatusPlaying {
		return nil
	}
	pos := sessionPosition(s, e.now())
	if pos >= s.endPosition || !e.backend.IsBusy() {
		return e.stopPreviewLocked()
	}
	e.armPositionPollLocked()
	return func() { e.hooks.OnPosition(pos) }
}

func (e *Engine) stopPreviewLocked() func() {
	s := e.session
	if s == nil || s.mode != ModePreview {
		return nil
	}
	e.sched.cancelAll()
	e.cancelFadeLocked()
	e.backend.Stop()
	e.setDeviceVolumeLocked(1.0)
	e.session = nil
	e.logger.Info().Msg("preview stopped")
	return func() { e.hooks.OnPosition(0) }
}

// --- full-song schedule bodies ---

// fadeStartFired begins the natural fade-out. The status check closes the
// race where a halt starts in the same instant this timer fires: a Halting
// session must never gain a second, competing fade.
func (e *Engine) fadeStartFired() func() {
	s := e.session
	if s == nil || s.mode != ModeFullSong || s.status != StatusPlaying {
		return nil
	}
	return e.startFadeLocked(NaturalFadeOut, s.baseVolume, nil)
}

// songEndFired completes a full-song session. During a halt it is a no-op;
// the halt fade owns the termination.
func (e *Engine) songEndFired() func() {
	s := e.session
	if s == nil || s.mode != ModeFullSong || s.status == StatusHalting {
		return nil
	}
	e.sched.cancelAll()
	e.cancelFadeLocked()
	e.backend.Stop()
	e.setDeviceVolumeLocked(1.0)
	e.session = nil
	e.logger.Info().Msg("song finished")
	return func() { e.hooks.OnSongFinished() }
}

func (e *Engine) haltFinished() func() {
	e.sched.cancelAll()
	e.backend.Stop()
	e.setDeviceVolumeLocked(1.0)
	e.session = nil
	e.logger.Info().Msg("halt completed")
	return func() { e.hooks.OnHaltCompleted() }
}

// --- fade sequencing ---

// startFadeLocked replaces any live fade with a fresh sequence and commits
// its first step immediately. Returns a notification to deliver outside the
// lock, non-nil only when the ramp completed on its first step.
func (e *Engine) startFadeLocked(kind FadeKind, from float64, onDone func() func()) func() {
	tuning := e.tuning.NaturalFade
	sl := slotFadeStep
	if kind == HaltFadeOut {
		tuning = e.tuning.HaltFade
		sl = slotHaltStep
	}
	seq := newFadeSequence(kind, from, tuning)
	e.fade = seq
	e.logger.Debug().
		Stringer("kind", kind).
		Float64("from", from).
		Int("steps", seq.stepCount).
		Msg("fade started")
	return e.fadeStep(seq, sl, onDone)
}

// fadeStep commits one ramp step to the device and re-arms the slot for the
// next. The cancelled flag is read before any device write; a superseded
// sequence does nothing.
func (e *Engine) fadeStep(seq *fadeSequence, sl slot, onDone func() func()) func() {
	if seq.cancelled || e.fade != seq {
		return nil
	}
	volume, done := seq.advance()
	e.setDeviceVolumeLocked(volume)
	if !done {
		e.afterSlot(sl, seq.interval, func() func() { return e.fadeStep(seq, sl, onDone) })
		return nil
	}
	e.fade = nil
	e.logger.Debug().Stringer("kind", seq.kind).Msg("fade completed")
	if onDone != nil {
		return onDone()
	}
	return nil
}

// cancelFadeLocked invalidates the live fade sequence, if any. Idempotent.
// Device volume is left for the caller to set; every caller immediately
// establishes its own level.
func (e *Engine) cancelFadeLocked() {
	if e.fade != nil {
		e.fade.cancelled = true
		e.fade = nil
	}
}

func (e *Engine) setDeviceVolumeLocked(level float64) {
	e.deviceVolume = level
	e.backend.SetVolume(level)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

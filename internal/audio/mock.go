/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import "sync"

// Mock is a test double for Backend. It records every call so tests can
// assert on transport and volume sequences. Safe for concurrent use: the
// engine drives backends from timer goroutines.
type Mock struct {
	mu        sync.Mutex
	loads     []string
	plays     []float64
	volumes   []float64
	pauses    int
	resumes   int
	stops     int
	busy      bool
	paused    bool
	loadErr   error
	playErr   error
	lastLevel float64
}

var _ Backend = (*Mock)(nil)

// NewMock creates a mock backend with full volume and no media.
func NewMock() *Mock {
	return &Mock{lastLevel: 1.0}
}

func (m *Mock) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loads = append(m.loads, path)
	m.busy = false
	return nil
}

func (m *Mock) Play(startOffset float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, startOffset)
	m.busy = true
	m.paused = false
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.paused = true
}

func (m *Mock) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	m.paused = false
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.busy = false
	m.paused = false
}

func (m *Mock) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes = append(m.volumes, level)
	m.lastLevel = level
}

func (m *Mock) IsBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Mock) Close() error {
	m.Stop()
	return nil
}

// Test helpers

// SetLoadError makes subsequent Load calls fail.
func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SetPlayError makes subsequent Play calls fail.
func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// SimulateFinished marks the device idle, as when media runs out on its own.
func (m *Mock) SimulateFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
}

// LoadCalls returns the paths passed to Load.
func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

// PlayCalls returns the start offsets passed to Play.
func (m *Mock) PlayCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.plays...)
}

// VolumeCalls returns every level passed to SetVolume, in order.
func (m *Mock) VolumeCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.volumes...)
}

// LastVolume returns the most recently set level.
func (m *Mock) LastVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLevel
}

// StopCalls returns how many times Stop was called.
func (m *Mock) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// PauseCalls returns how many times Pause was called.
func (m *Mock) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauses
}

// ResumeCalls returns how many times Resume was called.
func (m *Mock) ResumeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes
}

// Paused reports whether the device is currently paused.
func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

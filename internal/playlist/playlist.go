/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

// Playlist is an ordered list of cues with a playback cursor. The cursor is
// -1 before the first advance and again after the list is exhausted, so the
// first AdvanceSong of a show lands on index 0.
//
// Playlist is not safe for concurrent use; the owning controller serializes
// access.
type Playlist struct {
	songs   []Song
	current int
}

// New creates an empty playlist with the cursor before the start.
func New() *Playlist {
	return &Playlist{current: -1}
}

// Add appends a cue to the end of the playlist.
func (p *Playlist) Add(song Song) {
	p.songs = append(p.songs, song)
}

// Insert places a cue at index, shifting later cues down. Index len(songs)
// appends. The cursor keeps pointing at the cue it was on. Reports whether
// the index was in range.
func (p *Playlist) Insert(index int, song Song) bool {
	if index < 0 || index > len(p.songs) {
		return false
	}
	p.songs = append(p.songs[:index], append([]Song{song}, p.songs[index:]...)...)
	if p.current >= index {
		p.current++
	}
	return true
}

// Remove deletes the cue at index, keeping the cursor on the same cue where
// possible. Reports whether the index was in range.
func (p *Playlist) Remove(index int) bool {
	if index < 0 || index >= len(p.songs) {
		return false
	}
	p.songs = append(p.songs[:index], p.songs[index+1:]...)
	if p.current >= index && p.current > 0 {
		p.current--
	} else if p.current >= len(p.songs) {
		p.current = -1
	}
	return true
}

// Move relocates the cue at from to position to, shifting cues between them.
// The cursor follows the cue it was on. Reports whether both indices were in
// range and distinct.
func (p *Playlist) Move(from, to int) bool {
	n := len(p.songs)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	song := p.songs[from]
	p.songs = append(p.songs[:from], p.songs[from+1:]...)
	p.songs = append(p.songs[:to], append([]Song{song}, p.songs[to:]...)...)

	switch {
	case p.current == from:
		p.current = to
	case from < p.current && p.current <= to:
		p.current--
	case to <= p.current && p.current < from:
		p.current++
	}
	return true
}

// Swap exchanges two cues; the cursor follows the cue it was on. Reports
// whether both indices were in range.
func (p *Playlist) Swap(i, j int) bool {
	n := len(p.songs)
	if i < 0 || i >= n || j < 0 || j >= n {
		return false
	}
	p.songs[i], p.songs[j] = p.songs[j], p.songs[i]
	if p.current == i {
		p.current = j
	} else if p.current == j {
		p.current = i
	}
	return true
}

// Clear removes every cue and resets the cursor.
func (p *Playlist) Clear() {
	p.songs = nil
	p.current = -1
}

// Len returns the number of cues.
func (p *Playlist) Len() int {
	return len(p.songs)
}

// Songs returns a copy of the cue list.
func (p *Playlist) Songs() []Song {
	out := make([]Song, len(p.songs))
	copy(out, p.songs)
	return out
}

// Get returns the cue at index.
func (p *Playlist) Get(index int) (Song, bool) {
	if index < 0 || index >= len(p.songs) {
		return Song{}, false
	}
	return p.songs[index], true
}

// Current returns the cue under the cursor.
func (p *Playlist) Current() (Song, bool) {
	return p.Get(p.current)
}

// CurrentIndex returns the cursor position (-1 when before the start).
func (p *Playlist) CurrentIndex() int {
	return p.current
}

// SetCurrentIndex moves the cursor. Index -1 rewinds to before the start;
// out-of-range values are ignored.
func (p *Playlist) SetCurrentIndex(index int) {
	if index >= -1 && index < len(p.songs) {
		p.current = index
	}
}

// AdvanceToNext moves the cursor forward and returns the cue there. At the
// end of the list it resets the cursor to before the start and reports false.
func (p *Playlist) AdvanceToNext() (Song, bool) {
	if p.current < len(p.songs)-1 {
		p.current++
		return p.songs[p.current], true
	}
	p.current = -1
	return Song{}, false
}

// HasNext reports whether an advance would land on a cue.
func (p *Playlist) HasNext() bool {
	return p.current < len(p.songs)-1
}

// ResetCursor rewinds the cursor to before the start.
func (p *Playlist) ResetCursor() {
	p.current = -1
}

// SetVolume updates one cue's volume, clamped to [0, 1]. Reports whether the
// index was in range.
func (p *Playlist) SetVolume(index int, volume float64) bool {
	if index < 0 || index >= len(p.songs) {
		return false
	}
	p.songs[index].Volume = clampVolume(volume)
	return true
}

// NormalizeVolumes sets every cue to the same volume, clamped to [0, 1].
func (p *Playlist) NormalizeVolumes(volume float64) {
	v := clampVolume(volume)
	for i := range p.songs {
		p.songs[i].Volume = v
	}
}

// ReplaceAll swaps in a new cue list and resets the cursor.
func (p *Playlist) ReplaceAll(songs []Song) {
	p.songs = make([]Song, len(songs))
	copy(p.songs, songs)
	p.current = -1
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist holds the ordered set of timed song cues a show plays
// through, plus its JSON persistence format.
package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// Song is one cue: a media file played from StartTime to EndTime at Volume.
// Page and Comment are operator annotations (script page, free text).
type Song struct {
	FilePath  string  `json:"file_path"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Page      int     `json:"page"`
	Comment   string  `json:"comment"`
	Volume    float64 `json:"volume"`
}

// NewSong builds a cue with full volume.
func NewSong(filePath string, startTime, endTime float64) Song {
	return Song{
		FilePath:  filePath,
		StartTime: startTime,
		EndTime:   endTime,
		Volume:    1.0,
	}
}

// Duration returns the cue length in seconds.
func (s Song) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Filename returns the file name without its directory.
func (s Song) Filename() string {
	return filepath.Base(s.FilePath)
}

// Validate checks the fields a cue must have before it may reach the
// playback engine. The engine itself assumes pre-validated input.
func (s Song) Validate() error {
	if s.FilePath == "" {
		return errors.New("song has no file path")
	}
	if s.EndTime <= s.StartTime {
		return fmt.Errorf("song %q: end time %.3f must be greater than start time %.3f",
			s.Filename(), s.EndTime, s.StartTime)
	}
	return nil
}

// UnmarshalJSON fills defaults for optional fields (page 0, empty comment,
// volume 1.0) and clamps volume into [0, 1].
func (s *Song) UnmarshalJSON(data []byte) error {
	type record struct {
		FilePath  *string  `json:"file_path"`
		StartTime *float64 `json:"start_time"`
		EndTime   *float64 `json:"end_time"`
		Page      int      `json:"page"`
		Comment   string   `json:"comment"`
		Volume    *float64 `json:"volume"`
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.FilePath == nil || rec.StartTime == nil || rec.EndTime == nil {
		return errors.New("song record missing file_path, start_time, or end_time")
	}

	s.FilePath = *rec.FilePath
	s.StartTime = *rec.StartTime
	s.EndTime = *rec.EndTime
	s.Page = rec.Page
	s.Comment = rec.Comment
	s.Volume = 1.0
	if rec.Volume != nil {
		s.Volume = clampVolume(*rec.Volume)
	}
	return nil
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveFile writes the playlist as an indented JSON array. The write goes
// through a temp file in the same directory and a rename, so a crash cannot
// leave a half-written show file behind.
func (p *Playlist) SaveFile(path string) error {
	songs := p.songs
	if songs == nil {
		// An empty show still serializes as an array, not null.
		songs = []Song{}
	}
	data, err := json.MarshalIndent(songs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".playlist-*.json")
	if err != nil {
		return fmt.Errorf("create temp playlist file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close playlist file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace playlist file: %w", err)
	}
	return nil
}

// LoadFile replaces the playlist contents from a JSON array file and resets
// the cursor to before the start.
func (p *Playlist) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read playlist: %w", err)
	}

	var songs []Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return fmt.Errorf("parse playlist %s: %w", filepath.Base(path), err)
	}

	p.songs = songs
	p.current = -1
	return nil
}

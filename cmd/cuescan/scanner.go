/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/showctl/cueplay/internal/playlist"
)

// scanJob is a unit of work sent to probe workers.
type scanJob struct {
	fullPath string
	relPath  string
}

// scanResult is the result of processing a single file.
type scanResult struct {
	song playlist.Song
	err  error
}

// scanner walks a directory and produces playlist cues.
type scanner struct {
	dir     string
	workers int
	noProbe bool
}

// scan returns one cue per decodable audio file, sorted by relative path so
// the emitted playlist is stable across runs.
func (s *scanner) scan(ctx context.Context) ([]playlist.Song, int, error) {
	jobs := make(chan scanJob, s.workers*2)
	results := make(chan scanResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				song, err := s.processFile(ctx, job)
				results <- scanResult{song: song, err: err}
			}
		}()
	}

	var songs []playlist.Song
	var errCount int
	var collectDone sync.WaitGroup
	collectDone.Add(1)
	go func() {
		defer collectDone.Done()
		for r := range results {
			if r.err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", r.err)
				errCount++
				continue
			}
			songs = append(songs, r.song)
		}
	}()

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
			errCount++
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if info.IsDir() {
			return nil
		}
		if !isPlayableFile(info.Name()) {
			return nil
		}
		relPath, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			relPath = filepath.Base(path)
		}
		jobs <- scanJob{fullPath: path, relPath: relPath}
		return nil
	})

	close(jobs)
	wg.Wait()
	close(results)
	collectDone.Wait()

	if err != nil && err != context.Canceled {
		return nil, errCount, err
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].FilePath < songs[j].FilePath })
	return songs, errCount, nil
}

func (s *scanner) processFile(ctx context.Context, job scanJob) (playlist.Song, error) {
	song := playlist.NewSong(job.relPath, 0, 0)

	if s.noProbe {
		return song, nil
	}

	duration, err := probeDuration(ctx, job.fullPath)
	if err != nil {
		return playlist.Song{}, fmt.Errorf("%s: %w", job.relPath, err)
	}
	song.EndTime = duration
	return song, nil
}

// probeDuration uses ffprobe to read the playable length of an audio file.
func probeDuration(ctx context.Context, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("no usable duration in ffprobe output")
	}
	return duration, nil
}

// isPlayableFile keeps the extension list in step with the decoders the
// playout engine's backend supports.
func isPlayableFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp3", ".flac", ".wav", ".ogg":
		return true
	default:
		return false
	}
}

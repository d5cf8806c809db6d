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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/showctl/cueplay/internal/playlist"
)

var (
	scanDir    string
	outputFile string
	workers    int
	noProbe    bool
)

var rootCmd = &cobra.Command{
	Use:   "cuescan",
	Short: "Scan a media directory and produce a playlist skeleton",
	Long: `cuescan walks a media directory for audio files the playout engine can
decode (mp3, flac, wav, ogg) and emits a playlist JSON file with one
full-length cue per file at volume 1.0. Cue lengths come from ffprobe;
with --no-probe the end times are left at zero for manual editing.

Examples:
  cuescan --dir /srv/media -o show.json
  cuescan --dir /srv/media --no-probe  # skeleton to stdout, no ffprobe`,
	RunE: runScan,
}

func init() {
	rootCmd.Flags().StringVar(&scanDir, "dir", "", "Media directory to scan (required)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output playlist file (default: stdout)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Parallel probe workers")
	rootCmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip ffprobe duration extraction")
	rootCmd.MarkFlagRequired("dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &scanner{
		dir:     scanDir,
		workers: workers,
		noProbe: noProbe,
	}

	songs, errCount, err := s.scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Scan complete: %d songs, %d errors\n", len(songs), errCount)

	if outputFile != "" {
		p := playlist.New()
		p.ReplaceAll(songs)
		if err := p.SaveFile(outputFile); err != nil {
			return fmt.Errorf("write playlist: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Playlist written to %s\n", outputFile)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(songs); err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	return nil
}

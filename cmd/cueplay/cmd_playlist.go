/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/showctl/cueplay/internal/playlist"
	"github.com/showctl/cueplay/internal/timefmt"
)

var normalizeVolume float64

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Inspect and maintain playlist files",
}

var playlistShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the cues in a playlist file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlaylistShow,
}

var playlistCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Verify every media file in a playlist is present and readable",
	Long:  "Resolve each cue's file against CUEPLAY_MEDIA_ROOT and open it. Exits non-zero when any file is missing, so the check slots into pre-show scripts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlaylistCheck,
}

var playlistNormalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Set every cue to the same volume and rewrite the file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlaylistNormalize,
}

func init() {
	playlistNormalizeCmd.Flags().Float64Var(&normalizeVolume, "volume", 1.0, "volume applied to every cue")
	playlistCmd.AddCommand(playlistShowCmd)
	playlistCmd.AddCommand(playlistCheckCmd)
	playlistCmd.AddCommand(playlistNormalizeCmd)
	rootCmd.AddCommand(playlistCmd)
}

// playlistPath picks the positional argument or falls back to the configured
// autoload path.
func playlistPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if err := loadConfig(); err != nil {
		return "", err
	}
	if cfg.PlaylistPath == "" {
		return "", fmt.Errorf("no playlist file given and CUEPLAY_PLAYLIST_PATH is unset")
	}
	return cfg.PlaylistPath, nil
}

func loadPlaylistFile(args []string) (*playlist.Playlist, string, error) {
	path, err := playlistPath(args)
	if err != nil {
		return nil, "", err
	}
	p := playlist.New()
	if err := p.LoadFile(path); err != nil {
		return nil, "", err
	}
	return p, path, nil
}

func runPlaylistShow(cmd *cobra.Command, args []string) error {
	p, path, err := loadPlaylistFile(args)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d songs\n", path, p.Len())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCUE\tLENGTH\tVOL\tPAGE\tFILE")
	var total float64
	for i, song := range p.Songs() {
		total += song.Duration()
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%d\t%s\n",
			i,
			timefmt.FormatRange(song.StartTime, song.EndTime),
			timefmt.FormatSeconds(song.Duration()),
			song.Volume,
			song.Page,
			song.FilePath,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("total running time %s\n", timefmt.FormatSeconds(total))
	return nil
}

func runPlaylistCheck(cmd *cobra.Command, args []string) error {
	// Media paths resolve against the configured root, so config is needed
	// even when the playlist file is given explicitly.
	if err := loadConfig(); err != nil {
		return err
	}
	p, path, err := loadPlaylistFile(args)
	if err != nil {
		return err
	}

	missing := 0
	for i, song := range p.Songs() {
		resolved := song.FilePath
		if !filepath.IsAbs(resolved) && cfg.MediaRoot != "" {
			resolved = filepath.Join(cfg.MediaRoot, resolved)
		}

		f, err := os.Open(resolved)
		if err != nil {
			fmt.Printf("MISSING  #%d %s: %v\n", i, song.FilePath, err)
			missing++
			continue
		}
		_ = f.Close()
		fmt.Printf("ok       #%d %s\n", i, song.FilePath)
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d files unreadable in %s", missing, p.Len(), path)
	}
	fmt.Printf("all %d files readable\n", p.Len())
	return nil
}

func runPlaylistNormalize(cmd *cobra.Command, args []string) error {
	p, path, err := loadPlaylistFile(args)
	if err != nil {
		return err
	}

	p.NormalizeVolumes(normalizeVolume)
	if err := p.SaveFile(path); err != nil {
		return err
	}
	fmt.Printf("set %d songs to volume %.2f in %s\n", p.Len(), normalizeVolume, path)
	return nil
}

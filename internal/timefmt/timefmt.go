/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timefmt converts between cue positions in seconds and the
// operator-facing m:ss / m:ss.mmm notation used in playlists and tooling.
package timefmt

import "fmt"

// FormatSeconds renders seconds as "m:ss".
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatSecondsMillis renders seconds as "m:ss.mmm".
func FormatSecondsMillis(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	millis := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%d:%02d.%03d", total/60, total%60, millis)
}

// ComponentsToSeconds converts minute/second/millisecond components to seconds.
func ComponentsToSeconds(minutes, seconds, millis int) float64 {
	return float64(minutes)*60 + float64(seconds) + float64(millis)/1000
}

// SecondsToComponents splits seconds into minute/second/millisecond components.
func SecondsToComponents(seconds float64) (minutes, secs, millis int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return total / 60, total % 60, int((seconds - float64(total)) * 1000)
}

// ValidComponents reports whether components are within editable ranges
// (minutes 0-999, seconds 0-59, milliseconds 0-999).
func ValidComponents(minutes, seconds, millis int) bool {
	return minutes >= 0 && minutes <= 999 &&
		seconds >= 0 && seconds <= 59 &&
		millis >= 0 && millis <= 999
}

// ClampComponents forces components into the editable ranges.
func ClampComponents(minutes, seconds, millis int) (int, int, int) {
	return clamp(minutes, 0, 999), clamp(seconds, 0, 59), clamp(millis, 0, 999)
}

// FormatRange renders the duration between two positions as "m:ss.mmm".
func FormatRange(start, end float64) string {
	return FormatSecondsMillis(end - start)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

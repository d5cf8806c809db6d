/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

// Version is the current version of cueplay.
// This is set at build time via ldflags:
//
//	-X github.com/showctl/cueplay/internal/version.Version=X.Y.Z
var Version = "0.9.3"

// Commit is the git revision the binary was built from, set via ldflags.
var Commit = "unknown"

// Info bundles the build identity for status surfaces.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Current returns the build identity.
func Current() Info {
	return Info{Version: Version, Commit: Commit}
}

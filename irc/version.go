// Copyright (c) 2020 Shivaram Lingamneni
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"fmt"
	"runtime"
)

const (
	// SemVer is the semantic version of rearguard.
	SemVer = "0.3.0-unreleased"
)

var (
	// Ver is the full version of rearguard, as reported by `rearguard --version`.
	Ver = "rearguard-" + SemVer
	// Commit is the full git hash, if available
	Commit string
)

// SetVersionString sets the version strings from the values package main
// receives via linker flags.
func SetVersionString(version, commit string) {
	Commit = commit
	switch {
	case version != "":
		Ver = "rearguard-" + version
	case len(Commit) == 40:
		Ver = fmt.Sprintf("rearguard-%s-%s", SemVer, Commit[:16])
	}
}

// BuildInfo describes the running binary for the startup log line.
func BuildInfo() string {
	return fmt.Sprintf("%s (%s %s/%s)", Ver, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

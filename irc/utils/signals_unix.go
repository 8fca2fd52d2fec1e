//go:build unix

// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package utils

import (
	"syscall"
)

func init() {
	ServerExitSignals = append(ServerExitSignals, syscall.SIGQUIT)
	ServerTracebackSignals = append(ServerTracebackSignals, syscall.SIGUSR1)
}

// Copyright (c) 2020 Shivaram Lingamneni
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package utils

import (
	"os"
	"syscall"
)

var (
	// ServerExitSignals are the signals the server will exit on.
	ServerExitSignals = []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
	}

	// ServerTracebackSignals make the server log the stacks of all
	// goroutines; empty where the platform has no SIGUSR1.
	ServerTracebackSignals []os.Signal
)

// Copyright (c) 2021 Shivaram Lingamneni
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"fmt"
	"runtime/debug"
)

// HandlePanic logs a panic in a long-lived server goroutine (the relay or
// an accept loop) and lets the goroutine end. It must be deferred directly
// from that goroutine, e.g. `defer server.HandlePanic("relay")`.
func (server *Server) HandlePanic(where string) {
	if r := recover(); r != nil {
		server.logger.Error("internal", fmt.Sprintf("Panic encountered in %s: %v\n%s", where, r, debug.Stack()))
	}
}

// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

//go:build !(plan9 || solaris)

package flock

import (
	"github.com/gofrs/flock"
)

// TryAcquire takes an exclusive lock on path without blocking.
func TryAcquire(path string) (Locker, error) {
	f := flock.New(path)
	success, err := f.TryLock()
	if err != nil {
		return nil, err
	} else if !success {
		return nil, ErrLocked
	}
	return f, nil
}

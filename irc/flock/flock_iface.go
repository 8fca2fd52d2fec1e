// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

// Package flock guards an on-disk datastore against a second rearguard
// process opening it.
package flock

import "errors"

var (
	ErrLocked = errors.New("Couldn't acquire flock (is another rearguard running?)")
)

// Locker is what a successful TryAcquire returns. gofrs/flock.Flock does
// not implement sync.Locker, because its Unlock returns an error.
type Locker interface {
	Unlock() error
}

type noopLocker struct{}

func (noopLocker) Unlock() error {
	return nil
}

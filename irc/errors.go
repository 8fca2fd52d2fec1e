// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import "errors"

// Runtime Errors
var (
	errRelayStopped   = errors.New("relay is not running")
	errSendQExceeded  = errors.New("SendQ exceeded")
	errServerStopped  = errors.New("server is shutting down")
	errStaleRecipient = errors.New("recipient already disconnected")
	errClientPanicked = errors.New("internal error")
)

// Socket Errors
var (
	errReadQ = errors.New("ReadQ exceeded")
)

// Config Errors
var (
	ErrDatastorePathMissing  = errors.New("Datastore path is missing")
	ErrLoggerExcludeEmpty    = errors.New("Encountered logging type '-' with no type to exclude")
	ErrLoggerFilenameMissing = errors.New("Logging configuration specifies 'file' method but 'filename' is empty")
	ErrLoggerHasNoTypes      = errors.New("Logger has no types to log")
	ErrNoListenersDefined    = errors.New("Server listening addresses missing")
	ErrServerNameMissing     = errors.New("Server name missing")
	ErrServerNameNotHostname = errors.New("Server name must match the format of a hostname")
)

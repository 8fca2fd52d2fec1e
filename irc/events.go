// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"github.com/ergochat/irc-go/ircfmt"

	"github.com/ergochat/rearguard/irc/logger"
)

// EventKind identifies what happened in an Event.
type EventKind int

const (
	// EventConnect: a connection was registered with the relay.
	EventConnect EventKind = iota
	// EventDisconnect: a connection ended; Err carries the reason.
	EventDisconnect
	// EventReceive: a raw line arrived from a client.
	EventReceive
	// EventSend: a line is about to be written to a client.
	EventSend
	// EventMalformed: a line was dropped because it could not be parsed.
	EventMalformed
	// EventUnknownCommand: a parsed message had a command we ignore.
	EventUnknownCommand
	// EventRelayDrop: the relay dropped a recipient (stale or over its SendQ).
	EventRelayDrop
	// EventAcceptError: a listener failed to accept a connection.
	EventAcceptError
)

var eventKindNames = map[EventKind]string{
	EventConnect:        "connect",
	EventDisconnect:     "disconnect",
	EventReceive:        "receive",
	EventSend:           "send",
	EventMalformed:      "malformed",
	EventUnknownCommand: "unknown-command",
	EventRelayDrop:      "relay-drop",
	EventAcceptError:    "accept-error",
}

func (kind EventKind) String() string {
	if name, ok := eventKindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// Event is an observable occurrence on a connection or listener. ClientID
// and Peer are empty for listener events.
type Event struct {
	Kind     EventKind
	ClientID string
	Peer     string
	Line     string
	Err      error
}

// EventHook receives events. Hooks are called synchronously from the
// goroutine where the event happens, so they must be safe for concurrent
// use and must not block.
type EventHook func(Event)

// logEventHook returns the default hook, which writes events to the logger.
func logEventHook(logman *logger.Manager) EventHook {
	return func(event Event) {
		switch event.Kind {
		case EventConnect:
			logman.Info("connect", "client connected", event.Peer, event.ClientID)
		case EventDisconnect:
			reason := "quit"
			if event.Err != nil {
				reason = event.Err.Error()
			}
			logman.Info("quit", "client disconnected", event.Peer, reason)
		case EventReceive:
			if logman.IsLoggingRawIO() {
				logman.Debug(logger.TypeUserInput, event.Peer, "<- "+ircfmt.Escape(event.Line))
			}
		case EventSend:
			if logman.IsLoggingRawIO() {
				logman.Debug(logger.TypeUserOutput, event.Peer, "-> "+ircfmt.Escape(event.Line))
			}
		case EventMalformed:
			logman.Debug(logger.TypeUserInput, event.Peer, "dropped malformed line", ircfmt.Escape(event.Line))
		case EventUnknownCommand:
			logman.Debug("commands", event.Peer, "unknown command", ircfmt.Escape(event.Line))
		case EventRelayDrop:
			logman.Info("relay", "dropped recipient", event.Peer, event.ClientID, event.Err.Error())
		case EventAcceptError:
			logman.Error("listeners", "accept error", event.Peer, event.Err.Error())
		}
	}
}

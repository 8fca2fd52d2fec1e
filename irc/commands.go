// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"strings"

	"github.com/ergochat/rearguard/irc/message"
)

// Command represents a command accepted from a client.
type Command struct {
	handler func(server *Server, client *Client, msg message.Message) bool
	// relayed commands are submitted to the relay instead of answered
	relayed bool
}

// Run runs this command with the given client/message.
func (cmd *Command) Run(server *Server, client *Client, msg message.Message) (exiting bool) {
	exiting = cmd.handler(server, client, msg)
	if cmd.relayed {
		client.relayedCount++
	}
	return exiting
}

// Commands holds all commands executable by a client connected to us.
var Commands map[string]Command

func init() {
	Commands = map[string]Command{
		"NICK": {
			handler: nickHandler,
		},
		"NOTICE": {
			handler: relayHandler,
			relayed: true,
		},
		"PING": {
			handler: pingHandler,
		},
		"PRIVMSG": {
			handler: relayHandler,
			relayed: true,
		},
		"QUIT": {
			handler: quitHandler,
		},
		"USER": {
			handler: userHandler,
		},
	}
}

// lookupCommand finds the handler for a command verb. Verbs are matched
// case-insensitively; the message itself is never rewritten.
func lookupCommand(command string) (cmd Command, ok bool) {
	cmd, ok = Commands[strings.ToUpper(command)]
	return
}

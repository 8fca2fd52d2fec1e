// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"github.com/ergochat/rearguard/irc/message"
)

const (
	RPL_WELCOME = "001"
)

// firstArg returns the first param, or failing that a non-empty trail, so
// that both `NICK alice` and `NICK :alice` work.
func firstArg(msg message.Message) (arg string, ok bool) {
	if arg, ok = msg.Param(0); ok {
		return
	}
	if msg.HasTrail && msg.Trail != "" {
		return msg.Trail, true
	}
	return "", false
}

// NICK <nickname>
func nickHandler(server *Server, client *Client, msg message.Message) bool {
	nick, ok := firstArg(msg)
	if !ok {
		return false
	}
	client.nick = nick
	if !client.welcomed {
		client.welcomed = true
		client.Send(server.reply(RPL_WELCOME, nick).WithTrail("Welcome"))
	}
	return false
}

// PING <token>
func pingHandler(server *Server, client *Client, msg message.Message) bool {
	token, ok := firstArg(msg)
	if !ok {
		return false
	}
	client.Send(server.reply("PONG", server.name).WithTrail(token))
	return false
}

// QUIT [<reason>]
func quitHandler(server *Server, client *Client, msg message.Message) bool {
	client.Send(server.reply("QUIT").WithTrail("Client Quit"))
	return true
}

// USER <username> <mode> <unused> <realname>
func userHandler(server *Server, client *Client, msg message.Message) bool {
	// accepted for compatibility with clients that always send it
	return false
}

// PRIVMSG <target> <text>, NOTICE <target> <text>
func relayHandler(server *Server, client *Client, msg message.Message) bool {
	if err := server.relay.Submit(msg.WithPrefix(client.Nick())); err != nil {
		client.quitErr = err
		return true
	}
	return false
}

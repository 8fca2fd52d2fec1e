// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

// Package message converts between wire lines and structured protocol
// messages of the form `[":" prefix " "] command (" " param)* [" :" trail]`.
package message

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedMessage indicates that a line has no command.
	ErrMalformedMessage = errors.New("malformed message: no command")
)

var crlf = []byte{'\r', '\n'}

// Message is a single protocol message. It is a value type: the With*
// methods return modified copies and never touch the receiver.
//
// HasPrefix and HasTrail distinguish an absent prefix or trail from an
// empty one; `PRIVMSG x :` carries a present, empty trail.
type Message struct {
	Prefix    string
	Command   string
	Params    []string
	Trail     string
	HasPrefix bool
	HasTrail  bool
}

// Make returns a message with the given command and params, and no prefix
// or trail.
func Make(command string, params ...string) Message {
	return Message{
		Command: command,
		Params:  params,
	}
}

// WithPrefix returns a copy of msg carrying the given prefix.
func (msg Message) WithPrefix(prefix string) Message {
	msg.Prefix = prefix
	msg.HasPrefix = true
	return msg
}

// WithTrail returns a copy of msg carrying the given trailing text.
func (msg Message) WithTrail(trail string) Message {
	msg.Trail = trail
	msg.HasTrail = true
	return msg
}

// Param returns the i'th param and whether it is present.
func (msg Message) Param(i int) (param string, ok bool) {
	if i < 0 || len(msg.Params) <= i {
		return "", false
	}
	return msg.Params[i], true
}

// Parse decodes a single line. The line terminator is optional: a trailing
// \r is removed and \n is expected to have been removed by the framer.
// Runs of spaces before the trail collapse, so "PING  x" has the single
// param "x"; spaces inside the trail are kept.
func Parse(line string) (msg Message, err error) {
	line = strings.TrimSuffix(line, "\r")
	tokens := strings.Split(line, " ")

	i := 0
	if strings.HasPrefix(tokens[0], ":") {
		msg.Prefix = tokens[0][1:]
		msg.HasPrefix = true
		i++
	}

	if len(tokens) <= i || tokens[i] == "" {
		return Message{}, ErrMalformedMessage
	}
	msg.Command = tokens[i]
	i++

	for ; i < len(tokens); i++ {
		token := tokens[i]
		if strings.HasPrefix(token, ":") {
			// the trail absorbs everything after it, spaces included
			msg.Trail = strings.Join(append([]string{token[1:]}, tokens[i+1:]...), " ")
			msg.HasTrail = true
			break
		}
		// runs of spaces produce empty tokens; they are not params
		if token == "" {
			continue
		}
		msg.Params = append(msg.Params, token)
	}

	return msg, nil
}

// String serializes msg without a line terminator.
func (msg Message) String() string {
	var buf strings.Builder
	msg.writeTo(&buf)
	return buf.String()
}

// LineBytes serializes msg and appends the \r\n terminator, ready for a
// stream transport.
func (msg Message) LineBytes() []byte {
	var buf strings.Builder
	msg.writeTo(&buf)
	buf.Write(crlf)
	return []byte(buf.String())
}

func (msg Message) writeTo(buf *strings.Builder) {
	if msg.HasPrefix {
		buf.WriteByte(':')
		buf.WriteString(msg.Prefix)
		buf.WriteByte(' ')
	}
	buf.WriteString(msg.Command)
	for _, param := range msg.Params {
		buf.WriteByte(' ')
		buf.WriteString(param)
	}
	if msg.HasTrail {
		buf.WriteString(" :")
		buf.WriteString(msg.Trail)
	}
}

// Valid reports whether msg survives a serialize/parse round trip
// unchanged: the command is non-empty, and no prefix, command or param
// contains a space or a line break, and no param is empty or starts with ':'.
func (msg Message) Valid() bool {
	if msg.Command == "" || strings.HasPrefix(msg.Command, ":") || containsBreak(msg.Command) {
		return false
	}
	if msg.HasPrefix && containsBreak(msg.Prefix) {
		return false
	}
	for _, param := range msg.Params {
		if param == "" || param[0] == ':' || containsBreak(param) {
			return false
		}
	}
	return !(msg.HasTrail && strings.ContainsAny(msg.Trail, "\r\n"))
}

func containsBreak(token string) bool {
	return strings.ContainsAny(token, " \r\n")
}

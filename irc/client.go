// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ergochat/rearguard/irc/message"
)

// clientInput is one item produced by a client's reader goroutine: either
// a parsed message or the error that ended reading.
type clientInput struct {
	msg message.Message
	err error
}

// Client is the server's side of one connection. Apart from construction,
// every field is touched only by the goroutine executing run.
type Client struct {
	server *Server
	conn   IRCConn
	id     string
	peer   string

	nick     string
	welcomed bool

	outbound <-chan message.Message
	limiter  *rate.Limiter

	relayedCount int
	// sendErr is the first write failure; once set, nothing more is written
	sendErr error
	// quitErr ends the dispatch loop after the current command
	quitErr error
}

// newClient sets up a client for a freshly accepted connection.
func newClient(server *Server, conn IRCConn) *Client {
	client := &Client{
		server: server,
		conn:   conn,
		id:     uuid.NewString(),
		peer:   conn.Peer(),
	}
	if fakelag := server.config.Server.Fakelag; fakelag.Enabled {
		every := fakelag.Window / time.Duration(fakelag.MessagesPerWindow)
		client.limiter = rate.NewLimiter(rate.Every(every), fakelag.BurstLimit)
	}
	return client
}

// Nick returns the client's nickname, or "*" before one has been set.
func (client *Client) Nick() string {
	if client.nick == "" {
		return "*"
	}
	return client.nick
}

// run is the dispatch loop. It multiplexes the client's own messages and
// broadcasts from the relay until QUIT, a transport failure, or ctx ends,
// and always closes the connection before returning. A nil error means
// the client quit.
func (client *Client) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			client.server.logger.Error("internal",
				fmt.Sprintf("Client caused panic: %v\n%s", r, debug.Stack()))
			err = errClientPanicked
		} else if err != nil && ctx.Err() != nil {
			// failures caused by the connection being closed under us
			err = stopReason(ctx)
		}
		client.conn.Close()
	}()

	input := make(chan clientInput)
	go client.readLoop(ctx, input)

	for {
		select {
		case in := <-input:
			if in.err != nil {
				return in.err
			}
			if client.handle(in.msg) {
				return client.quitErr
			}
		case msg, ok := <-client.outbound:
			if !ok {
				// the relay dropped us, or is shutting down
				if ctx.Err() != nil {
					return stopReason(ctx)
				}
				return errSendQExceeded
			}
			if err := client.Send(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return stopReason(ctx)
		}
	}
}

// stopReason explains why a client's context ended: the relay evicted it,
// or the server is shutting down.
func stopReason(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, errSendQExceeded) {
		return errSendQExceeded
	}
	return errServerStopped
}

// handle runs one command and reports whether the dispatch loop must end.
func (client *Client) handle(msg message.Message) (exiting bool) {
	cmd, ok := lookupCommand(msg.Command)
	if !ok {
		client.server.emit(Event{
			Kind:     EventUnknownCommand,
			ClientID: client.id,
			Peer:     client.peer,
			Line:     msg.String(),
		})
		return false
	}
	exiting = cmd.Run(client.server, client, msg)
	if client.sendErr != nil {
		client.quitErr = client.sendErr
		return true
	}
	return exiting
}

// readLoop reads and parses lines until the connection fails, handing them
// to the dispatch loop. Malformed lines are reported and dropped.
func (client *Client) readLoop(ctx context.Context, input chan<- clientInput) {
	deliver := func(in clientInput) bool {
		select {
		case input <- in:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		line, err := client.conn.ReadLine()
		if err != nil {
			deliver(clientInput{err: err})
			return
		}
		if len(line) == 0 {
			continue
		}
		text := string(line)
		client.server.emit(Event{
			Kind:     EventReceive,
			ClientID: client.id,
			Peer:     client.peer,
			Line:     text,
		})

		msg, err := message.Parse(text)
		if err != nil {
			client.server.emit(Event{
				Kind:     EventMalformed,
				ClientID: client.id,
				Peer:     client.peer,
				Line:     text,
				Err:      err,
			})
			continue
		}

		if client.limiter != nil {
			if err := client.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if !deliver(clientInput{msg: msg}) {
			return
		}
	}
}

// Send writes msg to the client. The send event fires before the write.
func (client *Client) Send(msg message.Message) error {
	if client.sendErr != nil {
		return client.sendErr
	}
	client.server.emit(Event{
		Kind:     EventSend,
		ClientID: client.id,
		Peer:     client.peer,
		Line:     msg.String(),
	})
	if err := client.conn.Write(msg.LineBytes()); err != nil {
		client.sendErr = err
		return err
	}
	return nil
}

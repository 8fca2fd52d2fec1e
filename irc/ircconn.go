// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"bytes"
	"errors"
	"net"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircreader"
	"github.com/gorilla/websocket"
)

const (
	initialBufferSize = 512
)

var (
	crlf = []byte{'\r', '\n'}
)

// IRCConn abstracts away the distinction between a regular net.Conn (raw
// TCP or a unix domain socket) and a websocket. It doesn't expose Read and
// Write because websockets are message-oriented, not stream-oriented.
//
// ReadLine is called from the connection's reader goroutine and Write from
// its dispatch goroutine. Close may be called from any goroutine, more than
// once, and must unblock pending reads and writes.
type IRCConn interface {
	// Peer identifies the remote end for logging.
	Peer() string

	// Write sends one line; buf ends in \r\n.
	Write(buf []byte) error
	// ReadLine blocks until a full line is available and returns it without
	// its terminator. The returned slice is only valid until the next call.
	ReadLine() (line []byte, err error)

	Close() error
}

// IRCStreamConn is an IRCConn over a regular stream connection.
type IRCStreamConn struct {
	conn   net.Conn
	peer   string
	reader ircreader.Reader
}

// NewIRCStreamConn wraps conn; lines longer than maxLineLength bytes fail
// with errReadQ.
func NewIRCStreamConn(conn net.Conn, maxLineLength int) *IRCStreamConn {
	cc := &IRCStreamConn{
		conn: conn,
		peer: addrString(conn.RemoteAddr()),
	}
	cc.reader.Initialize(conn, initialBufferSize, maxLineLength)
	return cc
}

func (cc *IRCStreamConn) Peer() string {
	return cc.peer
}

func (cc *IRCStreamConn) Write(buf []byte) (err error) {
	_, err = cc.conn.Write(buf)
	return
}

func (cc *IRCStreamConn) ReadLine() (line []byte, err error) {
	line, err = cc.reader.ReadLine()
	if err == ircreader.ErrReadQ {
		err = errReadQ
	}
	return
}

func (cc *IRCStreamConn) Close() (err error) {
	return cc.conn.Close()
}

// IRCWSConn is an IRCConn over a websocket; each message carries one line.
type IRCWSConn struct {
	conn *websocket.Conn
	peer string
}

// NewIRCWSConn wraps an upgraded websocket. peer is the client address as
// determined by the listener (which may have consulted X-Forwarded-For).
func NewIRCWSConn(conn *websocket.Conn, peer string, maxLineLength int) *IRCWSConn {
	// avoid a DoS attack from buffering excessively large messages:
	conn.SetReadLimit(int64(maxLineLength))
	return &IRCWSConn{
		conn: conn,
		peer: peer,
	}
}

func (wc *IRCWSConn) Peer() string {
	return wc.peer
}

func (wc *IRCWSConn) Write(buf []byte) (err error) {
	buf = bytes.TrimSuffix(buf, crlf)
	// there's not much we can do about this;
	// silently drop the message
	if !utf8.Valid(buf) {
		return nil
	}
	return wc.conn.WriteMessage(websocket.TextMessage, buf)
}

func (wc *IRCWSConn) ReadLine() (line []byte, err error) {
	for {
		var messageType int
		messageType, line, err = wc.conn.ReadMessage()
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, errReadQ
		} else if err != nil {
			return nil, err
		}
		// on empty message or control data, try again, block if necessary
		if (messageType == websocket.TextMessage || messageType == websocket.BinaryMessage) && len(line) != 0 {
			return bytes.TrimSuffix(bytes.TrimSuffix(line, []byte{'\n'}), []byte{'\r'}), nil
		}
	}
}

func (wc *IRCWSConn) Close() (err error) {
	return wc.conn.Close()
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	if str := addr.String(); str != "" {
		return str
	}
	return addr.Network()
}

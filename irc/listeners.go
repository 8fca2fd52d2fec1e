// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ergochat/rearguard/irc/utils"
)

// IRCListener is an abstract wrapper for a listener (TCP port or unix domain socket).
// Server tracks these by listen address and stops them on shutdown.
type IRCListener interface {
	// Addr is the bound address; for ":0" listeners it carries the real port.
	Addr() net.Addr
	// Stop closes the listener and returns once it accepts no more clients.
	Stop() error
}

// NewListener creates a new listener as described by its config block
func NewListener(server *Server, addr string, config ListenerConfig, bindMode os.FileMode) (result IRCListener, err error) {
	baseListener, err := createBaseListener(addr, bindMode)
	if err != nil {
		return
	}

	if config.WebSocket {
		return NewWSListener(server, addr, baseListener), nil
	} else {
		return NewNetListener(server, addr, baseListener), nil
	}
}

func createBaseListener(addr string, bindMode os.FileMode) (listener net.Listener, err error) {
	addr = strings.TrimPrefix(addr, "unix:")
	if strings.HasPrefix(addr, "/") {
		// https://stackoverflow.com/a/34881585
		os.Remove(addr)
		listener, err = net.Listen("unix", addr)
		if err == nil && bindMode != 0 {
			os.Chmod(addr, bindMode)
		}
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	return
}

// NetListener is an IRCListener for a regular stream socket (TCP or unix domain)
type NetListener struct {
	listener net.Listener
	server   *Server
	addr     string
	// closed when serve returns
	done chan struct{}
}

func NewNetListener(server *Server, addr string, listener net.Listener) *NetListener {
	nl := &NetListener{
		server:   server,
		listener: listener,
		addr:     addr,
		done:     make(chan struct{}),
	}
	go nl.serve()
	return nl
}

func (nl *NetListener) Addr() net.Addr {
	return nl.listener.Addr()
}

func (nl *NetListener) Stop() error {
	err := nl.listener.Close()
	<-nl.done
	return err
}

func (nl *NetListener) serve() {
	defer close(nl.done)
	defer nl.server.HandlePanic("listener " + nl.addr)

	maxLineLength := nl.server.config.Server.MaxLineLength
	for {
		conn, err := nl.listener.Accept()

		if err == nil {
			// hand off the connection
			go nl.server.RunClient(NewIRCStreamConn(conn, maxLineLength))
		} else if errors.Is(err, net.ErrClosed) {
			return
		} else {
			nl.server.emit(Event{Kind: EventAcceptError, Peer: nl.addr, Err: err})
			// don't spin on a persistent error such as EMFILE
			time.Sleep(acceptBackoff)
		}
	}
}

const acceptBackoff = 10 * time.Millisecond

// WSListener is a listener for IRC-over-websockets (initially HTTP, then upgraded to a
// different application protocol that provides a message-based API)
type WSListener struct {
	listener   net.Listener
	httpServer *http.Server
	server     *Server
	addr       string
	done       chan struct{}
}

func NewWSListener(server *Server, addr string, listener net.Listener) *WSListener {
	result := &WSListener{
		listener: listener,
		server:   server,
		addr:     addr,
		done:     make(chan struct{}),
	}
	result.httpServer = &http.Server{
		Handler:     http.HandlerFunc(result.handle),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		defer close(result.done)
		err := result.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.emit(Event{Kind: EventAcceptError, Peer: addr, Err: err})
		}
	}()
	return result
}

func (wl *WSListener) Addr() net.Addr {
	return wl.listener.Addr()
}

// Stop closes the HTTP server. Upgraded connections are hijacked, so they
// are unaffected; they end with the server context.
func (wl *WSListener) Stop() error {
	err := wl.httpServer.Close()
	<-wl.done
	return err
}

func (wl *WSListener) handle(w http.ResponseWriter, r *http.Request) {
	config := wl.server.config

	wsUpgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return config.originAllowed(r.Header.Get("Origin"))
		},
		Subprotocols: []string{"text.ircv3.net", "binary.ircv3.net"},
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		wl.server.logger.Info("listeners", "websocket upgrade error", wl.addr, err.Error())
		return
	}
	// the upgraded connection must outlive the handshake deadline
	conn.UnderlyingConn().SetDeadline(time.Time{})

	peer := wsPeer(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), config)
	wl.server.RunClient(NewIRCWSConn(conn, peer, config.Server.MaxLineLength))
}

// wsPeer names a websocket client, believing X-Forwarded-For only from
// trusted proxies.
func wsPeer(remoteAddr, xForwardedFor string, config *Config) string {
	if xForwardedFor == "" {
		return remoteAddr
	}
	proxiedIP := utils.HandleXForwardedFor(remoteAddr, xForwardedFor, config.Server.proxyAllowedFromNets)
	// don't report the proxied IP if it is redundant with the actual IP
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil && addrPort.Addr().Unmap() == proxiedIP {
		return remoteAddr
	}
	return proxiedIP.String()
}

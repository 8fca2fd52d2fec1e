// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"github.com/okzk/sdnotify"

	"github.com/ergochat/rearguard/irc/datastore"
	"github.com/ergochat/rearguard/irc/logger"
	"github.com/ergochat/rearguard/irc/message"
	"github.com/ergochat/rearguard/irc/utils"
)

// Server is the rearguard relay server: it owns the listeners, the relay,
// and the optional session datastore.
type Server struct {
	config *Config
	logger *logger.Manager
	name   string

	relay *Relay
	store *datastore.Store
	hooks []EventHook

	ctx    context.Context
	cancel context.CancelFunc

	stateMutex sync.Mutex // tier 1
	listeners  map[string]IRCListener
	started    bool
	stopping   bool
	clients    sync.WaitGroup
	relayDone  chan struct{}

	exitSignals      chan os.Signal
	tracebackSignals chan os.Signal
}

// NewServer returns a new Server. The datastore, if enabled, is opened here.
func NewServer(config *Config, logger *logger.Manager) (*Server, error) {
	server := &Server{
		config:           config,
		logger:           logger,
		name:             config.Server.Name,
		listeners:        make(map[string]IRCListener),
		relayDone:        make(chan struct{}),
		exitSignals:      make(chan os.Signal, len(utils.ServerExitSignals)),
		tracebackSignals: make(chan os.Signal, 1),
	}
	server.ctx, server.cancel = context.WithCancel(context.Background())
	server.hooks = []EventHook{logEventHook(logger)}
	server.relay = NewRelay(config.Server.SendQ, server.emit)

	if config.Datastore.Enabled {
		store, err := datastore.Open(config.Datastore.Path, config.Datastore.Retention)
		if err != nil {
			return nil, fmt.Errorf("Could not open datastore %s: %w", config.Datastore.Path, err)
		}
		server.store = store
		logger.Info("datastore", "opened session datastore", config.Datastore.Path)
	}

	return server, nil
}

// AddEventHook registers an additional observer. It must be called before
// Start.
func (server *Server) AddEventHook(hook EventHook) {
	server.hooks = append(server.hooks, hook)
}

func (server *Server) emit(event Event) {
	for _, hook := range server.hooks {
		hook(event)
	}
}

// reply builds a message originating from the server itself.
func (server *Server) reply(command string, params ...string) message.Message {
	return message.Make(command, params...).WithPrefix(server.name)
}

// Start launches the relay and opens every configured listener.
func (server *Server) Start() (err error) {
	server.stateMutex.Lock()
	defer server.stateMutex.Unlock()
	if server.started {
		return nil
	}
	server.started = true

	go func() {
		defer close(server.relayDone)
		defer server.HandlePanic("relay")
		server.relay.Run(server.ctx)
	}()

	// sorted so that startup logs are stable
	addrs := make([]string, 0, len(server.config.Server.Listeners))
	for addr := range server.config.Server.Listeners {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		listenerConf := server.config.Server.Listeners[addr]
		listener, err := NewListener(server, addr, listenerConf, server.config.Server.UnixBindMode)
		if err != nil {
			server.logger.Error("listeners", "couldn't listen on", addr, err.Error())
			return fmt.Errorf("couldn't listen on %s: %w", addr, err)
		}
		server.listeners[addr] = listener
		kind := "stream"
		if listenerConf.WebSocket {
			kind = "websocket"
		}
		server.logger.Info("listeners", fmt.Sprintf("now listening on %s (%s)", listener.Addr(), kind))
	}
	return nil
}

// ListenerAddr returns the bound address of the listener configured as addr.
func (server *Server) ListenerAddr(addr string) (result string, ok bool) {
	server.stateMutex.Lock()
	defer server.stateMutex.Unlock()
	listener, ok := server.listeners[addr]
	if !ok {
		return "", false
	}
	return listener.Addr().String(), true
}

// Run starts the server and blocks until it receives an exit signal.
func (server *Server) Run() error {
	signal.Notify(server.exitSignals, utils.ServerExitSignals...)
	// Notify with no signals would relay every signal
	if len(utils.ServerTracebackSignals) != 0 {
		signal.Notify(server.tracebackSignals, utils.ServerTracebackSignals...)
	}
	defer signal.Stop(server.exitSignals)
	defer signal.Stop(server.tracebackSignals)

	if err := server.Start(); err != nil {
		server.Shutdown()
		return err
	}
	sdnotify.Ready()
	server.logger.Info("server", "Server running", server.name)

	for {
		select {
		case sig := <-server.exitSignals:
			server.logger.Info("server", "Shutting down on signal", sig.String())
			server.Shutdown()
			return nil
		case <-server.tracebackSignals:
			server.logger.Info("server", "Writing goroutine traceback to stderr")
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}
}

// Shutdown stops the listeners, disconnects every client, stops the relay,
// and closes the datastore. It is safe to call more than once.
func (server *Server) Shutdown() {
	server.stateMutex.Lock()
	if server.stopping {
		server.stateMutex.Unlock()
		return
	}
	server.stopping = true
	started := server.started
	listeners := server.listeners
	server.listeners = make(map[string]IRCListener)
	server.stateMutex.Unlock()

	sdnotify.Stopping()

	for addr, listener := range listeners {
		if err := listener.Stop(); err != nil {
			server.logger.Error("listeners", "error stopping listener", addr, err.Error())
		}
	}

	server.cancel()
	server.clients.Wait()
	if started {
		<-server.relayDone
	}

	if server.store != nil {
		if err := server.store.Close(); err != nil {
			server.logger.Error("datastore", "error closing datastore", err.Error())
		}
	}
	server.logger.Info("server", "Server stopped")
}

// trackClient reserves a slot for a new client; it fails once Shutdown
// has begun, so that Shutdown can wait for every client.
func (server *Server) trackClient() bool {
	server.stateMutex.Lock()
	defer server.stateMutex.Unlock()
	if server.stopping {
		return false
	}
	server.clients.Add(1)
	return true
}

// RunClient services one accepted connection until it ends: it registers
// the client with the relay, runs its dispatch loop, and deregisters it.
func (server *Server) RunClient(conn IRCConn) {
	if !server.trackClient() {
		conn.Close()
		return
	}
	defer server.clients.Done()

	ctx, cancel := context.WithCancelCause(server.ctx)
	defer cancel(nil)

	client := newClient(server, conn)
	evict := func() { cancel(errSendQExceeded) }
	outbound, err := server.relay.Register(client.id, client.peer, ctx.Done(), evict)
	if err != nil {
		server.logger.Info("connect", "rejecting connection", client.peer, err.Error())
		conn.Close()
		return
	}
	client.outbound = outbound

	// the dispatch loop may be blocked writing to a peer that stopped
	// reading; closing the socket from here unblocks it
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	started := time.Now().UTC()
	if server.store != nil {
		err := server.store.Begin(datastore.Session{ID: client.id, Peer: client.peer, Started: started})
		if err != nil {
			server.logger.Error("datastore", "couldn't record session", client.id, err.Error())
		}
	}
	server.emit(Event{Kind: EventConnect, ClientID: client.id, Peer: client.peer})

	err = client.run(ctx)

	// the handler is gone; make sure the relay stops feeding it
	cancel(nil)
	server.relay.Unregister(client.id)

	if server.store != nil {
		reason := "quit"
		if err != nil {
			reason = err.Error()
		}
		endErr := server.store.End(client.id, client.nick, reason, client.relayedCount, time.Now().UTC())
		if endErr != nil {
			server.logger.Error("datastore", "couldn't record session end", client.id, endErr.Error())
		}
	}
	server.emit(Event{Kind: EventDisconnect, ClientID: client.id, Peer: client.peer, Err: err})
}
